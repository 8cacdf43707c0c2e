// Package exporter writes the pipeline's output tables.
//
// CSVWriter writes a frame as a CSV file below the output directory, with an
// optional UTF-8 BOM for spreadsheet tools.
//
// ExcelWriter writes several frames into one workbook, one sheet per table,
// using excelize stream writers so large tables are not buffered twice.
//
// Example usage:
//
//	writer := exporter.NewCSVWriter(paths, logger)
//	path, err := writer.WriteFrame("preprocessed_x_train.csv", xTrain, exporter.WriteOptions{})
//
//	book := exporter.NewExcelWriter(paths, logger)
//	_, err = book.WriteWorkbook("preprocessed.xlsx", []exporter.Table{
//		{Name: "x_train", Frame: xTrain},
//		{Name: "y_train", Frame: yTrain},
//	})
package exporter
