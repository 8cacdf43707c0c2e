package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"gafeatures/internal/config"
	"gafeatures/internal/errors"
	"gafeatures/internal/frame"
)

// maxSheetRows is the row limit of an xlsx worksheet, header included
const maxSheetRows = 1048576

// Table is a named frame written as one sheet or one database table
type Table struct {
	Name  string
	Frame *frame.Frame
}

// ExcelWriter writes frames into a single workbook, one sheet per table
type ExcelWriter struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewExcelWriter creates a workbook writer rooted at the output directory
func NewExcelWriter(paths *config.Paths, logger *slog.Logger) *ExcelWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExcelWriter{paths: paths, logger: logger.With(slog.String("component", "excel_writer"))}
}

// WriteWorkbook writes tables in order and returns the resolved file path
func (w *ExcelWriter) WriteWorkbook(filePath string, tables []Table) (string, error) {
	if len(tables) == 0 {
		return "", errors.NewValidationError("workbook needs at least one table", nil)
	}
	fullPath := filePath
	if !filepath.IsAbs(fullPath) {
		fullPath = w.paths.GetOutputPath(filePath)
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", errors.NewStorageError("failed to create directory", err).
			WithContext("path", fullPath)
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			w.logger.Warn("Failed to close workbook", slog.String("error", err.Error()))
		}
	}()

	seen := make(map[string]bool, len(tables))
	for i, table := range tables {
		name := sheetName(table.Name)
		if name == "" || seen[name] {
			return "", errors.NewValidationError(fmt.Sprintf("invalid or duplicate sheet name %q", table.Name), nil)
		}
		seen[name] = true

		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return "", errors.NewStorageError("failed to name sheet", err).WithContext("sheet", name)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return "", errors.NewStorageError("failed to create sheet", err).WithContext("sheet", name)
		}

		if err := w.writeSheet(f, name, table.Frame); err != nil {
			return "", err
		}
		w.logger.Debug("Sheet written",
			slog.String("sheet", name),
			slog.Int("rows", table.Frame.Len()),
			slog.Int("columns", table.Frame.Width()))
	}

	if err := f.SaveAs(fullPath); err != nil {
		return "", errors.NewStorageError("failed to save workbook", err).WithContext("path", fullPath)
	}
	w.logger.Info("Workbook written",
		slog.String("full_path", fullPath),
		slog.Int("sheets", len(tables)))
	return fullPath, nil
}

func (w *ExcelWriter) writeSheet(f *excelize.File, sheet string, data *frame.Frame) error {
	if data.Len()+1 > maxSheetRows {
		return errors.NewValidationError(fmt.Sprintf("table %s has %d rows, a sheet holds at most %d", sheet, data.Len(), maxSheetRows-1), nil)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return errors.NewStorageError("failed to open sheet stream", err).WithContext("sheet", sheet)
	}

	names := data.Columns()
	header := make([]interface{}, len(names))
	columns := make([]*frame.Column, len(names))
	for i, name := range names {
		header[i] = name
		columns[i], _ = data.Column(name)
	}
	if err := sw.SetRow("A1", header); err != nil {
		return errors.NewStorageError("failed to write header", err).WithContext("sheet", sheet)
	}

	values := make([]interface{}, len(columns))
	for row := 0; row < data.Len(); row++ {
		for i, c := range columns {
			values[i] = cellValue(c, row)
		}
		cell, err := excelize.CoordinatesToCellName(1, row+2)
		if err != nil {
			return errors.NewStorageError("failed to address row", err)
		}
		if err := sw.SetRow(cell, values); err != nil {
			return errors.NewStorageError(fmt.Sprintf("failed to write row %d", row+1), err).
				WithContext("sheet", sheet)
		}
	}

	if err := sw.Flush(); err != nil {
		return errors.NewStorageError("failed to flush sheet", err).WithContext("sheet", sheet)
	}
	return nil
}
