package exporter

import (
	"gafeatures/internal/frame"
)

// maxSheetName is the longest sheet name a workbook accepts
const maxSheetName = 31

// cellValue converts row i of c into a spreadsheet cell. Missing values
// become empty cells and numbers stay numeric.
func cellValue(c *frame.Column, i int) interface{} {
	if c.IsMissing(i) {
		return nil
	}
	switch c.Kind {
	case frame.KindNumber:
		return c.Num[i]
	default:
		return c.String(i)
	}
}

// sheetName trims a table name to a valid sheet name
func sheetName(name string) string {
	runes := []rune(name)
	if len(runes) > maxSheetName {
		runes = runes[:maxSheetName]
	}
	return string(runes)
}
