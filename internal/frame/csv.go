package frame

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// ReadOptions controls how CSV cells are typed while reading
type ReadOptions struct {
	// Kinds maps column names to their kind
	Kinds map[string]Kind

	// Default is the kind of columns missing from Kinds
	Default Kind

	// TimeLayouts are tried in order for time columns
	TimeLayouts []string

	// MaxRows stops reading after this many data rows when > 0
	MaxRows int
}

// ReadCSV reads a CSV with a header row into a frame
func ReadCSV(r io.Reader, opts ReadOptions) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = false

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("csv has no header row")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	layouts := opts.TimeLayouts
	if len(layouts) == 0 {
		layouts = []string{DateLayout}
	}

	cells := make([][]string, len(header))
	rows := 0
	for opts.MaxRows <= 0 || rows < opts.MaxRows {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", rows+1, err)
		}
		for i := range header {
			cells[i] = append(cells[i], rec[i])
		}
		rows++
	}

	f := New(rows)
	for i, name := range header {
		kind, ok := opts.Kinds[name]
		if !ok {
			kind = opts.Default
		}
		col, err := typedColumn(name, kind, cells[i], rows, layouts)
		if err != nil {
			return nil, err
		}
		if f.Has(name) {
			return nil, fmt.Errorf("duplicate column %q in header", name)
		}
		if err := f.Set(col); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func typedColumn(name string, kind Kind, text []string, rows int, layouts []string) (*Column, error) {
	if text == nil {
		text = make([]string, rows)
	}
	switch kind {
	case KindNumber:
		nums := make([]float64, len(text))
		for i, s := range text {
			if s == "" {
				nums[i] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("column %q row %d: %q is not a number", name, i+1, s)
			}
			nums[i] = v
		}
		return &Column{Name: name, Kind: KindNumber, Num: nums}, nil
	case KindTime:
		times := make([]time.Time, len(text))
		for i, s := range text {
			if s == "" {
				continue
			}
			t, err := parseTime(s, layouts)
			if err != nil {
				return nil, fmt.Errorf("column %q row %d: %w", name, i+1, err)
			}
			times[i] = t
		}
		return &Column{Name: name, Kind: KindTime, Times: times}, nil
	default:
		return &Column{Name: name, Kind: KindText, Text: text}, nil
	}
}

// WriteCSV writes the frame with a header row
func WriteCSV(w io.Writer, f *Frame) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(f.Columns()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := 0; i < f.rows; i++ {
		if err := writer.Write(f.Row(i)); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
