package frame

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Kind identifies how the cells of a column are stored
type Kind int

const (
	KindText Kind = iota
	KindNumber
	KindTime
)

// String returns the kind name used in logs and errors
func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindTime:
		return "time"
	default:
		return "text"
	}
}

// Column holds the cells of a single named column. Only the slice matching
// Kind is populated. Missing numbers are NaN, missing text is "" and missing
// times are the zero time.
type Column struct {
	Name  string
	Kind  Kind
	Text  []string
	Num   []float64
	Times []time.Time
}

// Len returns the number of cells in the column
func (c *Column) Len() int {
	switch c.Kind {
	case KindNumber:
		return len(c.Num)
	case KindTime:
		return len(c.Times)
	default:
		return len(c.Text)
	}
}

// IsMissing reports whether row i holds no value
func (c *Column) IsMissing(i int) bool {
	switch c.Kind {
	case KindNumber:
		return math.IsNaN(c.Num[i])
	case KindTime:
		return c.Times[i].IsZero()
	default:
		return c.Text[i] == ""
	}
}

// String renders row i as text. Numbers use the shortest decimal form,
// times use 2006-01-02 and missing values render as "".
func (c *Column) String(i int) string {
	switch c.Kind {
	case KindNumber:
		return FormatNumber(c.Num[i])
	case KindTime:
		if c.Times[i].IsZero() {
			return ""
		}
		return c.Times[i].Format(DateLayout)
	default:
		return c.Text[i]
	}
}

// Float returns row i as a number. Text cells are parsed, unparseable or
// missing text yields NaN. Time cells are not convertible and yield NaN.
func (c *Column) Float(i int) float64 {
	switch c.Kind {
	case KindNumber:
		return c.Num[i]
	case KindText:
		if c.Text[i] == "" {
			return math.NaN()
		}
		v, err := strconv.ParseFloat(c.Text[i], 64)
		if err != nil {
			return math.NaN()
		}
		return v
	default:
		return math.NaN()
	}
}

// clone returns a deep copy of the column
func (c *Column) clone() *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	switch c.Kind {
	case KindNumber:
		out.Num = append([]float64(nil), c.Num...)
	case KindTime:
		out.Times = append([]time.Time(nil), c.Times...)
	default:
		out.Text = append([]string(nil), c.Text...)
	}
	return out
}

// Take returns a new column holding the given rows in order. A negative
// row index produces a missing cell.
func (c *Column) Take(rows []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	switch c.Kind {
	case KindNumber:
		out.Num = make([]float64, len(rows))
		for i, r := range rows {
			if r < 0 {
				out.Num[i] = math.NaN()
				continue
			}
			out.Num[i] = c.Num[r]
		}
	case KindTime:
		out.Times = make([]time.Time, len(rows))
		for i, r := range rows {
			if r >= 0 {
				out.Times[i] = c.Times[r]
			}
		}
	default:
		out.Text = make([]string, len(rows))
		for i, r := range rows {
			if r >= 0 {
				out.Text[i] = c.Text[r]
			}
		}
	}
	return out
}

// DateLayout is the layout used for date cells in every CSV the pipeline writes
const DateLayout = "2006-01-02"

// FormatNumber renders a float the way the CSV outputs expect: shortest
// exact decimal, no exponent, NaN as an empty cell.
func FormatNumber(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	if math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Frame is an ordered set of equally long columns
type Frame struct {
	cols  []*Column
	index map[string]int
	rows  int
}

// New creates an empty frame with the given number of rows
func New(rows int) *Frame {
	return &Frame{index: make(map[string]int), rows: rows}
}

// Len returns the number of rows
func (f *Frame) Len() int {
	return f.rows
}

// Width returns the number of columns
func (f *Frame) Width() int {
	return len(f.cols)
}

// Columns returns the column names in order
func (f *Frame) Columns() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.Name
	}
	return names
}

// Has reports whether the frame has a column with the given name
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column returns the named column
func (f *Frame) Column(name string) (*Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.cols[i], true
}

// MustColumn returns the named column or an error naming it
func (f *Frame) MustColumn(name string) (*Column, error) {
	c, ok := f.Column(name)
	if !ok {
		return nil, fmt.Errorf("column %q not found", name)
	}
	return c, nil
}

// Set adds the column, replacing any existing column with the same name in place
func (f *Frame) Set(c *Column) error {
	if c.Len() != f.rows {
		return fmt.Errorf("column %q has %d rows, frame has %d", c.Name, c.Len(), f.rows)
	}
	if i, ok := f.index[c.Name]; ok {
		f.cols[i] = c
		return nil
	}
	f.index[c.Name] = len(f.cols)
	f.cols = append(f.cols, c)
	return nil
}

// SetText adds or replaces a text column
func (f *Frame) SetText(name string, vals []string) error {
	return f.Set(&Column{Name: name, Kind: KindText, Text: vals})
}

// SetNumber adds or replaces a number column
func (f *Frame) SetNumber(name string, vals []float64) error {
	return f.Set(&Column{Name: name, Kind: KindNumber, Num: vals})
}

// SetTime adds or replaces a time column
func (f *Frame) SetTime(name string, vals []time.Time) error {
	return f.Set(&Column{Name: name, Kind: KindTime, Times: vals})
}

// Drop removes the named columns. Unknown names are ignored.
func (f *Frame) Drop(names ...string) {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	kept := f.cols[:0]
	for _, c := range f.cols {
		if !drop[c.Name] {
			kept = append(kept, c)
		}
	}
	f.cols = kept
	f.reindex()
}

// Rename renames columns using fn. Two columns mapping to the same name is an error.
func (f *Frame) Rename(fn func(string) string) error {
	seen := make(map[string]bool, len(f.cols))
	for _, c := range f.cols {
		name := fn(c.Name)
		if seen[name] {
			return fmt.Errorf("rename produces duplicate column %q", name)
		}
		seen[name] = true
	}
	for i, c := range f.cols {
		renamed := *c
		renamed.Name = fn(c.Name)
		f.cols[i] = &renamed
	}
	f.reindex()
	return nil
}

// Select returns a frame with the named columns in the given order. The
// columns are shared with the receiver.
func (f *Frame) Select(names ...string) (*Frame, error) {
	out := New(f.rows)
	for _, n := range names {
		c, err := f.MustColumn(n)
		if err != nil {
			return nil, err
		}
		if err := out.Set(c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Shallow returns a frame sharing the receiver's columns. Set, Drop and
// Rename on the result leave the receiver untouched.
func (f *Frame) Shallow() *Frame {
	out := New(f.rows)
	out.cols = append([]*Column(nil), f.cols...)
	out.reindex()
	return out
}

// Clone returns a deep copy
func (f *Frame) Clone() *Frame {
	out := New(f.rows)
	for _, c := range f.cols {
		out.index[c.Name] = len(out.cols)
		out.cols = append(out.cols, c.clone())
	}
	return out
}

// Take returns a new frame holding the given rows in order
func (f *Frame) Take(rows []int) *Frame {
	out := New(len(rows))
	for _, c := range f.cols {
		out.index[c.Name] = len(out.cols)
		out.cols = append(out.cols, c.Take(rows))
	}
	return out
}

// Row renders row i as text cells in column order
func (f *Frame) Row(i int) []string {
	rec := make([]string, len(f.cols))
	for j, c := range f.cols {
		rec[j] = c.String(i)
	}
	return rec
}

func (f *Frame) reindex() {
	f.index = make(map[string]int, len(f.cols))
	for i, c := range f.cols {
		f.index[c.Name] = i
	}
}
