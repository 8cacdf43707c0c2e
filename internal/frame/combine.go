package frame

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Concat stacks frames vertically. The result has the union of columns in
// first-seen order; a frame lacking a column contributes missing cells. A
// column must have the same kind in every frame that carries it.
func Concat(frames ...*Frame) (*Frame, error) {
	total := 0
	var order []string
	kinds := make(map[string]Kind)
	for _, f := range frames {
		total += f.rows
		for _, c := range f.cols {
			k, seen := kinds[c.Name]
			if !seen {
				kinds[c.Name] = c.Kind
				order = append(order, c.Name)
				continue
			}
			if k != c.Kind {
				return nil, fmt.Errorf("column %q is %s in one frame and %s in another", c.Name, k, c.Kind)
			}
		}
	}

	out := New(total)
	for _, name := range order {
		col := &Column{Name: name, Kind: kinds[name]}
		for _, f := range frames {
			src, ok := f.Column(name)
			switch col.Kind {
			case KindNumber:
				if ok {
					col.Num = append(col.Num, src.Num...)
				} else {
					for i := 0; i < f.rows; i++ {
						col.Num = append(col.Num, math.NaN())
					}
				}
			case KindTime:
				if ok {
					col.Times = append(col.Times, src.Times...)
				} else {
					col.Times = append(col.Times, make([]time.Time, f.rows)...)
				}
			default:
				if ok {
					col.Text = append(col.Text, src.Text...)
				} else {
					col.Text = append(col.Text, make([]string, f.rows)...)
				}
			}
		}
		if err := out.Set(col); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// AsText returns a text copy of the column. Numbers use FormatNumber and
// times use DateLayout.
func AsText(c *Column) *Column {
	if c.Kind == KindText {
		return c.clone()
	}
	out := &Column{Name: c.Name, Kind: KindText, Text: make([]string, c.Len())}
	for i := range out.Text {
		out.Text[i] = c.String(i)
	}
	return out
}

// AsNumber returns a number copy of the column. Text cells that do not
// parse become NaN; time columns cannot be converted.
func AsNumber(c *Column) (*Column, error) {
	switch c.Kind {
	case KindNumber:
		return c.clone(), nil
	case KindTime:
		return nil, fmt.Errorf("column %q holds dates and cannot be read as numbers", c.Name)
	}
	out := &Column{Name: c.Name, Kind: KindNumber, Num: make([]float64, len(c.Text))}
	for i := range c.Text {
		out.Num[i] = c.Float(i)
	}
	return out, nil
}

// AsTime returns a time copy of the column, parsing text with the given
// layouts in order. Empty text stays missing; text no layout accepts is an error.
func AsTime(c *Column, layouts ...string) (*Column, error) {
	switch c.Kind {
	case KindTime:
		return c.clone(), nil
	case KindNumber:
		// Numbers such as 20160902 are read as compact dates.
		c = AsText(c)
	}
	out := &Column{Name: c.Name, Kind: KindTime, Times: make([]time.Time, len(c.Text))}
	for i, s := range c.Text {
		if s == "" {
			continue
		}
		t, err := parseTime(s, layouts)
		if err != nil {
			return nil, fmt.Errorf("column %q row %d: %w", c.Name, i, err)
		}
		out.Times[i] = t
	}
	return out, nil
}

func parseTime(s string, layouts []string) (time.Time, error) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %s as a date", strconv.Quote(s))
}
