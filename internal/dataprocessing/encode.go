package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"gafeatures/internal/errors"
	"gafeatures/internal/frame"
	"gafeatures/pkg/contracts/domain"
)

// Preprocessor runs the encoding and split stages of the feature pipeline
type Preprocessor struct {
	logger *slog.Logger
}

// NewPreprocessor creates a preprocessor
func NewPreprocessor(logger *slog.Logger) *Preprocessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Preprocessor{logger: logger.With(slog.String("component", "preprocessor"))}
}

// OneHotEncode replaces each listed column by one indicator column per
// distinct observed value, named <column>_<value>. Every level is kept.
// A missing cell gets no indicator of its own, so its row is all zeros.
// Numeric columns are encoded as categories after a warning.
func (p *Preprocessor) OneHotEncode(ctx context.Context, f *frame.Frame, columns []string) (*frame.Frame, error) {
	out := f.Shallow()
	for _, name := range columns {
		col, err := out.MustColumn(name)
		if err != nil {
			return nil, errors.NewValidationError("cannot one-hot encode", err)
		}
		if col.Kind != frame.KindText {
			p.logger.WarnContext(ctx, "Column converted from numeric to category",
				slog.String("column", name),
				slog.String("kind", col.Kind.String()))
			col = frame.AsText(col)
		}

		indicators := oneHot(col)
		out.Drop(name)
		for _, ind := range indicators {
			if out.Has(ind.Name) {
				return nil, errors.NewValidationError(fmt.Sprintf("encoded column %q already exists", ind.Name), nil)
			}
			if err := out.Set(ind); err != nil {
				return nil, err
			}
		}

		p.logger.DebugContext(ctx, "Column one-hot encoded",
			slog.String("column", name),
			slog.Int("levels", len(indicators)))
	}
	return out, nil
}

// oneHot builds the indicator columns of a text column in value order
func oneHot(col *frame.Column) []*frame.Column {
	index := make(map[string]int)
	var values []string
	for _, v := range col.Text {
		if v == "" {
			continue
		}
		if _, ok := index[v]; !ok {
			index[v] = 0
			values = append(values, v)
		}
	}
	sort.Strings(values)

	indicators := make([]*frame.Column, len(values))
	for i, v := range values {
		index[v] = i
		indicators[i] = &frame.Column{
			Name: col.Name + "_" + v,
			Kind: frame.KindNumber,
			Num:  make([]float64, len(col.Text)),
		}
	}
	for r, v := range col.Text {
		if v == "" {
			continue
		}
		indicators[index[v]].Num[r] = 1
	}
	return indicators
}

// ExplicitEncoding is a partial one-hot encoding of selected values
type ExplicitEncoding struct {
	Column string
	Values []string
}

// DefaultExplicitEncodings are the high-cardinality geo values worth a
// dedicated indicator column
func DefaultExplicitEncodings() []ExplicitEncoding {
	return []ExplicitEncoding{
		{Column: domain.ColumnCountry, Values: []string{"United States"}},
		{Column: "city", Values: []string{"New York", "Chicago", "Austin", "Seattle", "Palo Alto", "Toronto"}},
	}
}

// EncodeExplicit replaces each listed column by indicator columns for the
// listed values only; rows holding any other value are all zero.
func EncodeExplicit(f *frame.Frame, encodings []ExplicitEncoding) (*frame.Frame, error) {
	out := f.Shallow()
	for _, enc := range encodings {
		col, err := out.MustColumn(enc.Column)
		if err != nil {
			return nil, errors.NewValidationError("cannot encode explicit values", err)
		}
		text := frame.AsText(col)
		out.Drop(enc.Column)

		for _, value := range enc.Values {
			name := enc.Column + "_" + value
			if out.Has(name) {
				return nil, errors.NewValidationError(fmt.Sprintf("encoded column %q already exists", name), nil)
			}
			ind := make([]float64, len(text.Text))
			for i, v := range text.Text {
				if v == value {
					ind[i] = 1
				}
			}
			if err := out.SetNumber(name, ind); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}
