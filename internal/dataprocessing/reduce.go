package dataprocessing

import (
	"log/slog"
	"math"
	"sort"

	"gafeatures/internal/errors"
	"gafeatures/internal/frame"
	"gafeatures/pkg/contracts/domain"
)

type categoryMass struct {
	value string
	sum   float64
}

// ReduceCategories collapses rare categories of the given columns into
// domain.OtherCategory. A column is reduced only when it has more than
// maxCategories distinct values (missing counts as one). Categories are
// ranked by their summed target; the prefix whose cumulative share of the
// total stays within keepFraction is kept, widened to the top maxCategories
// when shorter. The input frame is not modified.
func ReduceCategories(f *frame.Frame, columns []string, keepFraction float64, maxCategories int, target string) (*frame.Frame, error) {
	if keepFraction < 0 || keepFraction > 1 || math.IsNaN(keepFraction) {
		return nil, errors.NewValidationError("keep fraction must be within [0, 1]", nil).
			WithContext("keep_fraction", keepFraction)
	}
	if maxCategories < 1 {
		return nil, errors.NewValidationError("max categories must be at least 1", nil).
			WithContext("max_categories", maxCategories)
	}
	if target == "" {
		target = domain.ColumnRevenue
	}

	targetCol, err := f.MustColumn(target)
	if err != nil {
		return nil, errors.NewValidationError("cannot reduce categories", err)
	}

	out := f.Shallow()
	for _, name := range columns {
		col, err := f.MustColumn(name)
		if err != nil {
			return nil, errors.NewValidationError("cannot reduce categories", err)
		}
		text := frame.AsText(col)

		distinct := make(map[string]bool)
		for _, v := range text.Text {
			distinct[v] = true
		}
		if len(distinct) <= maxCategories {
			continue
		}

		kept, err := keptCategories(text, targetCol, keepFraction, maxCategories)
		if err != nil {
			return nil, errors.NewValidationError("cannot rank categories", err).WithContext("column", name)
		}
		reduced := make([]string, len(text.Text))
		replaced := 0
		for i, v := range text.Text {
			if kept[v] {
				reduced[i] = v
				continue
			}
			reduced[i] = domain.OtherCategory
			replaced++
		}
		if err := out.SetText(name, reduced); err != nil {
			return nil, err
		}

		slog.Debug("Categories reduced",
			slog.String("column", name),
			slog.Int("distinct", len(distinct)),
			slog.Int("kept", len(kept)),
			slog.Int("rows_replaced", replaced))
	}
	return out, nil
}

// categoryColumn and massColumn carry one reduced column while ranking
const (
	categoryColumn = "__category"
	massColumn     = "__mass"
)

// keptCategories ranks the non-missing categories by summed target
func keptCategories(text, target *frame.Column, keepFraction float64, maxCategories int) (map[string]bool, error) {
	var values []string
	var mass []float64
	for i, v := range text.Text {
		if v == "" {
			continue
		}
		t := target.Float(i)
		if math.IsNaN(t) {
			t = 0
		}
		values = append(values, v)
		mass = append(mass, t)
	}

	pairs := frame.New(len(values))
	if err := pairs.SetText(categoryColumn, values); err != nil {
		return nil, err
	}
	if err := pairs.SetNumber(massColumn, mass); err != nil {
		return nil, err
	}
	sums, err := frame.GroupBy(pairs, categoryColumn,
		frame.Agg{Column: massColumn, Func: frame.AggSum, As: massColumn})
	if err != nil {
		return nil, err
	}
	categories, _ := sums.Column(categoryColumn)
	totals, _ := sums.Column(massColumn)

	ranked := make([]categoryMass, len(categories.Text))
	total := 0.0
	for i, v := range categories.Text {
		ranked[i] = categoryMass{value: v, sum: totals.Num[i]}
		total += totals.Num[i]
	}
	// Categories arrive in value order, so equal masses stay ranked by value.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].sum > ranked[j].sum
	})

	keep := 0
	if total > 0 {
		cum := 0.0
		for _, c := range ranked {
			cum += c.sum
			if cum/total > keepFraction {
				break
			}
			keep++
		}
	}
	// A zero total leaves no usable share, so the top-k floor decides alone.
	if keep < maxCategories {
		keep = min(maxCategories, len(ranked))
	}

	kept := make(map[string]bool, keep)
	for _, c := range ranked[:keep] {
		kept[c.value] = true
	}
	return kept, nil
}
