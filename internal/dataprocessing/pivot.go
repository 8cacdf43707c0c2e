package dataprocessing

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/facette/natsort"

	"gafeatures/internal/errors"
	"gafeatures/internal/frame"
	"gafeatures/pkg/contracts/domain"
)

// DynamicColumns are pivoted per month bucket by Aggregate
var DynamicColumns = []string{
	domain.ColumnRevenue,
	domain.ColumnVisits,
	domain.ColumnTransactions,
	domain.ColumnPageviews,
}

// cellColumn holds the composite (visitor, bucket) key while pivoting
const cellColumn = "__cell"

// Aggregate turns a monthly customer table into one row per visitor. Each
// dynamic metric becomes one <metric>_<bucket> column holding the mean of
// that month (NaN when the visitor has no row for it); the remaining numeric
// columns are summed per visitor. The visitor id stays first, the other
// columns follow in case-insensitive natural order.
func Aggregate(f *frame.Frame) (*frame.Frame, error) {
	ids, err := f.MustColumn(domain.ColumnVisitorID)
	if err != nil {
		return nil, errors.NewValidationError("cannot aggregate", err)
	}
	ids = frame.AsText(ids)
	buckets, err := f.MustColumn(domain.ColumnMonthBucket)
	if err != nil {
		return nil, errors.NewValidationError("cannot aggregate", err)
	}
	buckets = frame.AsText(buckets)

	cells := make([]string, f.Len())
	for i := range cells {
		cells[i] = frame.JoinKey(ids.Text[i], buckets.Text[i])
	}
	keyed := f.Shallow()
	if err := keyed.Set(ids); err != nil {
		return nil, err
	}
	if err := keyed.Set(buckets); err != nil {
		return nil, err
	}
	if err := keyed.SetText(cellColumn, cells); err != nil {
		return nil, err
	}

	skip := map[string]bool{
		domain.ColumnVisitorID:   true,
		domain.ColumnMonthBucket: true,
		domain.ColumnDate:        true,
	}
	for _, m := range DynamicColumns {
		skip[m] = true
	}
	var sums []frame.Agg
	for _, name := range f.Columns() {
		if skip[name] {
			continue
		}
		col, _ := f.Column(name)
		if col.Kind != frame.KindNumber {
			slog.Debug("Skipping non-numeric static column", slog.String("column", name))
			continue
		}
		sums = append(sums, frame.Agg{Column: name, Func: frame.AggSum, As: name})
	}
	static, err := frame.GroupBy(keyed, domain.ColumnVisitorID, sums...)
	if err != nil {
		return nil, errors.NewValidationError("cannot sum static features", err)
	}

	var means []frame.Agg
	for _, metric := range DynamicColumns {
		if !f.Has(metric) {
			return nil, errors.NewValidationError("cannot aggregate", fmt.Errorf("column %q not found", metric))
		}
		means = append(means, frame.Agg{Column: metric, Func: frame.AggMean, As: metric})
	}
	monthly, err := frame.GroupBy(keyed, cellColumn, means...)
	if err != nil {
		return nil, errors.NewValidationError("cannot average monthly features", err)
	}
	bucketKeys, err := frame.GroupBy(keyed, domain.ColumnMonthBucket)
	if err != nil {
		return nil, errors.NewValidationError("cannot aggregate", err)
	}

	visitorCol, _ := static.Column(domain.ColumnVisitorID)
	visitors := visitorCol.Text
	visitorAt := positions(visitors)
	bucketCol, _ := bucketKeys.Column(domain.ColumnMonthBucket)
	bucketAt := positions(bucketCol.Text)

	cellCol, _ := monthly.Column(cellColumn)
	dynamic := frame.New(len(visitors))
	if err := dynamic.SetText(domain.ColumnVisitorID, visitors); err != nil {
		return nil, err
	}
	for _, metric := range DynamicColumns {
		mean, _ := monthly.Column(metric)
		pivot := make([][]float64, len(bucketCol.Text))
		for b := range pivot {
			pivot[b] = make([]float64, len(visitors))
			for v := range pivot[b] {
				pivot[b][v] = math.NaN()
			}
		}
		for r, key := range cellCol.Text {
			parts := frame.SplitKey(key)
			pivot[bucketAt[parts[1]]][visitorAt[parts[0]]] = mean.Num[r]
		}
		for b, bucket := range bucketCol.Text {
			if err := dynamic.SetNumber(metric+"_"+bucket, pivot[b]); err != nil {
				return nil, err
			}
		}
	}

	joined, err := frame.InnerJoin(static, dynamic, domain.ColumnVisitorID)
	if err != nil {
		return nil, errors.NewValidationError("cannot join static and dynamic features", err)
	}

	names := joined.Columns()[1:]
	SortNatural(names)
	return joined.Select(append([]string{domain.ColumnVisitorID}, names...)...)
}

// SortNatural orders names naturally ("x_2" before "x_10"), ignoring case
func SortNatural(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		li, lj := strings.ToLower(names[i]), strings.ToLower(names[j])
		if li != lj {
			return natsort.Compare(li, lj)
		}
		return names[i] < names[j]
	})
}

// positions maps each value to its index
func positions(values []string) map[string]int {
	pos := make(map[string]int, len(values))
	for i, v := range values {
		pos[v] = i
	}
	return pos
}
