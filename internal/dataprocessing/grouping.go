package dataprocessing

import (
	"fmt"

	"gafeatures/internal/errors"
	"gafeatures/internal/frame"
	"gafeatures/pkg/contracts/domain"
)

// AggMethod names how a column is reduced within a group
type AggMethod string

const (
	AggMode  AggMethod = "mode"
	AggSum   AggMethod = "sum"
	AggFirst AggMethod = "first"
)

// Aggregation reduces one column with one method
type Aggregation struct {
	Column string
	Method AggMethod
}

// GroupSpec lists the aggregated columns in output order
type GroupSpec []Aggregation

// DefaultGroupSpec is the monthly grouping of flattened sessions
func DefaultGroupSpec() GroupSpec {
	return GroupSpec{
		{Column: domain.ColumnOperatingSystem, Method: AggMode},
		{Column: domain.ColumnCountry, Method: AggMode},
		{Column: domain.ColumnBrowser, Method: AggMode},
		{Column: domain.ColumnWeekday, Method: AggMode},
		{Column: domain.ColumnPageviews, Method: AggSum},
		{Column: domain.ColumnTransactions, Method: AggSum},
		{Column: domain.ColumnVisits, Method: AggSum},
		{Column: domain.ColumnRevenue, Method: AggSum},
		{Column: domain.ColumnVisitStartTime, Method: AggFirst},
		{Column: domain.ColumnDate, Method: AggFirst},
	}
}

type group struct {
	visitor string
	bucket  string
	rows    []int
}

// groupColumn holds the composite (visitor, bucket) key while grouping
const groupColumn = "__group"

// MonthBucket returns the "<month>_<year>" label of a date, without zero padding
func MonthBucket(year int, month int) string {
	return fmt.Sprintf("%d_%d", month, year)
}

// GroupMonthly reduces sessions to one row per (visitor, calendar month).
// The output holds the visitor id, the month bucket and the aggregated
// columns in spec order; groups are ordered by visitor then bucket.
func GroupMonthly(f *frame.Frame, spec GroupSpec) (*frame.Frame, error) {
	ids, err := f.MustColumn(domain.ColumnVisitorID)
	if err != nil {
		return nil, errors.NewValidationError("cannot group sessions", err)
	}
	ids = frame.AsText(ids)

	rawDates, err := f.MustColumn(domain.ColumnDate)
	if err != nil {
		return nil, errors.NewValidationError("cannot group sessions", err)
	}
	dates, err := frame.AsTime(rawDates, frame.DateLayout, compactDateLayout)
	if err != nil {
		return nil, errors.NewValidationError("unparseable session date", err)
	}

	keys := make([]string, f.Len())
	byKey := make(map[string]*group)
	for i := range keys {
		if dates.IsMissing(i) {
			return nil, errors.NewValidationError("session without a date", nil).
				WithContext("row", i)
		}
		d := dates.Times[i]
		bucket := MonthBucket(d.Year(), int(d.Month()))
		keys[i] = frame.JoinKey(ids.Text[i], bucket)
		g, ok := byKey[keys[i]]
		if !ok {
			g = &group{visitor: ids.Text[i], bucket: bucket}
			byKey[keys[i]] = g
		}
		g.rows = append(g.rows, i)
	}

	keyed := f.Shallow()
	if err := keyed.SetText(groupColumn, keys); err != nil {
		return nil, err
	}
	var sums []frame.Agg
	for _, agg := range spec {
		if agg.Method == AggSum {
			sums = append(sums, frame.Agg{Column: agg.Column, Func: frame.AggSum, As: agg.Column})
		}
	}
	summed, err := frame.GroupBy(keyed, groupColumn, sums...)
	if err != nil {
		return nil, errors.NewValidationError("cannot sum grouped sessions", err)
	}
	ordered, _ := summed.Column(groupColumn)
	groups := make([]*group, len(ordered.Text))
	for i, k := range ordered.Text {
		groups[i] = byKey[k]
	}

	out := frame.New(len(groups))
	visitors := make([]string, len(groups))
	buckets := make([]string, len(groups))
	for i, g := range groups {
		visitors[i] = g.visitor
		buckets[i] = g.bucket
	}
	if err := out.SetText(domain.ColumnVisitorID, visitors); err != nil {
		return nil, err
	}
	if err := out.SetText(domain.ColumnMonthBucket, buckets); err != nil {
		return nil, err
	}

	for _, agg := range spec {
		col, err := f.MustColumn(agg.Column)
		if err != nil {
			return nil, errors.NewValidationError("cannot group sessions", err)
		}
		if agg.Column == domain.ColumnDate {
			col = dates
		}

		var result *frame.Column
		switch agg.Method {
		case AggMode:
			result = col.Take(pickRows(groups, func(rows []int) int { return modeRow(col, rows) }))
		case AggFirst:
			result = col.Take(pickRows(groups, func(rows []int) int { return firstRow(col, rows) }))
		case AggSum:
			result, _ = summed.Column(agg.Column)
		default:
			return nil, errors.NewValidationError(fmt.Sprintf("unknown aggregation %q", agg.Method), nil).
				WithContext("column", agg.Column)
		}
		if err := out.Set(result); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func pickRows(groups []*group, pick func(rows []int) int) []int {
	idx := make([]int, len(groups))
	for i, g := range groups {
		idx[i] = pick(g.rows)
	}
	return idx
}

// modeRow returns the row holding the most frequent value. Ties go to the
// value seen first; missing cells are ignored and an all-missing group gives -1.
func modeRow(col *frame.Column, rows []int) int {
	counts := make(map[string]int)
	firstAt := make(map[string]int)
	best, bestCount := -1, 0
	for _, r := range rows {
		if col.IsMissing(r) {
			continue
		}
		v := col.String(r)
		if _, seen := firstAt[v]; !seen {
			firstAt[v] = r
		}
		counts[v]++
	}
	for _, r := range rows {
		if col.IsMissing(r) {
			continue
		}
		v := col.String(r)
		if firstAt[v] != r {
			continue
		}
		if counts[v] > bestCount {
			best, bestCount = r, counts[v]
		}
	}
	return best
}

func firstRow(col *frame.Column, rows []int) int {
	for _, r := range rows {
		if !col.IsMissing(r) {
			return r
		}
	}
	return -1
}
