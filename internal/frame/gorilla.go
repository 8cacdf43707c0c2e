package frame

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/gorilla"
)

// Column names used inside gorilla plans. They never reach a returned frame.
const (
	RowColumn   = "__row"
	leftRow     = "__left_row"
	rightRow    = "__right_row"
	groupKey    = "__key"
	groupValue  = "__value"
	groupResult = "__result"
	groupCount  = "__n"
)

// KeySeparator joins the parts of a composite group key. It sorts below
// every printable character, so composite keys order like their parts.
const KeySeparator = "\x1f"

// missingDay marks a missing date in a day-number series
const missingDay = math.MinInt64

var allocator = memory.NewGoAllocator()

// AggFunc names a per-group reduction
type AggFunc string

const (
	AggSum   AggFunc = "sum"
	AggMean  AggFunc = "mean"
	AggCount AggFunc = "count"
	AggMin   AggFunc = "min"
	AggMax   AggFunc = "max"
)

// Agg reduces Column with Func into the output column As
type Agg struct {
	Column string
	Func   AggFunc
	As     string
}

func (a Agg) name() string {
	if a.As != "" {
		return a.As
	}
	return a.Column + "_" + string(a.Func)
}

// DayNumber returns the days since the Unix epoch of t's calendar day
func DayNumber(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

// JoinKey builds a composite group key from its parts
func JoinKey(parts ...string) string {
	return strings.Join(parts, KeySeparator)
}

// SplitKey returns the parts of a composite group key
func SplitKey(key string) []string {
	return strings.Split(key, KeySeparator)
}

// Gorilla converts the named columns (all when none are named) to a gorilla
// DataFrame with an extra RowColumn holding each record's row in f. Numbers
// stay float64 with NaN for missing, text stays string and times become
// day numbers. The caller releases the result.
func (f *Frame) Gorilla(names ...string) (*gorilla.DataFrame, error) {
	if len(names) == 0 {
		names = f.Columns()
	}
	series := make([]gorilla.ISeries, 0, len(names)+1)
	defer func() {
		for _, s := range series {
			s.Release()
		}
	}()

	for _, name := range names {
		c, err := f.MustColumn(name)
		if err != nil {
			return nil, err
		}
		series = append(series, newSeries(c))
	}
	rows := make([]int64, f.rows)
	for i := range rows {
		rows[i] = int64(i)
	}
	series = append(series, gorilla.NewSeries(RowColumn, rows, allocator))
	return gorilla.NewDataFrame(series...), nil
}

func newSeries(c *Column) gorilla.ISeries {
	switch c.Kind {
	case KindNumber:
		return gorilla.NewSeries(c.Name, c.Num, allocator)
	case KindTime:
		days := make([]int64, len(c.Times))
		for i, t := range c.Times {
			if t.IsZero() {
				days[i] = missingDay
				continue
			}
			days[i] = DayNumber(t)
		}
		return gorilla.NewSeries(c.Name, days, allocator)
	default:
		return gorilla.NewSeries(c.Name, c.Text, allocator)
	}
}

// Between returns the rows whose time column falls on a day within
// [from, to], in their original order. A zero bound leaves that side open;
// missing dates never match.
func (f *Frame) Between(column string, from, to time.Time) (*Frame, error) {
	c, err := f.MustColumn(column)
	if err != nil {
		return nil, err
	}
	if c.Kind != KindTime {
		return nil, fmt.Errorf("column %q is %s, not a date", column, c.Kind)
	}
	if f.rows == 0 {
		return f.Take(nil), nil
	}

	lo := int64(missingDay)
	if !from.IsZero() {
		lo = DayNumber(from) - 1
	}
	hi := int64(math.MaxInt64)
	if !to.IsZero() {
		hi = DayNumber(to) + 1
	}

	df, err := f.Gorilla(column)
	if err != nil {
		return nil, err
	}
	defer df.Release()

	kept, err := df.Lazy().
		Filter(gorilla.Col(column).Gt(gorilla.Lit(lo)).And(gorilla.Col(column).Lt(gorilla.Lit(hi)))).
		Sort(RowColumn, true).
		Collect()
	if err != nil {
		return nil, fmt.Errorf("filter %q by date: %w", column, err)
	}
	defer kept.Release()

	rows, err := intColumn(kept, RowColumn)
	if err != nil {
		return nil, err
	}
	return f.Take(rows), nil
}

// InnerJoin joins left and right on a text key column present in both.
// Rows keep the left order. Right columns whose names clash with left
// columns (other than the key) are an error.
func InnerJoin(left, right *Frame, key string) (*Frame, error) {
	lk, err := left.MustColumn(key)
	if err != nil {
		return nil, fmt.Errorf("left: %w", err)
	}
	rk, err := right.MustColumn(key)
	if err != nil {
		return nil, fmt.Errorf("right: %w", err)
	}
	if lk.Kind != KindText || rk.Kind != KindText {
		return nil, fmt.Errorf("join key %q must be text", key)
	}
	for _, c := range right.cols {
		if c.Name != key && left.Has(c.Name) {
			return nil, fmt.Errorf("column %q exists on both sides of the join", c.Name)
		}
	}

	var li, ri []int
	if left.rows > 0 && right.rows > 0 {
		li, ri, err = joinRows(lk, rk, key)
		if err != nil {
			return nil, err
		}
	}

	out := left.Take(li)
	for _, c := range right.cols {
		if c.Name == key {
			continue
		}
		if err := out.Set(c.Take(ri)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// joinRows returns the matching (left, right) row pairs ordered by left row
func joinRows(lk, rk *Column, key string) ([]int, []int, error) {
	ldf := keyFrame(key, lk.Text, leftRow)
	defer ldf.Release()
	rdf := keyFrame(key, rk.Text, rightRow)
	defer rdf.Release()

	joined, err := ldf.Join(rdf, &gorilla.JoinOptions{
		Type:     gorilla.InnerJoin,
		LeftKey:  key,
		RightKey: key,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("join on %q: %w", key, err)
	}
	defer joined.Release()

	ordered, err := joined.Lazy().Sort(leftRow, true).Collect()
	if err != nil {
		return nil, nil, fmt.Errorf("order joined rows: %w", err)
	}
	defer ordered.Release()

	li, err := intColumn(ordered, leftRow)
	if err != nil {
		return nil, nil, err
	}
	ri, err := intColumn(ordered, rightRow)
	if err != nil {
		return nil, nil, err
	}
	return li, ri, nil
}

func keyFrame(key string, keys []string, rowName string) *gorilla.DataFrame {
	rows := make([]int64, len(keys))
	for i := range rows {
		rows[i] = int64(i)
	}
	ks := gorilla.NewSeries(key, keys, allocator)
	defer ks.Release()
	rs := gorilla.NewSeries(rowName, rows, allocator)
	defer rs.Release()
	return gorilla.NewDataFrame(ks, rs)
}

// GroupBy groups f by the text form of the key column. The result has one
// row per distinct key in ascending order: the key column followed by one
// number column per aggregate. Missing values are skipped, so a key with
// no value for an aggregate gets 0 for sum and count and NaN otherwise.
func GroupBy(f *Frame, key string, aggs ...Agg) (*Frame, error) {
	kc, err := f.MustColumn(key)
	if err != nil {
		return nil, err
	}
	keys := AsText(kc)

	distinct, err := groupKeys(keys.Text)
	if err != nil {
		return nil, err
	}
	pos := make(map[string]int, len(distinct))
	for i, k := range distinct {
		pos[k] = i
	}

	out := New(len(distinct))
	if err := out.SetText(key, distinct); err != nil {
		return nil, err
	}
	for _, a := range aggs {
		col, err := f.MustColumn(a.Column)
		if err != nil {
			return nil, err
		}
		nums, err := AsNumber(col)
		if err != nil {
			return nil, err
		}
		reduced, err := aggregate(keys.Text, nums.Num, a.Func)
		if err != nil {
			return nil, fmt.Errorf("%s of %q: %w", a.Func, a.Column, err)
		}

		fill := math.NaN()
		if a.Func == AggSum || a.Func == AggCount {
			fill = 0
		}
		vals := make([]float64, len(distinct))
		for i := range vals {
			vals[i] = fill
		}
		for k, v := range reduced {
			vals[pos[k]] = v
		}
		if err := out.SetNumber(a.name(), vals); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// groupKeys returns the distinct keys in ascending order
func groupKeys(keys []string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	ks := gorilla.NewSeries(groupKey, keys, allocator)
	defer ks.Release()
	df := gorilla.NewDataFrame(ks)
	defer df.Release()

	grouped, err := df.Lazy().
		GroupBy(groupKey).
		Agg(gorilla.Count(gorilla.Col(groupKey)).As(groupCount)).
		Sort(groupKey, true).
		Collect()
	if err != nil {
		return nil, fmt.Errorf("group keys: %w", err)
	}
	defer grouped.Release()
	return stringColumn(grouped, groupKey)
}

// aggregate reduces the non-missing values per key
func aggregate(keys []string, values []float64, fn AggFunc) (map[string]float64, error) {
	var ks []string
	var vs []float64
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		ks = append(ks, keys[i])
		vs = append(vs, v)
	}
	if len(vs) == 0 {
		if !validAgg(fn) {
			return nil, fmt.Errorf("unknown aggregation %q", fn)
		}
		return map[string]float64{}, nil
	}

	keySeries := gorilla.NewSeries(groupKey, ks, allocator)
	defer keySeries.Release()
	valueSeries := gorilla.NewSeries(groupValue, vs, allocator)
	defer valueSeries.Release()
	df := gorilla.NewDataFrame(keySeries, valueSeries)
	defer df.Release()

	plan := df.Lazy().GroupBy(groupKey)
	value := gorilla.Col(groupValue)
	var (
		grouped *gorilla.DataFrame
		err     error
	)
	switch fn {
	case AggSum:
		grouped, err = plan.Agg(gorilla.Sum(value).As(groupResult)).Collect()
	case AggMean:
		grouped, err = plan.Agg(gorilla.Mean(value).As(groupResult)).Collect()
	case AggCount:
		grouped, err = plan.Agg(gorilla.Count(value).As(groupResult)).Collect()
	case AggMin:
		grouped, err = plan.Agg(gorilla.Min(value).As(groupResult)).Collect()
	case AggMax:
		grouped, err = plan.Agg(gorilla.Max(value).As(groupResult)).Collect()
	default:
		return nil, fmt.Errorf("unknown aggregation %q", fn)
	}
	if err != nil {
		return nil, err
	}
	defer grouped.Release()

	names, err := stringColumn(grouped, groupKey)
	if err != nil {
		return nil, err
	}
	results, err := floatColumn(grouped, groupResult)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(names))
	for i, k := range names {
		out[k] = results[i]
	}
	return out, nil
}

func validAgg(fn AggFunc) bool {
	switch fn {
	case AggSum, AggMean, AggCount, AggMin, AggMax:
		return true
	}
	return false
}

func resultArray(df *gorilla.DataFrame, name string) (arrow.Array, error) {
	s, ok := df.Column(name)
	if !ok {
		return nil, fmt.Errorf("result has no column %q", name)
	}
	return s.Array(), nil
}

func stringColumn(df *gorilla.DataFrame, name string) ([]string, error) {
	arr, err := resultArray(df, name)
	if err != nil {
		return nil, err
	}
	strs, ok := arr.(*array.String)
	if !ok {
		return nil, fmt.Errorf("column %q is %s, not text", name, arr.DataType())
	}
	out := make([]string, strs.Len())
	for i := range out {
		if !strs.IsNull(i) {
			out[i] = strs.Value(i)
		}
	}
	return out, nil
}

func floatColumn(df *gorilla.DataFrame, name string) ([]float64, error) {
	arr, err := resultArray(df, name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, arr.Len())
	for i := range out {
		if arr.IsNull(i) {
			out[i] = math.NaN()
			continue
		}
		switch a := arr.(type) {
		case *array.Float64:
			out[i] = a.Value(i)
		case *array.Float32:
			out[i] = float64(a.Value(i))
		case *array.Int64:
			out[i] = float64(a.Value(i))
		case *array.Int32:
			out[i] = float64(a.Value(i))
		default:
			return nil, fmt.Errorf("column %q is %s, not a number", name, arr.DataType())
		}
	}
	return out, nil
}

func intColumn(df *gorilla.DataFrame, name string) ([]int, error) {
	vals, err := floatColumn(df, name)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(vals))
	for i, v := range vals {
		out[i] = int(v)
	}
	return out, nil
}
