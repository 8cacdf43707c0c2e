package frame

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupBy(t *testing.T) {
	f := New(6)
	require.NoError(t, f.SetText("id", []string{"b", "a", "b", "c", "a", "b"}))
	require.NoError(t, f.SetNumber("x", []float64{1, 2, 3, math.NaN(), 4, 5}))

	got, err := GroupBy(f, "id",
		Agg{Column: "x", Func: AggSum},
		Agg{Column: "x", Func: AggMean},
		Agg{Column: "x", Func: AggCount, As: "n"},
		Agg{Column: "x", Func: AggMin},
		Agg{Column: "x", Func: AggMax},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "x_sum", "x_mean", "n", "x_min", "x_max"}, got.Columns())
	ids, _ := got.Column("id")
	assert.Equal(t, []string{"a", "b", "c"}, ids.Text)

	tests := []struct {
		column string
		want   []float64
	}{
		{"x_sum", []float64{6, 9, 0}},
		{"x_mean", []float64{3, 3}},
		{"n", []float64{2, 3, 0}},
		{"x_min", []float64{2, 1}},
		{"x_max", []float64{4, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			c, ok := got.Column(tt.column)
			require.True(t, ok)
			assert.Equal(t, tt.want, c.Num[:len(tt.want)])
		})
	}

	// c has no value: sum and count are 0, the others missing
	for _, name := range []string{"x_mean", "x_min", "x_max"} {
		c, _ := got.Column(name)
		assert.True(t, math.IsNaN(c.Num[2]), name)
	}
}

func TestGroupBy_TextValuesAndErrors(t *testing.T) {
	f := New(3)
	require.NoError(t, f.SetText("id", []string{"a", "a", "b"}))
	require.NoError(t, f.SetText("hits", []string{"2", "", "7"}))
	require.NoError(t, f.SetTime("date", make([]time.Time, 3)))

	got, err := GroupBy(f, "id", Agg{Column: "hits", Func: AggSum, As: "hits"})
	require.NoError(t, err)
	hits, _ := got.Column("hits")
	assert.Equal(t, []float64{2, 7}, hits.Num)

	keysOnly, err := GroupBy(f, "id")
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, keysOnly.Columns())
	assert.Equal(t, 2, keysOnly.Len())

	_, err = GroupBy(f, "id", Agg{Column: "hits", Func: "median"})
	assert.ErrorContains(t, err, "unknown aggregation")
	_, err = GroupBy(f, "id", Agg{Column: "date", Func: AggSum})
	assert.Error(t, err)
	_, err = GroupBy(f, "missing")
	assert.Error(t, err)
}

func TestGroupBy_CompositeKey(t *testing.T) {
	f := New(4)
	require.NoError(t, f.SetText("key", []string{
		JoinKey("ab", "1"), JoinKey("a", "2"), JoinKey("a", "10"), JoinKey("a", "2"),
	}))
	require.NoError(t, f.SetNumber("x", []float64{1, 2, 3, 4}))

	got, err := GroupBy(f, "key", Agg{Column: "x", Func: AggSum, As: "x"})
	require.NoError(t, err)

	keys, _ := got.Column("key")
	require.Equal(t, 3, got.Len())
	assert.Equal(t, []string{"a", "10"}, SplitKey(keys.Text[0]))
	assert.Equal(t, []string{"a", "2"}, SplitKey(keys.Text[1]))
	assert.Equal(t, []string{"ab", "1"}, SplitKey(keys.Text[2]))
	x, _ := got.Column("x")
	assert.Equal(t, []float64{3, 6, 1}, x.Num)
}

func TestFrame_Between(t *testing.T) {
	f := sample(t)
	sep := time.Date(2016, 9, 1, 0, 0, 0, 0, time.UTC)
	jan := time.Date(2017, 1, 5, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		from, to time.Time
		want     []string
	}{
		{"both bounds inclusive", sep, jan, []string{"2016-09-02", "2017-01-05"}},
		{"upper bound excludes later", sep, jan.AddDate(0, 0, -1), []string{"2016-09-02"}},
		{"open start", time.Time{}, sep.AddDate(0, 0, 1), []string{"2016-09-02"}},
		{"open end", jan, time.Time{}, []string{"2017-01-05"}},
		{"nothing", jan.AddDate(0, 0, 1), time.Time{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.Between("date", tt.from, tt.to)
			require.NoError(t, err)
			var dates []string
			for i := 0; i < got.Len(); i++ {
				dates = append(dates, got.Row(i)[2])
			}
			assert.Equal(t, tt.want, dates)
		})
	}

	_, err := f.Between("pageviews", sep, jan)
	assert.Error(t, err)
}

func TestInnerJoin_Empty(t *testing.T) {
	left := New(0)
	require.NoError(t, left.SetText("id", nil))
	right := New(1)
	require.NoError(t, right.SetText("id", []string{"a"}))
	require.NoError(t, right.SetNumber("y", []float64{1}))

	got, err := InnerJoin(left, right, "id")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
	assert.Equal(t, []string{"id", "y"}, got.Columns())
}

func TestDayNumber(t *testing.T) {
	assert.Equal(t, int64(0), DayNumber(time.Date(1970, 1, 1, 23, 0, 0, 0, time.UTC)))
	assert.Equal(t, int64(17046), DayNumber(time.Date(2016, 9, 2, 0, 0, 0, 0, time.UTC)))
}
