package frame

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(t *testing.T) *Frame {
	t.Helper()
	f := New(3)
	require.NoError(t, f.SetText("fullVisitorId", []string{"007", "42", "007"}))
	require.NoError(t, f.SetNumber("pageviews", []float64{1, math.NaN(), 3}))
	require.NoError(t, f.SetTime("date", []time.Time{
		time.Date(2016, 9, 2, 0, 0, 0, 0, time.UTC),
		{},
		time.Date(2017, 1, 5, 0, 0, 0, 0, time.UTC),
	}))
	return f
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want string
	}{
		{"integer", 3, "3"},
		{"fraction", 0.25, "0.25"},
		{"large", 1.5e7, "15000000"},
		{"negative", -2, "-2"},
		{"missing", math.NaN(), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatNumber(tt.in))
		})
	}
}

func TestFrame_SetRejectsWrongLength(t *testing.T) {
	f := New(2)
	err := f.SetText("a", []string{"x"})
	assert.Error(t, err)
	assert.False(t, f.Has("a"))
}

func TestFrame_SetReplacesInPlace(t *testing.T) {
	f := sample(t)
	require.NoError(t, f.SetNumber("fullVisitorId", []float64{1, 2, 3}))

	assert.Equal(t, []string{"fullVisitorId", "pageviews", "date"}, f.Columns())
	c, ok := f.Column("fullVisitorId")
	require.True(t, ok)
	assert.Equal(t, KindNumber, c.Kind)
}

func TestFrame_DropAndSelect(t *testing.T) {
	f := sample(t)
	f.Drop("pageviews", "unknown")
	assert.Equal(t, []string{"fullVisitorId", "date"}, f.Columns())

	sel, err := f.Select("date", "fullVisitorId")
	require.NoError(t, err)
	assert.Equal(t, []string{"date", "fullVisitorId"}, sel.Columns())

	_, err = f.Select("pageviews")
	assert.ErrorContains(t, err, "pageviews")
}

func TestFrame_RenameDoesNotTouchSharedColumns(t *testing.T) {
	f := sample(t)
	view, err := f.Select("pageviews")
	require.NoError(t, err)

	require.NoError(t, view.Rename(func(s string) string { return s + "_x" }))

	assert.Equal(t, []string{"pageviews_x"}, view.Columns())
	assert.True(t, f.Has("pageviews"))
}

func TestFrame_RenameDuplicate(t *testing.T) {
	f := sample(t)
	err := f.Rename(func(string) string { return "same" })
	assert.Error(t, err)
	assert.Equal(t, []string{"fullVisitorId", "pageviews", "date"}, f.Columns())
}

func TestFrame_Take(t *testing.T) {
	f := sample(t)

	got := f.Take([]int{0, 2})
	assert.Equal(t, 2, got.Len())
	assert.Equal(t, []string{"007", "3", "2017-01-05"}, got.Row(1))

	taken := f.Take([]int{1, -1})
	assert.Equal(t, []string{"42", "", ""}, taken.Row(0))
	assert.Equal(t, []string{"", "", ""}, taken.Row(1))
}

func TestFrame_CloneIsDeep(t *testing.T) {
	f := sample(t)
	c := f.Clone()
	col, _ := c.Column("pageviews")
	col.Num[0] = 99

	orig, _ := f.Column("pageviews")
	assert.Equal(t, 1.0, orig.Num[0])
}

func TestConcat(t *testing.T) {
	a := New(1)
	require.NoError(t, a.SetText("id", []string{"1"}))
	require.NoError(t, a.SetNumber("x", []float64{1}))
	b := New(2)
	require.NoError(t, b.SetText("id", []string{"2", "3"}))
	require.NoError(t, b.SetText("y", []string{"p", "q"}))

	got, err := Concat(a, b)
	require.NoError(t, err)

	assert.Equal(t, 3, got.Len())
	assert.Equal(t, []string{"id", "x", "y"}, got.Columns())
	assert.Equal(t, []string{"1", "1", ""}, got.Row(0))
	assert.Equal(t, []string{"3", "", "q"}, got.Row(2))
}

func TestConcat_KindMismatch(t *testing.T) {
	a := New(1)
	require.NoError(t, a.SetText("x", []string{"1"}))
	b := New(1)
	require.NoError(t, b.SetNumber("x", []float64{1}))

	_, err := Concat(a, b)
	assert.Error(t, err)
}

func TestInnerJoin(t *testing.T) {
	left := New(3)
	require.NoError(t, left.SetText("id", []string{"c", "a", "z"}))
	require.NoError(t, left.SetNumber("x", []float64{3, 1, 26}))
	right := New(2)
	require.NoError(t, right.SetText("id", []string{"a", "c"}))
	require.NoError(t, right.SetNumber("target", []float64{0.5, 1.5}))

	got, err := InnerJoin(left, right, "id")
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "x", "target"}, got.Columns())
	require.Equal(t, 2, got.Len())
	assert.Equal(t, []string{"c", "3", "1.5"}, got.Row(0))
	assert.Equal(t, []string{"a", "1", "0.5"}, got.Row(1))
}

func TestInnerJoin_Errors(t *testing.T) {
	left := New(1)
	require.NoError(t, left.SetText("id", []string{"a"}))
	require.NoError(t, left.SetNumber("x", []float64{1}))

	right := New(1)
	require.NoError(t, right.SetText("id", []string{"a"}))
	require.NoError(t, right.SetNumber("x", []float64{2}))

	_, err := InnerJoin(left, right, "id")
	assert.ErrorContains(t, err, "both sides")

	_, err = InnerJoin(left, right, "missing")
	assert.Error(t, err)
}

func TestAsConversions(t *testing.T) {
	num := &Column{Name: "n", Kind: KindNumber, Num: []float64{20160902, math.NaN()}}
	txt := AsText(num)
	assert.Equal(t, []string{"20160902", ""}, txt.Text)

	back, err := AsNumber(&Column{Name: "t", Kind: KindText, Text: []string{"1.5", "x", ""}})
	require.NoError(t, err)
	assert.Equal(t, 1.5, back.Num[0])
	assert.True(t, math.IsNaN(back.Num[1]))
	assert.True(t, math.IsNaN(back.Num[2]))

	times, err := AsTime(num, DateLayout, "20060102")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2016, 9, 2, 0, 0, 0, 0, time.UTC), times.Times[0])
	assert.True(t, times.Times[1].IsZero())

	_, err = AsTime(&Column{Name: "d", Kind: KindText, Text: []string{"yesterday"}}, DateLayout)
	assert.Error(t, err)
}

func TestReadWriteCSV(t *testing.T) {
	in := "\ufefffullVisitorId,date,pageviews,browser\n" +
		"0001,2016-09-02,3,Chrome\n" +
		"0002,2016-09-03,,Safari\n"

	f, err := ReadCSV(strings.NewReader(in), ReadOptions{
		Kinds: map[string]Kind{"date": KindTime, "pageviews": KindNumber},
	})
	require.NoError(t, err)

	require.Equal(t, 2, f.Len())
	ids, _ := f.Column("fullVisitorId")
	assert.Equal(t, KindText, ids.Kind)
	assert.Equal(t, "0001", ids.Text[0])
	pv, _ := f.Column("pageviews")
	assert.True(t, math.IsNaN(pv.Num[1]))

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, f))
	assert.Equal(t, strings.TrimPrefix(in, "\ufeff"), buf.String())
}

func TestReadCSV_MaxRowsAndErrors(t *testing.T) {
	in := "a,b\n1,2\n3,4\n5,6\n"
	f, err := ReadCSV(strings.NewReader(in), ReadOptions{MaxRows: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, f.Len())

	_, err = ReadCSV(strings.NewReader(""), ReadOptions{})
	assert.Error(t, err)

	_, err = ReadCSV(strings.NewReader("a\nnope\n"), ReadOptions{Kinds: map[string]Kind{"a": KindNumber}})
	assert.ErrorContains(t, err, "not a number")

	_, err = ReadCSV(strings.NewReader("a,a\n1,2\n"), ReadOptions{})
	assert.ErrorContains(t, err, "duplicate")
}

func TestFrame_Shallow(t *testing.T) {
	f := sample(t)
	s := f.Shallow()
	s.Drop("date")
	require.NoError(t, s.SetText("pageviews", []string{"a", "b", "c"}))

	assert.Equal(t, []string{"fullVisitorId", "pageviews", "date"}, f.Columns())
	pv, _ := f.Column("pageviews")
	assert.Equal(t, KindNumber, pv.Kind)
}

func TestReadCSV_DefaultKind(t *testing.T) {
	in := "fullVisitorId,a,b\n0007,1,2.5\n"
	f, err := ReadCSV(strings.NewReader(in), ReadOptions{
		Kinds:   map[string]Kind{"fullVisitorId": KindText},
		Default: KindNumber,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"0007", "1", "2.5"}, f.Row(0))
	b, _ := f.Column("b")
	assert.Equal(t, KindNumber, b.Kind)
}
