package dataprocessing

import (
	"math"
	"strings"
	"time"

	"gafeatures/internal/frame"
	"gafeatures/pkg/contracts/domain"
)

// sourceCategories map a substring of the lower-cased traffic source to its category
var sourceCategories = []struct {
	match    string
	category string
}{
	{"(direct)", "direct"},
	{"google", "google"},
	{"youtube", "youtube"},
	{"facebook", "facebook"},
	{"baidu", "baidu"},
	{"bing", "bing"},
	{"yahoo", "yahoo"},
}

// SourceCategory groups a traffic source into a handful of categories.
// An empty source stays missing; unknown sources are "other".
func SourceCategory(source string) string {
	if source == "" {
		return ""
	}
	s := strings.ToLower(source)
	for _, c := range sourceCategories {
		if strings.Contains(s, c.match) {
			return c.category
		}
	}
	return "other"
}

// deriveSessionFeatures adds the per-session columns the customer summary
// reads when the sessions do not carry them already. The date column must
// be typed. Columns whose source is absent are left out.
func deriveSessionFeatures(sessions *frame.Frame, dates *frame.Column) (*frame.Frame, error) {
	out := sessions.Shallow()

	if !out.Has(domain.ColumnWeekday) {
		weekday := make([]string, len(dates.Times))
		for i, t := range dates.Times {
			if !t.IsZero() {
				weekday[i] = frame.FormatNumber(float64((int(t.Weekday()) + 6) % 7))
			}
		}
		if err := out.SetText(domain.ColumnWeekday, weekday); err != nil {
			return nil, err
		}
	}

	if start, ok := out.Column(domain.ColumnVisitStartTime); ok && !out.Has(domain.ColumnVisitHour) {
		hours := make([]string, start.Len())
		for i := range hours {
			v := start.Float(i)
			if math.IsNaN(v) || v <= 0 {
				continue
			}
			hours[i] = frame.FormatNumber(float64(time.Unix(int64(v), 0).UTC().Hour()))
		}
		if err := out.SetText(domain.ColumnVisitHour, hours); err != nil {
			return nil, err
		}
	}

	if source, ok := out.Column(domain.ColumnSource); ok && !out.Has(domain.ColumnSourceCategory) {
		text := frame.AsText(source).Text
		cats := make([]string, len(text))
		for i, s := range text {
			cats[i] = SourceCategory(s)
		}
		if err := out.SetText(domain.ColumnSourceCategory, cats); err != nil {
			return nil, err
		}
	}

	if keyword, ok := out.Column(domain.ColumnKeyword); ok {
		text := frame.AsText(keyword).Text
		for _, brand := range []struct{ column, match string }{
			{"keyword.isGoogle", "google"},
			{"keyword.isYouTube", "youtube"},
		} {
			if out.Has(brand.column) {
				continue
			}
			flags := make([]float64, len(text))
			for i, k := range text {
				if strings.Contains(strings.ToLower(k), brand.match) {
					flags[i] = 1
				}
			}
			if err := out.SetNumber(brand.column, flags); err != nil {
				return nil, err
			}
		}
	}

	if revenue, ok := out.Column(domain.ColumnRevenue); ok && !out.Has(domain.ColumnTarget) {
		target := make([]float64, revenue.Len())
		for i := range target {
			if v := revenue.Float(i); !math.IsNaN(v) {
				target[i] = v
			}
		}
		if err := out.SetNumber(domain.ColumnTarget, target); err != nil {
			return nil, err
		}
	}

	if !out.Has(domain.ColumnTotalVisits) {
		visits, err := sessionCounts(out)
		if err != nil {
			return nil, err
		}
		if err := out.SetNumber(domain.ColumnTotalVisits, visits); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// sessionCounts gives every session the number of sessions of its visitor
func sessionCounts(sessions *frame.Frame) ([]float64, error) {
	ids, err := sessions.MustColumn(domain.ColumnVisitorID)
	if err != nil {
		return nil, err
	}
	ids = frame.AsText(ids)
	keyed := frame.New(sessions.Len())
	if err := keyed.Set(ids); err != nil {
		return nil, err
	}
	if err := keyed.SetNumber(onesColumn, ones(sessions.Len())); err != nil {
		return nil, err
	}
	counts, err := frame.GroupBy(keyed, domain.ColumnVisitorID,
		frame.Agg{Column: onesColumn, Func: frame.AggCount, As: onesColumn})
	if err != nil {
		return nil, err
	}

	visitors, _ := counts.Column(domain.ColumnVisitorID)
	n, _ := counts.Column(onesColumn)
	perVisitor := make(map[string]float64, counts.Len())
	for i, id := range visitors.Text {
		perVisitor[id] = n.Num[i]
	}
	out := make([]float64, len(ids.Text))
	for i, id := range ids.Text {
		out[i] = perVisitor[id]
	}
	return out, nil
}

// onesColumn is a constant 1 column counted by group-bys
const onesColumn = "__one"

func ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}
