package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"gafeatures/internal/errors"
	"gafeatures/internal/frame"
	"gafeatures/pkg/contracts/domain"
)

const (
	// DaysPerMonth is the mean length of a Gregorian month
	DaysPerMonth = 30.436875

	ColumnMonthsAgo     = "nr_months_ago"
	ColumnDaysFirstLast = "days_first_to_last_visit"
	ColumnIntervisit    = "mean_intervisit_time"
	ColumnVisitsMean    = "totalVisits_mean"
)

// SummaryOptions selects the per-customer features built by Summarize
type SummaryOptions struct {
	// TargetStart is the first day of the target window; months are counted back from it
	TargetStart time.Time

	// TrainStart drops sessions before it when set
	TrainStart time.Time

	OneHot        []string
	Booleans      []string
	DistinctCount []string
	NumericMean   []string
	MonthlyCount  []string
	MonthlyMean   []string
	MonthlySum    []string
}

// DefaultSummaryOptions returns the standard feature lists
func DefaultSummaryOptions(targetStart, trainStart time.Time) SummaryOptions {
	return SummaryOptions{
		TargetStart: targetStart,
		TrainStart:  trainStart,
		OneHot: []string{
			"channelGrouping", "browser", "deviceCategory", "operatingSystem", "city", "continent",
			"country", "metro", "region", "subContinent", "adContent",
			"adwordsClickInfo.adNetworkType", "adwordsClickInfo.page", "adwordsClickInfo.slot",
			"campaign", "medium", "source_cat", "weekday", "visitHour",
		},
		Booleans:      []string{"isMobile", "adwordsClickInfo.isVideoAd", "isTrueDirect", "keyword.isGoogle", "keyword.isYouTube"},
		DistinctCount: []string{"networkDomain"},
		NumericMean:   []string{"totalVisits", "keyword.mistakes_Google", "keyword.mistakes_YouTube"},
		MonthlyCount:  []string{"bounces", "newVisits"},
		MonthlyMean:   []string{"hits", "pageviews", "target"},
		MonthlySum:    []string{"hits", "pageviews", "target"},
	}
}

// Summarizer builds per-customer feature rows straight from session rows
type Summarizer struct {
	logger *slog.Logger
}

// NewSummarizer creates a summarizer
func NewSummarizer(logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{logger: logger.With(slog.String("component", "summarizer"))}
}

// customerTable accumulates per-visitor columns in visitor id order
type customerTable struct {
	out      *frame.Frame
	visitors []string
	at       map[string]int
}

func (t *customerTable) add(name string, vals []float64) error {
	if t.out.Has(name) {
		return errors.NewValidationError(fmt.Sprintf("feature column %q produced twice", name), nil)
	}
	return t.out.SetNumber(name, vals)
}

// align reorders a per-visitor column of grouped into table order. Visitors
// absent from grouped get fill.
func (t *customerTable) align(grouped *frame.Frame, name string, fill float64) []float64 {
	keys, _ := grouped.Column(domain.ColumnVisitorID)
	col, _ := grouped.Column(name)
	vals := make([]float64, len(t.visitors))
	for i := range vals {
		vals[i] = fill
	}
	for r, id := range keys.Text {
		if i, ok := t.at[id]; ok {
			vals[i] = col.Num[r]
		}
	}
	return vals
}

// Column names used while summarizing
const (
	monthColumn      = "__month"
	visitMonthColumn = "__visitor_month"
	pairColumn       = "__pair"
	dayColumn        = "__day"
)

// Summarize returns one row per visitor with static features (one-hot
// maxima, distinct counts, boolean shares, numeric means), monthly dynamic
// features counted back from opts.TargetStart and the visit timing features.
// Sessions on or after TargetStart are ignored. Weekday, visit hour, source
// category, keyword flags, target and total visits are derived from the
// session columns when the sessions do not carry them.
func (s *Summarizer) Summarize(ctx context.Context, sessions *frame.Frame, opts SummaryOptions) (*frame.Frame, error) {
	if opts.TargetStart.IsZero() {
		return nil, errors.NewValidationError("summary needs a target start date", nil)
	}
	if !opts.TrainStart.IsZero() && !opts.TrainStart.Before(opts.TargetStart) {
		return nil, errors.NewValidationError("train start must precede target start", nil).
			WithContext("train_start", opts.TrainStart.Format(frame.DateLayout)).
			WithContext("target_start", opts.TargetStart.Format(frame.DateLayout))
	}

	rawDates, err := sessions.MustColumn(domain.ColumnDate)
	if err != nil {
		return nil, errors.NewValidationError("cannot summarize sessions", err)
	}
	dates, err := frame.AsTime(rawDates, frame.DateLayout, compactDateLayout)
	if err != nil {
		return nil, errors.NewValidationError("unparseable session date", err)
	}
	ids, err := sessions.MustColumn(domain.ColumnVisitorID)
	if err != nil {
		return nil, errors.NewValidationError("cannot summarize sessions", err)
	}
	typed := sessions.Shallow()
	if err := typed.Set(dates); err != nil {
		return nil, err
	}
	if err := typed.Set(frame.AsText(ids)); err != nil {
		return nil, err
	}

	data, err := typed.Between(domain.ColumnDate, opts.TrainStart, opts.TargetStart.AddDate(0, 0, -1))
	if err != nil {
		return nil, errors.NewValidationError("cannot select the summary window", err)
	}
	dates, _ = data.Column(domain.ColumnDate)
	if data, err = deriveSessionFeatures(data, dates); err != nil {
		return nil, errors.NewValidationError("cannot derive session features", err)
	}

	keys, err := frame.GroupBy(data, domain.ColumnVisitorID)
	if err != nil {
		return nil, err
	}
	visitorCol, _ := keys.Column(domain.ColumnVisitorID)
	visitors := visitorCol.Text
	table := &customerTable{out: frame.New(len(visitors)), visitors: visitors, at: positions(visitors)}
	if err := table.out.SetText(domain.ColumnVisitorID, visitors); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Summarizing static features",
		slog.Int("sessions", data.Len()),
		slog.Int("visitors", len(visitors)))

	steps := []func(context.Context, *frame.Frame, *customerTable, SummaryOptions) error{
		s.addOneHot,
		s.addDistinctCounts,
		s.addBooleanMeans,
		s.addNumericMeans,
	}
	for _, step := range steps {
		if err := step(ctx, data, table, opts); err != nil {
			return nil, err
		}
	}

	s.logger.InfoContext(ctx, "Summarizing dynamic features")
	months := make([]int, data.Len())
	monthKeys := make([]string, data.Len())
	visitorIDs, _ := data.Column(domain.ColumnVisitorID)
	for i, d := range dates.Times {
		months[i] = MonthsBetween(d, opts.TargetStart)
		monthKeys[i] = frame.JoinKey(visitorIDs.Text[i], strconv.Itoa(months[i]))
	}
	monthly := data.Shallow()
	if err := monthly.SetText(visitMonthColumn, monthKeys); err != nil {
		return nil, err
	}
	if err := monthly.SetNumber(onesColumn, ones(data.Len())); err != nil {
		return nil, err
	}
	offsets := distinctInts(months)

	for _, m := range []struct {
		method  frame.AggFunc
		columns []string
	}{
		{frame.AggMean, opts.MonthlyMean},
		{frame.AggCount, opts.MonthlyCount},
		{frame.AggSum, opts.MonthlySum},
	} {
		if err := s.addMonthly(ctx, monthly, table, offsets, m.columns, m.method); err != nil {
			return nil, err
		}
	}
	if err := addMonthlyVisits(monthly, table, offsets); err != nil {
		return nil, err
	}

	days, err := firstToLastDays(data, dates, table)
	if err != nil {
		return nil, err
	}
	if err := table.add(ColumnDaysFirstLast, days); err != nil {
		return nil, err
	}
	visitsMean, ok := table.out.Column(ColumnVisitsMean)
	if !ok {
		s.logger.WarnContext(ctx, "No visit mean available, inter-visit time set to 0",
			slog.String("column", ColumnVisitsMean))
		visitsMean = &frame.Column{Name: ColumnVisitsMean, Kind: frame.KindNumber, Num: make([]float64, len(visitors))}
	}
	if err := table.add(ColumnIntervisit, MeanIntervisitTime(days, visitsMean.Num)); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Customer summary completed",
		slog.Int("visitors", table.out.Len()),
		slog.Int("columns", table.out.Width()))
	return table.out, nil
}

// present returns the listed columns found in f, warning about the rest
func (s *Summarizer) present(ctx context.Context, f *frame.Frame, columns []string, feature string) []*frame.Column {
	var cols []*frame.Column
	for _, name := range columns {
		col, ok := f.Column(name)
		if !ok {
			s.logger.WarnContext(ctx, "Column not in sessions, feature skipped",
				slog.String("column", name),
				slog.String("feature", feature))
			continue
		}
		cols = append(cols, col)
	}
	return cols
}

// visitorFrame starts a frame holding only the visitor ids of f
func visitorFrame(f *frame.Frame) (*frame.Frame, error) {
	ids, err := f.MustColumn(domain.ColumnVisitorID)
	if err != nil {
		return nil, err
	}
	out := frame.New(f.Len())
	if err := out.Set(ids); err != nil {
		return nil, err
	}
	return out, nil
}

// addOneHot adds the per-visitor maximum of every indicator column
func (s *Summarizer) addOneHot(ctx context.Context, f *frame.Frame, t *customerTable, opts SummaryOptions) error {
	for _, col := range s.present(ctx, f, opts.OneHot, "one-hot") {
		indicators, err := visitorFrame(f)
		if err != nil {
			return err
		}
		var aggs []frame.Agg
		for _, ind := range oneHot(frame.AsText(col)) {
			if strings.Contains(ind.Name, "NaN") {
				continue
			}
			if err := indicators.Set(ind); err != nil {
				return err
			}
			aggs = append(aggs, frame.Agg{Column: ind.Name, Func: frame.AggMax, As: ind.Name})
		}
		peaks, err := frame.GroupBy(indicators, domain.ColumnVisitorID, aggs...)
		if err != nil {
			return errors.NewValidationError("cannot summarize indicators", err).WithContext("column", col.Name)
		}
		for _, agg := range aggs {
			if err := t.add(agg.As, t.align(peaks, agg.As, 0)); err != nil {
				return err
			}
		}
	}
	return nil
}

// addDistinctCounts adds <column>_#diff, the number of distinct non-missing values
func (s *Summarizer) addDistinctCounts(ctx context.Context, f *frame.Frame, t *customerTable, opts SummaryOptions) error {
	ids, _ := f.Column(domain.ColumnVisitorID)
	for _, col := range s.present(ctx, f, opts.DistinctCount, "distinct count") {
		var keys []string
		for r := 0; r < col.Len(); r++ {
			if !col.IsMissing(r) {
				keys = append(keys, frame.JoinKey(ids.Text[r], col.String(r)))
			}
		}
		pairs := frame.New(len(keys))
		if err := pairs.SetText(pairColumn, keys); err != nil {
			return err
		}
		distinct, err := frame.GroupBy(pairs, pairColumn)
		if err != nil {
			return err
		}

		pairKeys, _ := distinct.Column(pairColumn)
		owners := make([]string, len(pairKeys.Text))
		for i, k := range pairKeys.Text {
			owners[i] = frame.SplitKey(k)[0]
		}
		perVisitor := frame.New(len(owners))
		if err := perVisitor.SetText(domain.ColumnVisitorID, owners); err != nil {
			return err
		}
		if err := perVisitor.SetNumber(onesColumn, ones(len(owners))); err != nil {
			return err
		}
		counts, err := frame.GroupBy(perVisitor, domain.ColumnVisitorID,
			frame.Agg{Column: onesColumn, Func: frame.AggCount, As: onesColumn})
		if err != nil {
			return err
		}
		if err := t.add(col.Name+"_#diff", t.align(counts, onesColumn, 0)); err != nil {
			return err
		}
	}
	return nil
}

// addBooleanMeans adds <column>_avg, the share of sessions with the flag set
func (s *Summarizer) addBooleanMeans(ctx context.Context, f *frame.Frame, t *customerTable, opts SummaryOptions) error {
	for _, col := range s.present(ctx, f, opts.Booleans, "boolean mean") {
		flags := make([]float64, col.Len())
		for r := range flags {
			flags[r] = BoolValue(col, r)
		}
		shares, err := visitorFrame(f)
		if err != nil {
			return err
		}
		name := col.Name + "_avg"
		if err := shares.SetNumber(name, flags); err != nil {
			return err
		}
		means, err := frame.GroupBy(shares, domain.ColumnVisitorID,
			frame.Agg{Column: name, Func: frame.AggMean, As: name})
		if err != nil {
			return err
		}
		if err := t.add(name, t.align(means, name, 0)); err != nil {
			return err
		}
	}
	return nil
}

// addNumericMeans adds <column>_mean
func (s *Summarizer) addNumericMeans(ctx context.Context, f *frame.Frame, t *customerTable, opts SummaryOptions) error {
	cols := s.present(ctx, f, opts.NumericMean, "numeric mean")
	if len(cols) == 0 {
		return nil
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	described, err := SummarizeNumerical(f, names, []string{DescribeMean})
	if err != nil {
		return err
	}
	for _, name := range described.Columns()[1:] {
		if err := t.add(name, t.align(described, name, math.NaN())); err != nil {
			return err
		}
	}
	return nil
}

// addMonthly adds <column>_<n>_<method> per month offset, 0 where a visitor
// has no value that month
func (s *Summarizer) addMonthly(ctx context.Context, f *frame.Frame, t *customerTable, offsets []int, columns []string, method frame.AggFunc) error {
	for _, col := range s.present(ctx, f, columns, "monthly "+string(method)) {
		grouped, err := frame.GroupBy(f, visitMonthColumn, frame.Agg{Column: col.Name, Func: method, As: col.Name})
		if err != nil {
			return errors.NewValidationError("cannot aggregate monthly values", err).WithContext("column", col.Name)
		}
		if err := addPerMonth(t, grouped, col.Name, offsets, func(n int) string {
			return fmt.Sprintf("%s_%d_%s", col.Name, n, method)
		}); err != nil {
			return err
		}
	}
	return nil
}

// addMonthlyVisits adds nr_months_ago_<n>, the session count per month offset
func addMonthlyVisits(f *frame.Frame, t *customerTable, offsets []int) error {
	grouped, err := frame.GroupBy(f, visitMonthColumn, frame.Agg{Column: onesColumn, Func: frame.AggCount, As: onesColumn})
	if err != nil {
		return err
	}
	return addPerMonth(t, grouped, onesColumn, offsets, func(n int) string {
		return ColumnMonthsAgo + "_" + strconv.Itoa(n)
	})
}

// addPerMonth spreads a column grouped by (visitor, month offset) into one
// table column per offset. Missing and NaN cells become 0.
func addPerMonth(t *customerTable, grouped *frame.Frame, value string, offsets []int, name func(int) string) error {
	keys, _ := grouped.Column(visitMonthColumn)
	vals, _ := grouped.Column(value)
	perMonth := make(map[int][]float64, len(offsets))
	for _, n := range offsets {
		perMonth[n] = make([]float64, len(t.visitors))
	}
	for r, key := range keys.Text {
		parts := frame.SplitKey(key)
		n, err := strconv.Atoi(parts[1])
		if err != nil {
			return err
		}
		if v := vals.Num[r]; !math.IsNaN(v) {
			perMonth[n][t.at[parts[0]]] = v
		}
	}
	for _, n := range offsets {
		if err := t.add(name(n), perMonth[n]); err != nil {
			return err
		}
	}
	return nil
}

// firstToLastDays is the span in days between each visitor's first and last session
func firstToLastDays(f *frame.Frame, dates *frame.Column, t *customerTable) ([]float64, error) {
	dayNumbers := make([]float64, len(dates.Times))
	for i, d := range dates.Times {
		dayNumbers[i] = float64(frame.DayNumber(d))
	}
	spans, err := visitorFrame(f)
	if err != nil {
		return nil, err
	}
	if err := spans.SetNumber(dayColumn, dayNumbers); err != nil {
		return nil, err
	}
	bounds, err := frame.GroupBy(spans, domain.ColumnVisitorID,
		frame.Agg{Column: dayColumn, Func: frame.AggMin, As: "first"},
		frame.Agg{Column: dayColumn, Func: frame.AggMax, As: "last"})
	if err != nil {
		return nil, err
	}
	first := t.align(bounds, "first", 0)
	last := t.align(bounds, "last", 0)
	days := make([]float64, len(first))
	for i := range days {
		days[i] = last[i] - first[i]
	}
	return days, nil
}

// MonthsBetween returns the whole number of mean-length months from start to end
func MonthsBetween(start, end time.Time) int {
	days := end.Sub(start).Hours() / 24
	return int(math.Floor(days / DaysPerMonth))
}

// MeanIntervisitTime divides the first-to-last span by the number of gaps
// between visits. Visitors with at most one visit get 0.
func MeanIntervisitTime(days, visitsMean []float64) []float64 {
	out := make([]float64, len(days))
	for i := range days {
		if visitsMean[i] > 1 {
			out[i] = days[i] / (visitsMean[i] - 1)
		}
	}
	return out
}

// BoolValue normalises a flag cell to 1 or 0. Text counts as set when it
// reads True, true or 1; numbers when non-zero; missing cells are 0.
func BoolValue(col *frame.Column, row int) float64 {
	switch col.Kind {
	case frame.KindNumber:
		if v := col.Num[row]; !math.IsNaN(v) && v != 0 {
			return 1
		}
		return 0
	case frame.KindText:
		switch col.Text[row] {
		case "True", "true", "1", "1.0":
			return 1
		}
		return 0
	default:
		return 0
	}
}

func distinctInts(values []int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out
}
