package dataprocessing

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"gafeatures/internal/errors"
	"gafeatures/internal/frame"
	"gafeatures/pkg/contracts/domain"
)

// DateRange is an inclusive range of calendar days
type DateRange struct {
	From time.Time
	To   time.Time
}

// ParseDateRange parses two YYYY-MM-DD bounds
func ParseDateRange(from, to string) (DateRange, error) {
	f, err := time.Parse(frame.DateLayout, from)
	if err != nil {
		return DateRange{}, errors.NewValidationError("invalid range start", err)
	}
	t, err := time.Parse(frame.DateLayout, to)
	if err != nil {
		return DateRange{}, errors.NewValidationError("invalid range end", err)
	}
	if t.Before(f) {
		return DateRange{}, errors.NewValidationError("range ends before it starts", nil).
			WithContext("from", from).
			WithContext("to", to)
	}
	return DateRange{From: f, To: t}, nil
}

// String renders the range for logs
func (r DateRange) String() string {
	return r.From.Format(frame.DateLayout) + ".." + r.To.Format(frame.DateLayout)
}

// SplitOptions are the windows and reduction parameters of SplitData
type SplitOptions struct {
	XTrain DateRange
	YTrain DateRange
	XTest  DateRange

	KeepFraction  float64 `validate:"gte=0,lte=1"`
	MaxCategories int     `validate:"gte=1"`
}

// DefaultSplitOptions returns the standard windows: train features from
// August 2016 to November 2017, targets for December 2017 and January 2018,
// test features from August 2017 to November 2018.
func DefaultSplitOptions() SplitOptions {
	mustRange := func(from, to string) DateRange {
		r, err := ParseDateRange(from, to)
		if err != nil {
			panic(err)
		}
		return r
	}
	return SplitOptions{
		XTrain:        mustRange("2016-08-01", "2017-11-30"),
		YTrain:        mustRange("2017-12-01", "2018-01-31"),
		XTest:         mustRange("2017-08-01", "2018-11-30"),
		KeepFraction:  0.5,
		MaxCategories: 10,
	}
}

// SplitResult holds the three aligned output tables
type SplitResult struct {
	XTrain *frame.Frame
	YTrain *frame.Frame
	XTest  *frame.Frame
}

// ReducedColumns are collapsed to their dominant categories before encoding
var ReducedColumns = []string{
	domain.ColumnOperatingSystem,
	domain.ColumnCountry,
	domain.ColumnBrowser,
}

var validate = validator.New()

// SplitData builds the train features, train targets and test features
// from flattened train and test sessions. The returned x_train and y_train
// share visitor set and row order, and x_train and x_test share columns.
func (p *Preprocessor) SplitData(ctx context.Context, train, test *frame.Frame, opts SplitOptions) (*SplitResult, error) {
	if err := validate.Struct(opts); err != nil {
		return nil, errors.NewValidationError("invalid split options", err)
	}

	sessions, err := frame.Concat(train, test)
	if err != nil {
		return nil, errors.NewValidationError("train and test sessions do not line up", err)
	}
	sessions = sessions.Shallow()

	for _, name := range []string{domain.ColumnTransactions, domain.ColumnRevenue} {
		if err := fillZero(sessions, name); err != nil {
			return nil, err
		}
	}
	if err := addWeekday(sessions); err != nil {
		return nil, err
	}

	p.logger.InfoContext(ctx, "Grouping sessions per month", slog.Int("sessions", sessions.Len()))
	grouped, err := GroupMonthly(sessions, DefaultGroupSpec())
	if err != nil {
		return nil, err
	}

	reduced, err := ReduceCategories(grouped, ReducedColumns, opts.KeepFraction, opts.MaxCategories, domain.ColumnRevenue)
	if err != nil {
		return nil, err
	}
	encoded, err := p.OneHotEncode(ctx, reduced, append(append([]string{}, ReducedColumns...), domain.ColumnWeekday))
	if err != nil {
		return nil, err
	}

	var windows [3]*frame.Frame
	for i, r := range []DateRange{opts.XTrain, opts.YTrain, opts.XTest} {
		if windows[i], err = encoded.Between(domain.ColumnDate, r.From, r.To); err != nil {
			return nil, errors.NewValidationError("cannot slice by date", err).
				WithContext("window", r.String())
		}
	}
	xTrainRows, yTrainRows, xTestRows := windows[0], windows[1], windows[2]

	p.logger.InfoContext(ctx, "Sliced monthly rows by window",
		slog.Int("x_train", xTrainRows.Len()),
		slog.Int("y_train", yTrainRows.Len()),
		slog.Int("x_test", xTestRows.Len()))

	yTrain, err := buildTarget(yTrainRows)
	if err != nil {
		return nil, err
	}

	xTrain, err := Aggregate(xTrainRows)
	if err != nil {
		return nil, err
	}
	xTest, err := Aggregate(xTestRows)
	if err != nil {
		return nil, err
	}
	if err := xTrain.Rename(YearsToOrdinals(opts.XTrain)); err != nil {
		return nil, errors.NewValidationError("cannot align train columns", err)
	}
	if err := xTest.Rename(YearsToOrdinals(opts.XTest)); err != nil {
		return nil, errors.NewValidationError("cannot align test columns", err)
	}

	var common []string
	for _, name := range xTrain.Columns() {
		if xTest.Has(name) {
			common = append(common, name)
		}
	}
	p.logger.InfoContext(ctx, "Aligned feature columns",
		slog.Int("train_columns", xTrain.Width()),
		slog.Int("test_columns", xTest.Width()),
		slog.Int("common_columns", len(common)))

	xTrain, err = xTrain.Select(common...)
	if err != nil {
		return nil, err
	}
	xTest, err = xTest.Select(common...)
	if err != nil {
		return nil, err
	}

	joined, err := frame.InnerJoin(xTrain, yTrain, domain.ColumnVisitorID)
	if err != nil {
		return nil, errors.NewValidationError("cannot join features with targets", err)
	}
	result := &SplitResult{XTest: xTest}
	if result.XTrain, err = joined.Select(common...); err != nil {
		return nil, err
	}
	if result.YTrain, err = joined.Select(domain.ColumnVisitorID, domain.ColumnTarget); err != nil {
		return nil, err
	}

	p.logger.InfoContext(ctx, "Split completed",
		slog.Int("train_visitors", result.XTrain.Len()),
		slog.Int("test_visitors", result.XTest.Len()))
	return result, nil
}

// YearsToOrdinals maps year tokens of a column name within the range to
// their position counted from the range start, so "pageviews_9_2016" in a
// window starting 2016 becomes "pageviews_9_1".
func YearsToOrdinals(r DateRange) func(string) string {
	first, last := r.From.Year(), r.To.Year()
	return func(name string) string {
		tokens := strings.Split(name, "_")
		for i, tok := range tokens {
			if len(tok) != 4 {
				continue
			}
			year, err := strconv.Atoi(tok)
			if err != nil || year < first || year > last {
				continue
			}
			tokens[i] = strconv.Itoa(year - first + 1)
		}
		return strings.Join(tokens, "_")
	}
}

// buildTarget sums revenue per visitor and applies log1p
func buildTarget(f *frame.Frame) (*frame.Frame, error) {
	if _, err := f.MustColumn(domain.ColumnRevenue); err != nil {
		return nil, errors.NewValidationError("cannot build target", err)
	}
	ids, err := f.MustColumn(domain.ColumnVisitorID)
	if err != nil {
		return nil, errors.NewValidationError("cannot build target", err)
	}
	keyed := f.Shallow()
	if err := keyed.Set(frame.AsText(ids)); err != nil {
		return nil, err
	}

	out, err := frame.GroupBy(keyed, domain.ColumnVisitorID,
		frame.Agg{Column: domain.ColumnRevenue, Func: frame.AggSum, As: domain.ColumnTarget})
	if err != nil {
		return nil, errors.NewValidationError("cannot build target", err)
	}
	target, _ := out.Column(domain.ColumnTarget)
	for i, v := range target.Num {
		target.Num[i] = math.Log1p(v)
	}
	return out, nil
}

func fillZero(f *frame.Frame, name string) error {
	col, err := f.MustColumn(name)
	if err != nil {
		return errors.NewValidationError("cannot fill missing values", err)
	}
	nums, err := frame.AsNumber(col)
	if err != nil {
		return errors.NewValidationError("cannot fill missing values", err)
	}
	for i, v := range nums.Num {
		if math.IsNaN(v) {
			nums.Num[i] = 0
		}
	}
	return f.Set(nums)
}

// addWeekday types the date column and derives the weekday, Monday = 0
func addWeekday(f *frame.Frame) error {
	col, err := f.MustColumn(domain.ColumnDate)
	if err != nil {
		return errors.NewValidationError("cannot derive weekday", err)
	}
	dates, err := frame.AsTime(col, frame.DateLayout, compactDateLayout)
	if err != nil {
		return errors.NewValidationError("unparseable session date", err)
	}
	if err := f.Set(dates); err != nil {
		return err
	}

	weekday := make([]float64, len(dates.Times))
	for i, t := range dates.Times {
		if t.IsZero() {
			weekday[i] = math.NaN()
			continue
		}
		weekday[i] = float64((int(t.Weekday()) + 6) % 7)
	}
	return f.SetNumber(domain.ColumnWeekday, weekday)
}
