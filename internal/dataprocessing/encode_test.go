package dataprocessing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gafeatures/internal/errors"
	"gafeatures/internal/frame"
	"gafeatures/pkg/contracts/domain"
)

func TestOneHotEncode(t *testing.T) {
	f := frame.New(4)
	require.NoError(t, f.SetText(domain.ColumnVisitorID, []string{"1", "2", "3", "4"}))
	require.NoError(t, f.SetText(domain.ColumnBrowser, []string{"Safari", "Chrome", "Safari", "Edge"}))
	require.NoError(t, f.SetNumber(domain.ColumnWeekday, []float64{0, 6, 6, 3}))

	got, err := NewPreprocessor(nil).OneHotEncode(context.Background(), f, []string{domain.ColumnBrowser, domain.ColumnWeekday})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"fullVisitorId",
		"browser_Chrome", "browser_Edge", "browser_Safari",
		"weekday_0", "weekday_3", "weekday_6",
	}, got.Columns())
	assert.Equal(t, []float64{0, 1, 0, 0}, column(t, got, "browser_Chrome").Num)
	assert.Equal(t, []float64{0, 1, 1, 0}, column(t, got, "weekday_6").Num)

	assert.True(t, f.Has(domain.ColumnBrowser), "input must not change")
}

func TestOneHotEncode_OneActiveIndicatorPerRow(t *testing.T) {
	values := []string{"Windows", "Macintosh", "Linux", "Windows", "Android", "iOS", "Linux"}
	f := frame.New(len(values))
	require.NoError(t, f.SetText(domain.ColumnOperatingSystem, values))

	got, err := NewPreprocessor(nil).OneHotEncode(context.Background(), f, []string{domain.ColumnOperatingSystem})
	require.NoError(t, err)
	require.Equal(t, 5, got.Width())

	for row := 0; row < got.Len(); row++ {
		sum := 0.0
		for _, name := range got.Columns() {
			sum += column(t, got, name).Num[row]
		}
		assert.Equal(t, 1.0, sum, "row %d", row)
	}
}

func TestOneHotEncode_MissingCellIsAllZero(t *testing.T) {
	f := frame.New(3)
	require.NoError(t, f.SetText(domain.ColumnCountry, []string{"Germany", "", "Japan"}))

	got, err := NewPreprocessor(nil).OneHotEncode(context.Background(), f, []string{domain.ColumnCountry})
	require.NoError(t, err)

	assert.Equal(t, []string{"country_Germany", "country_Japan"}, got.Columns())
	assert.Equal(t, []float64{1, 0, 0}, column(t, got, "country_Germany").Num)
	assert.Equal(t, []float64{0, 0, 1}, column(t, got, "country_Japan").Num)
}

func TestOneHotEncode_Errors(t *testing.T) {
	f := frame.New(1)
	require.NoError(t, f.SetText(domain.ColumnBrowser, []string{"Chrome"}))
	require.NoError(t, f.SetNumber("browser_Chrome", []float64{1}))

	p := NewPreprocessor(nil)
	_, err := p.OneHotEncode(context.Background(), f, []string{domain.ColumnBrowser})
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))

	_, err = p.OneHotEncode(context.Background(), f, []string{"city"})
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}

func TestEncodeExplicit(t *testing.T) {
	f := frame.New(4)
	require.NoError(t, f.SetText(domain.ColumnCountry, []string{"United States", "Canada", "United States", ""}))
	require.NoError(t, f.SetText("city", []string{"New York", "Toronto", "Boston", "Chicago"}))

	got, err := EncodeExplicit(f, DefaultExplicitEncodings())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"country_United States",
		"city_New York", "city_Chicago", "city_Austin", "city_Seattle", "city_Palo Alto", "city_Toronto",
	}, got.Columns())
	assert.Equal(t, []float64{1, 0, 1, 0}, column(t, got, "country_United States").Num)
	assert.Equal(t, []float64{0, 0, 0, 1}, column(t, got, "city_Chicago").Num)
	assert.Equal(t, []float64{0, 0, 0, 0}, column(t, got, "city_Austin").Num)

	_, err = EncodeExplicit(frame.New(0), DefaultExplicitEncodings())
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}
