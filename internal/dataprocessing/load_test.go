package dataprocessing

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gafeatures/internal/errors"
	"gafeatures/internal/frame"
	"gafeatures/pkg/contracts/domain"
)

func TestLoadSessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flat.csv")
	content := "date,fullVisitorId,operatingSystem,country,browser,pageviews,transactions,visits,transactionRevenue,visitStartTime,city\n" +
		"2016-09-02,0001,Windows,Germany,Chrome,3,,1,0,1472830385,Berlin\n" +
		"2016-09-03,0002,Macintosh,France,Safari,1,1,1,25000000,1472830390,Paris\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	f, err := LoadSessions(path, 0)
	require.NoError(t, err)

	require.Equal(t, 2, f.Len())
	ids := column(t, f, domain.ColumnVisitorID)
	assert.Equal(t, frame.KindText, ids.Kind)
	assert.Equal(t, []string{"0001", "0002"}, ids.Text)
	assert.Equal(t, frame.KindTime, column(t, f, domain.ColumnDate).Kind)
	assert.True(t, math.IsNaN(column(t, f, domain.ColumnTransactions).Num[0]))
	assert.Equal(t, frame.KindText, column(t, f, "city").Kind)

	head, err := LoadSessions(path, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, head.Len())
}

func TestLoadSessions_Missing(t *testing.T) {
	_, err := LoadSessions(filepath.Join(t.TempDir(), "nope.csv"), 0)
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
}

func TestWriteTableAndLoadPreprocessed(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "output")
	names := DefaultPreprocessedNames()

	x := frame.New(2)
	require.NoError(t, x.SetText(domain.ColumnVisitorID, []string{"0001", "0002"}))
	require.NoError(t, x.SetNumber("pageviews_9_1", []float64{3, math.NaN()}))
	y := frame.New(2)
	require.NoError(t, y.SetText(domain.ColumnVisitorID, []string{"0001", "0002"}))
	require.NoError(t, y.SetNumber(domain.ColumnTarget, []float64{math.Log1p(10), 0}))

	require.NoError(t, WriteTable(filepath.Join(dir, names.XTrain), x))
	require.NoError(t, WriteTable(filepath.Join(dir, names.YTrain), y))
	require.NoError(t, WriteTable(filepath.Join(dir, names.XTest), x))

	got, err := LoadPreprocessed(dir, names, 0, 1)
	require.NoError(t, err)

	assert.Equal(t, []string{"0001", "0002"}, column(t, got.XTrain, domain.ColumnVisitorID).Text)
	pv := column(t, got.XTrain, "pageviews_9_1")
	assert.Equal(t, frame.KindNumber, pv.Kind)
	assert.True(t, math.IsNaN(pv.Num[1]))
	assert.InDelta(t, math.Log1p(10), column(t, got.YTrain, domain.ColumnTarget).Num[0], 1e-12)
	assert.Equal(t, 1, got.XTest.Len())

	require.NoError(t, os.Remove(filepath.Join(dir, names.YTrain)))
	_, err = LoadPreprocessed(dir, names, 0, 0)
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
}
