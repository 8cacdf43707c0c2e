package dataprocessing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gafeatures/internal/frame"
	"gafeatures/pkg/contracts/domain"
)

type session struct {
	id           string
	date         string
	os           string
	country      string
	browser      string
	pageviews    float64
	transactions float64
	visits       float64
	revenue      float64
	start        float64
}

func sessionFrame(t *testing.T, sessions []session) *frame.Frame {
	t.Helper()
	n := len(sessions)
	dates := make([]time.Time, n)
	ids, oses, countries, browsers := make([]string, n), make([]string, n), make([]string, n), make([]string, n)
	pv, tx, visits, rev, start := make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n)
	for i, s := range sessions {
		d, err := time.Parse(frame.DateLayout, s.date)
		require.NoError(t, err)
		dates[i] = d
		ids[i], oses[i], countries[i], browsers[i] = s.id, s.os, s.country, s.browser
		pv[i], tx[i], visits[i], rev[i], start[i] = s.pageviews, s.transactions, s.visits, s.revenue, s.start
	}

	f := frame.New(n)
	require.NoError(t, f.SetTime(domain.ColumnDate, dates))
	require.NoError(t, f.SetText(domain.ColumnVisitorID, ids))
	require.NoError(t, f.SetText(domain.ColumnOperatingSystem, oses))
	require.NoError(t, f.SetText(domain.ColumnCountry, countries))
	require.NoError(t, f.SetText(domain.ColumnBrowser, browsers))
	require.NoError(t, f.SetNumber(domain.ColumnPageviews, pv))
	require.NoError(t, f.SetNumber(domain.ColumnTransactions, tx))
	require.NoError(t, f.SetNumber(domain.ColumnVisits, visits))
	require.NoError(t, f.SetNumber(domain.ColumnRevenue, rev))
	require.NoError(t, f.SetNumber(domain.ColumnVisitStartTime, start))
	return f
}

func column(t *testing.T, f *frame.Frame, name string) *frame.Column {
	t.Helper()
	c, err := f.MustColumn(name)
	require.NoError(t, err)
	return c
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(frame.DateLayout, s)
	require.NoError(t, err)
	return d
}
