package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gafeatures/internal/dataprocessing"
	"gafeatures/internal/infrastructure"
	"gafeatures/pkg/contracts"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(infrastructure.ResetLoggerForTesting)

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeRaw(t *testing.T, path string, rows [][]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := csv.NewWriter(f)
	require.NoError(t, w.Write([]string{"channelGrouping", "date", "device", "fullVisitorId", "geoNetwork", "sessionId", "totals", "trafficSource", "visitStartTime"}))
	require.NoError(t, w.WriteAll(rows))
}

func session(date, id, browser, totals string) []string {
	return []string{
		"Direct", date,
		`{"browser": "` + browser + `", "operatingSystem": "Linux", "isMobile": false}`,
		id,
		`{"country": "Germany"}`,
		id + "_1", totals, `{"source": "(direct)"}`, "1472830385",
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, contracts.Version)
}

func TestVersionCommand_JSON(t *testing.T) {
	out, err := execute(t, "version", "--json")
	require.NoError(t, err)

	var info contracts.VersionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, contracts.Version, info.Version)
	assert.Equal(t, contracts.DataFormatVersion, info.DataFormat)
}

func TestUnknownFlag(t *testing.T) {
	_, err := execute(t, "flatten", "--bogus")
	assert.Error(t, err)
}

func TestFlattenSplitSummarize(t *testing.T) {
	base := t.TempDir()
	writeRaw(t, filepath.Join(base, "data", "raw_train.csv"), [][]string{
		session("20160902", "0001", "Chrome", `{"visits": "1", "hits": "2", "pageviews": "2"}`),
		session("20171203", "0001", "Chrome", `{"visits": "1", "pageviews": "4", "transactionRevenue": "10000000"}`),
		session("20161101", "0002", "Firefox", `{"visits": "1", "pageviews": "1"}`),
	})
	writeRaw(t, filepath.Join(base, "data", "raw_test.csv"), [][]string{
		session("20170905", "0003", "Chrome", `{"visits": "1", "pageviews": "3"}`),
	})

	_, err := execute(t, "--base-dir", base, "flatten", "--in", "raw_train.csv", "--out", "train_flat.csv")
	require.NoError(t, err)
	_, err = execute(t, "--base-dir", base, "flatten", "--in", "raw_test.csv", "--out", "test_flat.csv")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(base, "data", "train_flat.csv"))

	outDir := filepath.Join(base, "features")
	_, err = execute(t, "--base-dir", base, "--metrics-file", "metrics.prom", "split", "--out-dir", outDir)
	require.NoError(t, err)

	got, err := dataprocessing.LoadPreprocessed(outDir, dataprocessing.DefaultPreprocessedNames(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, got.XTrain.Len())
	assert.Equal(t, got.XTrain.Columns(), got.XTest.Columns())
	assert.FileExists(t, filepath.Join(base, "output", "metrics.prom"))

	_, err = execute(t, "--base-dir", base, "summarize", "--in", "train_flat.csv", "--target-start", "2017-12-01")
	require.NoError(t, err)
	customers, err := os.ReadFile(filepath.Join(base, "output", "customers.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(customers), "fullVisitorId")
}

func TestFlattenCustomerSchema(t *testing.T) {
	base := t.TempDir()
	writeRaw(t, filepath.Join(base, "data", "raw_train.csv"), [][]string{
		session("20160902", "0001", "Chrome", `{"visits": "1", "hits": "2", "pageviews": "2"}`),
		session("20161101", "0002", "Firefox", `{"visits": "1", "pageviews": "1"}`),
	})

	_, err := execute(t, "--base-dir", base, "flatten", "--in", "raw_train.csv", "--out", "wide.csv", "--schema", "customers")
	require.NoError(t, err)
	_, err = execute(t, "--base-dir", base, "summarize", "--in", "wide.csv", "--target-start", "2017-12-01")
	require.NoError(t, err)

	f, err := os.Open(filepath.Join(base, "output", "customers.csv"))
	require.NoError(t, err)
	defer f.Close()
	header, err := csv.NewReader(f).Read()
	require.NoError(t, err)
	assert.Contains(t, header, "isMobile_avg")
	assert.Contains(t, header, "source_cat_direct")
	assert.Contains(t, header, "hits_14_sum")
	assert.Contains(t, header, "mean_intervisit_time")

	_, err = execute(t, "--base-dir", base, "flatten", "--in", "raw_train.csv", "--out", "x.csv", "--schema", "wide")
	assert.ErrorContains(t, err, "--schema")
}

func TestSummarizeRejectsBadDate(t *testing.T) {
	base := t.TempDir()
	_, err := execute(t, "--base-dir", base, "summarize", "--in", "x.csv", "--target-start", "December")
	assert.ErrorContains(t, err, "target-start")
}

func TestRunMissingInputs(t *testing.T) {
	base := t.TempDir()
	_, err := execute(t, "--base-dir", base, "run")
	assert.Error(t, err)
}
