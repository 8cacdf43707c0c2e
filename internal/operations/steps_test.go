package operations_test

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gafeatures/internal/config"
	"gafeatures/internal/dataprocessing"
	"gafeatures/internal/operations"
	"gafeatures/internal/operations/testutil"
	"gafeatures/internal/store"
	"gafeatures/pkg/contracts/domain"
)

var rawHeader = []string{"channelGrouping", "date", "device", "fullVisitorId", "geoNetwork", "sessionId", "totals", "trafficSource", "visitStartTime"}

func rawSession(date, id, browser, country, totals string) []string {
	return []string{
		"Organic Search",
		date,
		`{"browser": "` + browser + `", "operatingSystem": "Windows", "isMobile": false}`,
		id,
		`{"country": "` + country + `", "city": "not available in demo dataset"}`,
		id + "_1",
		totals,
		`{"source": "google"}`,
		"1472830385",
	}
}

func writeRawFile(t *testing.T, path string, rows [][]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()

	w := csv.NewWriter(out)
	require.NoError(t, w.Write(rawHeader))
	require.NoError(t, w.WriteAll(rows))
}

func pipelineSetup(t *testing.T) (*config.Config, *config.Paths) {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.BaseDir = t.TempDir()
	cfg.Export.Excel = true
	cfg.Export.SQLite = true

	paths, err := config.ResolvePaths(cfg.Paths)
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirectories())

	writeRawFile(t, paths.GetDataPath(cfg.Paths.TrainFile), [][]string{
		rawSession("20160902", "0001", "Chrome", "United States", `{"visits": "1", "hits": "3", "pageviews": "3"}`),
		rawSession("20171205", "0001", "Chrome", "United States", `{"visits": "1", "pageviews": "2", "transactions": "1", "transactionRevenue": "25000000"}`),
		rawSession("20161010", "0002", "Safari", "France", `{"visits": "1", "pageviews": "1"}`),
		rawSession("20180110", "0002", "Safari", "France", `{"visits": "1", "pageviews": "1"}`),
	})
	writeRawFile(t, paths.GetDataPath(cfg.Paths.TestFile), [][]string{
		rawSession("20170903", "0003", "Chrome", "United States", `{"visits": "1", "pageviews": "2"}`),
	})
	return cfg, paths
}

func TestPipeline_EndToEnd(t *testing.T) {
	cfg, paths := pipelineSetup(t)
	ctx := context.Background()

	m := operations.NewManager(nil, testutil.FastConfig(), nil, nil)
	require.NoError(t, operations.RegisterPipeline(m, operations.NewPipelineDeps(cfg, paths, nil, nil)))

	resp, err := m.Execute(ctx, operations.OperationRequest{})
	require.NoError(t, err)
	assert.Equal(t, operations.OperationStatusCompleted, resp.Status)
	for _, id := range []string{operations.StepIDFlattenTrain, operations.StepIDFlattenTest, operations.StepIDSplit, operations.StepIDExport} {
		testutil.AssertStepStatus(t, resp, id, operations.StepStatusCompleted)
	}
	assert.Equal(t, 4, resp.Steps[operations.StepIDFlattenTrain].Metadata["rows"])

	assert.FileExists(t, paths.GetDataPath(config.FlatTrainFile))
	assert.FileExists(t, paths.GetDataPath(config.FlatTestFile))
	assert.FileExists(t, paths.GetOutputPath(cfg.Export.ExcelFile))

	got, err := dataprocessing.LoadPreprocessed(paths.OutputDir, dataprocessing.DefaultPreprocessedNames(), 0, 0)
	require.NoError(t, err)

	xIDs, _ := got.XTrain.Column(domain.ColumnVisitorID)
	yIDs, _ := got.YTrain.Column(domain.ColumnVisitorID)
	assert.Equal(t, []string{"0001", "0002"}, xIDs.Text)
	assert.Equal(t, xIDs.Text, yIDs.Text)
	assert.Equal(t, got.XTrain.Columns(), got.XTest.Columns())

	db, err := store.Open(paths.GetOutputPath(cfg.Export.SQLiteFile), nil)
	require.NoError(t, err)
	defer db.Close()
	tables, err := db.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{operations.TableXTest, operations.TableXTrain, operations.TableYTrain}, tables)

	y, err := db.ReadTable(ctx, operations.TableYTrain)
	require.NoError(t, err)
	assert.Equal(t, 2, y.Len())
}

func TestPipeline_MissingInputFailsFlatten(t *testing.T) {
	cfg, paths := pipelineSetup(t)
	require.NoError(t, os.Remove(paths.GetDataPath(cfg.Paths.TestFile)))

	m := operations.NewManager(nil, testutil.FastConfig(), nil, nil)
	require.NoError(t, operations.RegisterPipeline(m, operations.NewPipelineDeps(cfg, paths, nil, nil)))

	resp, err := m.Execute(context.Background(), operations.OperationRequest{})
	testutil.AssertErrorType(t, err, operations.ErrorTypeValidation)
	testutil.AssertStepStatus(t, resp, operations.StepIDFlattenTrain, operations.StepStatusCompleted)
	testutil.AssertStepStatus(t, resp, operations.StepIDFlattenTest, operations.StepStatusFailed)
	testutil.AssertStepStatus(t, resp, operations.StepIDSplit, operations.StepStatusSkipped)
	testutil.AssertStepStatus(t, resp, operations.StepIDExport, operations.StepStatusSkipped)
}

func TestPipeline_SingleStepsReuseFiles(t *testing.T) {
	cfg, paths := pipelineSetup(t)
	ctx := context.Background()

	m := operations.NewManager(nil, testutil.FastConfig(), nil, nil)
	require.NoError(t, operations.RegisterPipeline(m, operations.NewPipelineDeps(cfg, paths, nil, nil)))

	_, err := m.Execute(ctx, operations.OperationRequest{Parameters: map[string]interface{}{
		operations.ParamStep: operations.StepIDExport,
	}})
	testutil.AssertErrorType(t, err, operations.ErrorTypeValidation)

	runStep := func(step string) {
		resp, err := m.Execute(ctx, operations.OperationRequest{Parameters: map[string]interface{}{
			operations.ParamStep: step,
		}})
		require.NoError(t, err, step)
		testutil.AssertStepStatus(t, resp, step, operations.StepStatusCompleted)
	}
	runStep(operations.StepIDFlattenTrain)
	runStep(operations.StepIDFlattenTest)
	runStep(operations.StepIDSplit)

	_, err = m.Execute(ctx, operations.OperationRequest{})
	require.NoError(t, err)

	dbPath := paths.GetOutputPath(cfg.Export.SQLiteFile)
	require.NoError(t, os.Remove(dbPath))
	runStep(operations.StepIDExport)
	assert.FileExists(t, dbPath)

	got, err := dataprocessing.LoadPreprocessed(paths.OutputDir, dataprocessing.DefaultPreprocessedNames(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, got.XTrain.Len())
}

func TestSplitOptionsFromConfig(t *testing.T) {
	pc := config.Default().Pipeline
	opts, err := operations.SplitOptionsFromConfig(pc)
	require.NoError(t, err)
	assert.Equal(t, "2017-12-01..2018-01-31", opts.YTrain.String())
	assert.Equal(t, pc.KeepFraction, opts.KeepFraction)

	pc.XTestTo = "2017-01-01"
	_, err = operations.SplitOptionsFromConfig(pc)
	assert.Error(t, err)
}

func TestLoadSessionPair_MissingFile(t *testing.T) {
	_, _, err := operations.LoadSessionPair(context.Background(),
		filepath.Join(t.TempDir(), "a.csv"), filepath.Join(t.TempDir(), "b.csv"))
	assert.Error(t, err)
}
