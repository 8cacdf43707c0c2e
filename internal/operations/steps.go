package operations

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"gafeatures/internal/config"
	"gafeatures/internal/dataprocessing"
	"gafeatures/internal/exporter"
	"gafeatures/internal/frame"
	"gafeatures/internal/infrastructure"
	"gafeatures/internal/store"
	"gafeatures/internal/validation"
	"gafeatures/pkg/contracts/domain"
)

// Output table names used for workbook sheets and database tables
const (
	TableXTrain = "x_train"
	TableYTrain = "y_train"
	TableXTest  = "x_test"
)

// PipelineDeps are the services shared by the pipeline steps
type PipelineDeps struct {
	Config       *config.Config
	Paths        *config.Paths
	Flattener    *dataprocessing.Flattener
	Preprocessor *dataprocessing.Preprocessor
	CSV          *exporter.CSVWriter
	Excel        *exporter.ExcelWriter
	Validator    *validation.FileValidator
	Metrics      *infrastructure.PipelineMetrics
	Logger       *slog.Logger
}

// NewPipelineDeps wires the default services for cfg
func NewPipelineDeps(cfg *config.Config, paths *config.Paths, metrics *infrastructure.PipelineMetrics, logger *slog.Logger) *PipelineDeps {
	if logger == nil {
		logger = slog.Default()
	}
	return &PipelineDeps{
		Config:       cfg,
		Paths:        paths,
		Flattener:    dataprocessing.NewFlattener(logger),
		Preprocessor: dataprocessing.NewPreprocessor(logger),
		CSV:          exporter.NewCSVWriter(paths, logger),
		Excel:        exporter.NewExcelWriter(paths, logger),
		Validator:    validation.NewFileValidator(logger),
		Metrics:      metrics,
		Logger:       logger,
	}
}

// RegisterPipeline registers flatten train, flatten test, split and export
func RegisterPipeline(m *Manager, deps *PipelineDeps) error {
	pc := deps.Config.Paths
	steps := []Step{
		NewFlattenStep(StepIDFlattenTrain, StepNameFlattenTrain,
			deps.Paths.GetDataPath(pc.TrainFile), deps.Paths.GetDataPath(config.FlatTrainFile),
			deps.Config.Pipeline.MaxTrainRows, ContextKeyFlatTrain, deps),
		NewFlattenStep(StepIDFlattenTest, StepNameFlattenTest,
			deps.Paths.GetDataPath(pc.TestFile), deps.Paths.GetDataPath(config.FlatTestFile),
			deps.Config.Pipeline.MaxTestRows, ContextKeyFlatTest, deps),
		NewSplitStep(deps),
		NewExportStep(deps),
	}
	for _, s := range steps {
		if err := m.RegisterStep(s); err != nil {
			return err
		}
	}
	return nil
}

// SplitOptionsFromConfig builds the split windows and reduction parameters
func SplitOptionsFromConfig(pc config.PipelineConfig) (dataprocessing.SplitOptions, error) {
	var opts dataprocessing.SplitOptions
	var err error
	if opts.XTrain, err = dataprocessing.ParseDateRange(pc.XTrainFrom, pc.XTrainTo); err != nil {
		return opts, fmt.Errorf("x_train window: %w", err)
	}
	if opts.YTrain, err = dataprocessing.ParseDateRange(pc.YTrainFrom, pc.YTrainTo); err != nil {
		return opts, fmt.Errorf("y_train window: %w", err)
	}
	if opts.XTest, err = dataprocessing.ParseDateRange(pc.XTestFrom, pc.XTestTo); err != nil {
		return opts, fmt.Errorf("x_test window: %w", err)
	}
	opts.KeepFraction = pc.KeepFraction
	opts.MaxCategories = pc.MaxCategories
	return opts, nil
}

// FlattenStep flattens one raw session file
type FlattenStep struct {
	BaseStep
	deps       *PipelineDeps
	input      string
	output     string
	maxRows    int
	contextKey string
}

// NewFlattenStep creates a flatten step publishing its output path under contextKey
func NewFlattenStep(id, name, input, output string, maxRows int, contextKey string, deps *PipelineDeps) *FlattenStep {
	return &FlattenStep{
		BaseStep:   NewBaseStep(id, name),
		deps:       deps,
		input:      input,
		output:     output,
		maxRows:    maxRows,
		contextKey: contextKey,
	}
}

// Validate requires a raw session export with the key columns
func (s *FlattenStep) Validate(state *OperationState) error {
	return s.deps.Validator.ValidateSessionFile(s.input)
}

// Execute flattens the input into the output CSV
func (s *FlattenStep) Execute(ctx context.Context, state *OperationState) error {
	schema, err := domain.LookupSchema(s.deps.Config.Pipeline.FlattenSchema)
	if err != nil {
		return err
	}
	stats, err := s.deps.Flattener.Flatten(ctx, dataprocessing.FlattenOptions{
		InputPath:  s.input,
		OutputPath: s.output,
		MaxRows:    s.maxRows,
		ChunkSize:  s.deps.Config.Pipeline.ChunkSize,
		TempDir:    s.deps.Paths.TempDir,
		Schema:     schema,
	})
	if err != nil {
		return err
	}
	infrastructure.RecordFlatten(ctx, s.deps.Metrics, s.input, stats.Rows, stats.Chunks, stats.FilledColumns)

	if st := state.GetStep(s.ID()); st != nil {
		st.SetMetadata("rows", stats.Rows)
		st.SetMetadata("chunks", stats.Chunks)
		st.SetMetadata("output", s.output)
	}
	state.SetContext(s.contextKey, s.output)
	return nil
}

// SplitStep builds the three feature tables from the flattened files
type SplitStep struct {
	BaseStep
	deps *PipelineDeps
}

// NewSplitStep creates the split step
func NewSplitStep(deps *PipelineDeps) *SplitStep {
	return &SplitStep{
		BaseStep: NewBaseStep(StepIDSplit, StepNameSplit, StepIDFlattenTrain, StepIDFlattenTest),
		deps:     deps,
	}
}

// Validate requires both flattened files and valid windows
func (s *SplitStep) Validate(state *OperationState) error {
	trainPath, testPath := s.inputs(state)
	for _, path := range []string{trainPath, testPath} {
		if !config.FileExists(path) {
			return fmt.Errorf("flattened file %s does not exist", path)
		}
	}
	_, err := SplitOptionsFromConfig(s.deps.Config.Pipeline)
	return err
}

// inputs returns the flattened paths published by the flatten steps, or the
// default flattened files when the split runs on its own
func (s *SplitStep) inputs(state *OperationState) (string, string) {
	trainPath, err := ContextValue[string](state, ContextKeyFlatTrain)
	if err != nil {
		trainPath = s.deps.Paths.GetDataPath(config.FlatTrainFile)
	}
	testPath, err := ContextValue[string](state, ContextKeyFlatTest)
	if err != nil {
		testPath = s.deps.Paths.GetDataPath(config.FlatTestFile)
	}
	return trainPath, testPath
}

// Execute loads train and test concurrently, then splits them
func (s *SplitStep) Execute(ctx context.Context, state *OperationState) error {
	trainPath, testPath := s.inputs(state)
	opts, err := SplitOptionsFromConfig(s.deps.Config.Pipeline)
	if err != nil {
		return err
	}

	train, test, err := LoadSessionPair(ctx, trainPath, testPath)
	if err != nil {
		return err
	}

	result, err := s.deps.Preprocessor.SplitData(ctx, train, test, opts)
	if err != nil {
		return err
	}

	if st := state.GetStep(s.ID()); st != nil {
		st.SetMetadata("x_train_rows", result.XTrain.Len())
		st.SetMetadata("x_test_rows", result.XTest.Len())
		st.SetMetadata("features", result.XTrain.Width()-1)
	}
	state.SetContext(ContextKeySplitResult, result)
	return nil
}

// LoadSessionPair reads the flattened train and test files concurrently
func LoadSessionPair(ctx context.Context, trainPath, testPath string) (*frame.Frame, *frame.Frame, error) {
	var train, test *frame.Frame
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		f, err := dataprocessing.LoadSessions(trainPath, 0)
		if err != nil {
			return err
		}
		train = f
		return gctx.Err()
	})
	g.Go(func() error {
		f, err := dataprocessing.LoadSessions(testPath, 0)
		if err != nil {
			return err
		}
		test = f
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return train, test, nil
}

// ExportStep writes the feature tables to every configured sink
type ExportStep struct {
	BaseStep
	deps *PipelineDeps
}

// NewExportStep creates the export step
func NewExportStep(deps *PipelineDeps) *ExportStep {
	return &ExportStep{
		BaseStep: NewBaseStep(StepIDExport, StepNameExport, StepIDSplit),
		deps:     deps,
	}
}

// Validate requires a split result or previously written tables
func (s *ExportStep) Validate(state *OperationState) error {
	if _, err := ContextValue[*dataprocessing.SplitResult](state, ContextKeySplitResult); err == nil {
		return nil
	}
	names := dataprocessing.DefaultPreprocessedNames()
	for _, name := range []string{names.XTrain, names.YTrain, names.XTest} {
		if path := s.deps.Paths.GetOutputPath(name); !config.FileExists(path) {
			return fmt.Errorf("no split result and %s does not exist", path)
		}
	}
	return nil
}

// Execute writes CSV files and the optional workbook and database. Run on
// its own, it re-exports the tables found in the output directory.
func (s *ExportStep) Execute(ctx context.Context, state *OperationState) error {
	result, err := ContextValue[*dataprocessing.SplitResult](state, ContextKeySplitResult)
	if err != nil {
		result, err = dataprocessing.LoadPreprocessed(s.deps.Paths.OutputDir, dataprocessing.DefaultPreprocessedNames(), 0, 0)
		if err != nil {
			return err
		}
	}
	outputs, err := ExportSplit(ctx, s.deps, result, "")
	if err != nil {
		return err
	}
	if st := state.GetStep(s.ID()); st != nil {
		st.SetMetadata("outputs", outputs)
	}
	state.SetContext(ContextKeyOutputs, outputs)
	return nil
}

// ExportSplit writes the split tables as CSV into outDir, or the output
// directory when outDir is empty, then to the workbook and database sinks
// enabled in the export config. It returns every written path.
func ExportSplit(ctx context.Context, deps *PipelineDeps, result *dataprocessing.SplitResult, outDir string) ([]string, error) {
	names := dataprocessing.DefaultPreprocessedNames()
	tables := []exporter.Table{
		{Name: TableXTrain, Frame: result.XTrain},
		{Name: TableYTrain, Frame: result.YTrain},
		{Name: TableXTest, Frame: result.XTest},
	}
	files := map[string]string{
		TableXTrain: names.XTrain,
		TableYTrain: names.YTrain,
		TableXTest:  names.XTest,
	}

	outputPath := func(name string) string {
		if filepath.IsAbs(name) {
			return name
		}
		if outDir != "" {
			return filepath.Join(outDir, name)
		}
		return deps.Paths.GetOutputPath(name)
	}

	var outputs []string
	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return outputs, err
		}
		path, err := deps.CSV.WriteFrame(outputPath(files[t.Name]), t.Frame, exporter.WriteOptions{})
		if err != nil {
			return outputs, err
		}
		infrastructure.RecordExport(ctx, deps.Metrics, t.Name, "csv", t.Frame.Len())
		outputs = append(outputs, path)
	}

	export := deps.Config.Export
	if export.Excel {
		path, err := deps.Excel.WriteWorkbook(outputPath(export.ExcelFile), tables)
		if err != nil {
			return outputs, err
		}
		for _, t := range tables {
			infrastructure.RecordExport(ctx, deps.Metrics, t.Name, "excel", t.Frame.Len())
		}
		outputs = append(outputs, path)
	}

	if export.SQLite {
		path := outputPath(export.SQLiteFile)
		if err := writeDatabase(ctx, deps, path, tables); err != nil {
			return outputs, err
		}
		outputs = append(outputs, path)
	}
	return outputs, nil
}

func writeDatabase(ctx context.Context, deps *PipelineDeps, path string, tables []exporter.Table) error {
	db, err := store.Create(path, deps.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			deps.Logger.Warn("Failed to close database", slog.String("path", path), slog.String("error", cerr.Error()))
		}
	}()

	for _, t := range tables {
		if err := db.WriteTable(ctx, t.Name, t.Frame); err != nil {
			return err
		}
		infrastructure.RecordExport(ctx, deps.Metrics, t.Name, "sqlite", t.Frame.Len())
	}
	return nil
}
