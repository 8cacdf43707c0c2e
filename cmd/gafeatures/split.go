package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"gafeatures/internal/config"
	"gafeatures/internal/operations"
)

type splitFlags struct {
	train         string
	test          string
	outDir        string
	keepFraction  float64
	maxCategories int
	xTrainFrom    string
	xTrainTo      string
	yTrainFrom    string
	yTrainTo      string
	xTestFrom     string
	xTestTo       string
}

func newSplitCmd(flags *globalFlags) *cobra.Command {
	sf := &splitFlags{}

	cmd := &cobra.Command{
		Use:   "split",
		Short: "Build x_train, y_train and x_test from flattened sessions",
		Long: `split aggregates flattened train and test sessions per visitor and month
inside the configured windows, encodes categories and writes the three
aligned preprocessed tables.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			sf.apply(cmd, rt)
			return rt.finish(runSplit(rt, sf))
		},
	}

	f := cmd.Flags()
	f.StringVar(&sf.train, "train", "", "flattened train CSV (default: data directory train_flat.csv)")
	f.StringVar(&sf.test, "test", "", "flattened test CSV (default: data directory test_flat.csv)")
	f.StringVar(&sf.outDir, "out-dir", "", "directory for the preprocessed tables (default: output directory)")
	f.Float64Var(&sf.keepFraction, "keep-fraction", 0, "share of rows the kept categories must cover")
	f.IntVar(&sf.maxCategories, "max-categories", 0, "upper bound on kept categories per column")
	f.StringVar(&sf.xTrainFrom, "x-train-from", "", "first day of the train feature window (YYYY-MM-DD)")
	f.StringVar(&sf.xTrainTo, "x-train-to", "", "last day of the train feature window")
	f.StringVar(&sf.yTrainFrom, "y-train-from", "", "first day of the train target window")
	f.StringVar(&sf.yTrainTo, "y-train-to", "", "last day of the train target window")
	f.StringVar(&sf.xTestFrom, "x-test-from", "", "first day of the test feature window")
	f.StringVar(&sf.xTestTo, "x-test-to", "", "last day of the test feature window")
	return cmd
}

// apply copies explicitly set flags over the pipeline config
func (sf *splitFlags) apply(cmd *cobra.Command, rt *runtime) {
	pc := &rt.cfg.Pipeline
	f := cmd.Flags()
	if f.Changed("keep-fraction") {
		pc.KeepFraction = sf.keepFraction
	}
	if f.Changed("max-categories") {
		pc.MaxCategories = sf.maxCategories
	}
	overrides := []struct {
		flag  string
		value string
		dst   *string
	}{
		{"x-train-from", sf.xTrainFrom, &pc.XTrainFrom},
		{"x-train-to", sf.xTrainTo, &pc.XTrainTo},
		{"y-train-from", sf.yTrainFrom, &pc.YTrainFrom},
		{"y-train-to", sf.yTrainTo, &pc.YTrainTo},
		{"x-test-from", sf.xTestFrom, &pc.XTestFrom},
		{"x-test-to", sf.xTestTo, &pc.XTestTo},
	}
	for _, o := range overrides {
		if f.Changed(o.flag) {
			*o.dst = o.value
		}
	}
}

func runSplit(rt *runtime, sf *splitFlags) error {
	opts, err := operations.SplitOptionsFromConfig(rt.cfg.Pipeline)
	if err != nil {
		return err
	}

	trainPath := sf.train
	if trainPath == "" {
		trainPath = config.FlatTrainFile
	}
	testPath := sf.test
	if testPath == "" {
		testPath = config.FlatTestFile
	}
	if trainPath, err = rt.files.RequireFile(trainPath); err != nil {
		return err
	}
	if testPath, err = rt.files.RequireFile(testPath); err != nil {
		return err
	}

	train, test, err := operations.LoadSessionPair(rt.ctx, trainPath, testPath)
	if err != nil {
		return err
	}

	deps := operations.NewPipelineDeps(rt.cfg, rt.paths, rt.providers.Metrics, rt.logger)
	if sf.outDir != "" {
		if err := deps.Validator.ValidateOutputDirectory(sf.outDir); err != nil {
			return err
		}
	}
	result, err := deps.Preprocessor.SplitData(rt.ctx, train, test, opts)
	if err != nil {
		return err
	}

	outputs, err := operations.ExportSplit(rt.ctx, deps, result, sf.outDir)
	if err != nil {
		return err
	}
	rt.logger.InfoContext(rt.ctx, "Preprocessed tables written",
		slog.Any("outputs", outputs),
		slog.Int("x_train_rows", result.XTrain.Len()),
		slog.Int("x_test_rows", result.XTest.Len()))
	return nil
}
