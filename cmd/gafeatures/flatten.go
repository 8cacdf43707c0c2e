package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"gafeatures/internal/dataprocessing"
	"gafeatures/internal/errors"
	"gafeatures/internal/infrastructure"
	"gafeatures/internal/validation"
	"gafeatures/pkg/contracts/domain"
)

func newFlattenCmd(flags *globalFlags) *cobra.Command {
	var (
		input     string
		output    string
		maxRows   int
		chunkSize int
		tempDir   string
		schema    string
	)

	cmd := &cobra.Command{
		Use:   "flatten",
		Short: "Flatten a raw session export into one column per field",
		Long: `flatten reads a raw session CSV, expands its JSON columns into dotted
columns, drops columns outside the session schema and writes the result.
--schema customers keeps the wider column set read by summarize.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			return rt.finish(runFlatten(rt, input, output, maxRows, chunkSize, tempDir, schema))
		},
	}

	cmd.Flags().StringVar(&input, "in", "", "raw session CSV (relative paths resolve in the data directory)")
	cmd.Flags().StringVar(&output, "out", "", "flattened CSV (relative paths resolve in the data directory)")
	cmd.Flags().IntVar(&maxRows, "nrows", 0, "read at most this many rows (0 reads all)")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "rows per chunk (default from config)")
	cmd.Flags().StringVar(&tempDir, "temp-dir", "", "directory for chunk files (default from config)")
	cmd.Flags().StringVar(&schema, "schema", "", "output columns: sessions or customers (default from config)")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func runFlatten(rt *runtime, input, output string, maxRows, chunkSize int, tempDir, schemaName string) error {
	if schemaName == "" {
		schemaName = rt.cfg.Pipeline.FlattenSchema
	}
	schema, err := domain.LookupSchema(schemaName)
	if err != nil {
		return errors.NewValidationError("invalid --schema", err)
	}
	if chunkSize <= 0 {
		chunkSize = rt.cfg.Pipeline.ChunkSize
	}
	if tempDir == "" {
		tempDir = rt.paths.TempDir
	}
	opts := dataprocessing.FlattenOptions{
		InputPath:  rt.resolveData(input),
		OutputPath: rt.resolveData(output),
		MaxRows:    maxRows,
		ChunkSize:  chunkSize,
		TempDir:    tempDir,
		Schema:     schema,
	}
	if err := validation.NewFileValidator(rt.logger).ValidateSessionFile(opts.InputPath); err != nil {
		return errors.NewValidationError("invalid session export", err)
	}

	stats, err := dataprocessing.NewFlattener(rt.logger).Flatten(rt.ctx, opts)
	if err != nil {
		return err
	}
	infrastructure.RecordFlatten(rt.ctx, rt.providers.Metrics, opts.InputPath, stats.Rows, stats.Chunks, stats.FilledColumns)
	rt.logger.InfoContext(rt.ctx, "Flattened sessions written",
		slog.String("output", opts.OutputPath),
		slog.Int("rows", stats.Rows),
		slog.Int("chunks", stats.Chunks))
	return nil
}
