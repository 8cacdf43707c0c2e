package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"gafeatures/internal/dataprocessing"
	"gafeatures/internal/frame"
	"gafeatures/internal/validation"
)

func newSummarizeCmd(flags *globalFlags) *cobra.Command {
	var (
		input       string
		output      string
		maxRows     int
		targetStart string
		trainStart  string
	)

	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Summarize flattened sessions into one feature row per customer",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			return rt.finish(runSummarize(rt, input, output, maxRows, targetStart, trainStart))
		},
	}

	cmd.Flags().StringVar(&input, "in", "", "flattened session CSV (relative paths resolve in the data directory)")
	cmd.Flags().StringVar(&output, "out", "customers.csv", "customer feature CSV (relative paths resolve in the output directory)")
	cmd.Flags().IntVar(&maxRows, "nrows", 0, "read at most this many sessions (0 reads all)")
	cmd.Flags().StringVar(&targetStart, "target-start", "", "first day of the target period (YYYY-MM-DD)")
	cmd.Flags().StringVar(&trainStart, "train-start", "", "drop sessions before this day (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("target-start")
	return cmd
}

func runSummarize(rt *runtime, input, output string, maxRows int, targetStart, trainStart string) error {
	target, err := time.Parse(frame.DateLayout, targetStart)
	if err != nil {
		return fmt.Errorf("invalid --target-start %q: %w", targetStart, err)
	}
	var train time.Time
	if trainStart != "" {
		if train, err = time.Parse(frame.DateLayout, trainStart); err != nil {
			return fmt.Errorf("invalid --train-start %q: %w", trainStart, err)
		}
	}

	inputPath := rt.resolveData(input)
	if err := validation.NewFileValidator(rt.logger).ValidateSessionFile(inputPath); err != nil {
		return err
	}
	sessions, err := dataprocessing.LoadSessions(inputPath, maxRows)
	if err != nil {
		return err
	}
	customers, err := dataprocessing.NewSummarizer(rt.logger).
		Summarize(rt.ctx, sessions, dataprocessing.DefaultSummaryOptions(target, train))
	if err != nil {
		return err
	}

	path := rt.resolveOutput(output)
	if err := dataprocessing.WriteTable(path, customers); err != nil {
		return err
	}
	rt.logger.InfoContext(rt.ctx, "Customer summary written",
		slog.String("output", path),
		slog.Int("customers", customers.Len()),
		slog.Int("columns", customers.Width()))
	return nil
}
