package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"gafeatures/internal/operations"
)

func newRunCmd(flags *globalFlags) *cobra.Command {
	var (
		step            string
		continueOnError bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline: flatten train and test, split, export",
		Long: `run executes the pipeline steps in dependency order using the configured
input files and windows. --step runs a single step whose inputs already exist.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			return rt.finish(runPipeline(rt, step, continueOnError))
		},
	}

	cmd.Flags().StringVar(&step, "step", "", "run only this step (flatten_train, flatten_test, split, export)")
	cmd.Flags().BoolVar(&continueOnError, "continue-on-error", false, "keep running independent steps after a failure")
	return cmd
}

func runPipeline(rt *runtime, step string, continueOnError bool) error {
	opConfig := operations.NewConfigBuilder().
		WithDefaultTimeout(rt.cfg.Pipeline.StageTimeout).
		WithContinueOnError(continueOnError).
		Build()

	manager := operations.NewManager(nil, opConfig, operations.NewOperationTracer(rt.providers), rt.logger)
	deps := operations.NewPipelineDeps(rt.cfg, rt.paths, rt.providers.Metrics, rt.logger)
	if err := operations.RegisterPipeline(manager, deps); err != nil {
		return err
	}

	req := operations.OperationRequest{Parameters: map[string]interface{}{}}
	if step != "" {
		req.Parameters[operations.ParamStep] = step
	}

	resp, err := manager.Execute(rt.ctx, req)
	if resp != nil {
		for _, id := range manager.GetRegistry().ListIDs() {
			if st, ok := resp.Steps[id]; ok {
				rt.logger.InfoContext(rt.ctx, "Step result",
					slog.String("step", id),
					slog.String("status", string(st.Status)),
					slog.Duration("duration", st.Duration()),
					slog.Any("metadata", st.Metadata))
			}
		}
	}
	return err
}
