// Package operations runs the feature pipeline as a sequence of steps.
//
// Manager executes the steps held by a Registry in dependency order. Each
// step gets its own timeout, retryable failures are retried with a growing
// delay, and a failed step skips every step that depends on it. Steps pass
// values to each other through the OperationState context.
//
// Every operation and step attempt is wrapped in an OpenTelemetry span and
// recorded in the pipeline metrics by OperationTracer.
//
// The pipeline steps are flatten_train, flatten_test, split and export:
//
//	deps := operations.NewPipelineDeps(cfg, paths, providers.Metrics, logger)
//	manager := operations.NewManager(nil, operations.NewConfig(), operations.NewOperationTracer(providers), logger)
//	if err := operations.RegisterPipeline(manager, deps); err != nil {
//		return err
//	}
//	resp, err := manager.Execute(ctx, operations.OperationRequest{})
//
// Setting Parameters[ParamStep] in the request runs one step on its own.
// A step run alone reads the files an earlier run left in the data and
// output directories instead of the values in the context.
package operations
