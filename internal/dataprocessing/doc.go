// Package dataprocessing turns Google Analytics session exports into
// per-customer feature tables for revenue prediction.
//
// # Architecture
//
// The package is organized into the stages of the pipeline:
//
// 1. Flattener: expands the JSON columns of the raw CSV in bounded batches
// 2. GroupMonthly: reduces sessions to one row per visitor and month
// 3. ReduceCategories and Preprocessor.OneHotEncode: categorical handling
// 4. Aggregate: pivots monthly rows into one wide row per visitor
// 5. Preprocessor.SplitData: builds aligned x_train, y_train and x_test
// 6. Summarizer: the richer per-customer summary built from sessions directly
//
// # Usage
//
// Flattening a raw export:
//
//	stats, err := dataprocessing.NewFlattener(logger).Flatten(ctx, dataprocessing.FlattenOptions{
//	    InputPath:  "data/train_v2.csv",
//	    OutputPath: "data/train-flattened.csv",
//	    ChunkSize:  100000,
//	    TempDir:    "tmp",
//	})
//
// Splitting flattened sessions:
//
//	train, _ := dataprocessing.LoadSessions("data/train-flattened.csv", 0)
//	test, _ := dataprocessing.LoadSessions("data/test-flattened.csv", 0)
//	result, err := dataprocessing.NewPreprocessor(logger).SplitData(ctx, train, test,
//	    dataprocessing.DefaultSplitOptions())
//
// # Data Flow
//
//	raw CSV → Flattener → flattened CSV → GroupMonthly → ReduceCategories →
//	OneHotEncode → Aggregate → SplitResult
//
// # Error Handling
//
// Failures are returned as *errors.AppError. Malformed JSON and bad dates in
// the raw export are parsing errors carrying the row and column; missing
// columns and unparseable dates in later stages are validation errors. A
// schema field absent from a whole batch is not an error: it is filled with
// its default and logged.
package dataprocessing
