// Package shared holds helpers used by several packages that belong to no
// single layer.
//
// The testutil subpackage captures slog output so tests can assert on what
// a component logged:
//
//	logger, logs := testutil.NewTestLogger(t)
//	summarizer := dataprocessing.NewSummarizer(logger)
//	...
//	testutil.AssertLogContains(t, logs, slog.LevelWarn, "feature skipped")
package shared
