package config

import "time"

// Pipeline defaults
const (
	AppName = "gafeatures"

	// DateLayout is the layout of every date parameter and date cell
	DateLayout = "2006-01-02"

	// File paths (relative to the base directory)
	DefaultDataDir   = "data"
	DefaultTempDir   = "tmp"
	DefaultOutputDir = "output"
	DefaultLogsDir   = "logs"

	DefaultTrainFile = "train_v2.csv"
	DefaultTestFile  = "test_v2.csv"

	// Flattened intermediates written to the data directory
	FlatTrainFile = "train-flattened.csv"
	FlatTestFile  = "test-flattened.csv"

	// Split outputs written to the output directory
	XTrainFile = "preprocessed_x_train.csv"
	YTrainFile = "preprocessed_y_train.csv"
	XTestFile  = "preprocessed_x_test.csv"

	DefaultChunkSize     = 100000
	DefaultFlattenSchema = "sessions"
	DefaultKeepFraction  = 0.5
	DefaultMaxCategories = 10

	DefaultStageTimeout = 2 * time.Hour
)
