// Package config provides configuration management for the gafeatures
// pipeline.
//
// # Configuration Sources
//
// Configuration is assembled from the following sources, later ones winning:
//
//	1. Default values
//	2. A YAML file (GAF_CONFIG_FILE, gafeatures.yaml or configs/gafeatures.yaml)
//	3. Environment variables
//
// Command line flags are applied on top by the CLI.
//
// # Environment Variables
//
// All environment variables follow the pattern GAF_<SECTION>_<FIELD>:
//
//	GAF_LOGGING_LEVEL=debug
//	GAF_PATHS_DATA_DIR=/data/ga
//	GAF_PIPELINE_CHUNK_SIZE=50000
//	GAF_PIPELINE_KEEP_FRACTION=0.6
//	GAF_TELEMETRY_METRICS_FILE=metrics.prom
//
// # Path Management
//
// Paths resolves the configured directories against the base directory:
//
//	paths, err := config.ResolvePaths(cfg.Paths)
//	input := paths.GetDataPath("train_v2.csv")
//
// # Validation
//
// Field constraints are declared with validator tags and checked at load
// time together with the ordering of the split date windows.
package config
