package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete pipeline configuration
type Config struct {
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Pipeline  PipelineConfig  `yaml:"pipeline" envconfig:"PIPELINE"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	Export    ExportConfig    `yaml:"export" envconfig:"EXPORT"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig contains file system paths configuration. Relative
// directories are resolved against BaseDir, or the working directory when
// BaseDir is empty.
type PathsConfig struct {
	BaseDir   string `yaml:"base_dir" envconfig:"BASE_DIR"`
	DataDir   string `yaml:"data_dir" envconfig:"DATA_DIR" validate:"required"`
	TempDir   string `yaml:"temp_dir" envconfig:"TEMP_DIR" validate:"required"`
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`
	LogsDir   string `yaml:"logs_dir" envconfig:"LOGS_DIR" validate:"required"`
	TrainFile string `yaml:"train_file" envconfig:"TRAIN_FILE" validate:"required"`
	TestFile  string `yaml:"test_file" envconfig:"TEST_FILE" validate:"required"`
}

// PipelineConfig holds the parameters of the feature pipeline
type PipelineConfig struct {
	MaxTrainRows  int           `yaml:"max_train_rows" envconfig:"MAX_TRAIN_ROWS" validate:"gte=0"`
	MaxTestRows   int           `yaml:"max_test_rows" envconfig:"MAX_TEST_ROWS" validate:"gte=0"`
	ChunkSize     int           `yaml:"chunk_size" envconfig:"CHUNK_SIZE" validate:"gte=1"`
	FlattenSchema string        `yaml:"flatten_schema" envconfig:"FLATTEN_SCHEMA" validate:"oneof=sessions customers"`
	KeepFraction  float64       `yaml:"keep_fraction" envconfig:"KEEP_FRACTION" validate:"gte=0,lte=1"`
	MaxCategories int           `yaml:"max_categories" envconfig:"MAX_CATEGORIES" validate:"gte=1"`
	XTrainFrom    string        `yaml:"x_train_from" envconfig:"X_TRAIN_FROM" validate:"datetime=2006-01-02"`
	XTrainTo      string        `yaml:"x_train_to" envconfig:"X_TRAIN_TO" validate:"datetime=2006-01-02"`
	YTrainFrom    string        `yaml:"y_train_from" envconfig:"Y_TRAIN_FROM" validate:"datetime=2006-01-02"`
	YTrainTo      string        `yaml:"y_train_to" envconfig:"Y_TRAIN_TO" validate:"datetime=2006-01-02"`
	XTestFrom     string        `yaml:"x_test_from" envconfig:"X_TEST_FROM" validate:"datetime=2006-01-02"`
	XTestTo       string        `yaml:"x_test_to" envconfig:"X_TEST_TO" validate:"datetime=2006-01-02"`
	StageTimeout  time.Duration `yaml:"stage_timeout" envconfig:"STAGE_TIMEOUT" validate:"gt=0"`
}

// TelemetryConfig controls tracing and the metrics snapshot written after a run
type TelemetryConfig struct {
	Tracing     bool   `yaml:"tracing" envconfig:"TRACING"`
	MetricsFile string `yaml:"metrics_file" envconfig:"METRICS_FILE"`
}

// ExportConfig selects the optional output sinks next to the CSV files
type ExportConfig struct {
	Excel      bool   `yaml:"excel" envconfig:"EXCEL"`
	ExcelFile  string `yaml:"excel_file" envconfig:"EXCEL_FILE" validate:"required_if=Excel true"`
	SQLite     bool   `yaml:"sqlite" envconfig:"SQLITE"`
	SQLiteFile string `yaml:"sqlite_file" envconfig:"SQLITE_FILE" validate:"required_if=SQLite true"`
}

// EnvPrefix namespaces every environment variable read by Load
const EnvPrefix = "GAF"

// Load builds the configuration from defaults, the optional YAML file and
// GAF_* environment variables, in increasing order of precedence.
func Load() (*Config, error) {
	return LoadFile(getConfigFilePath())
}

// LoadFile is Load with an explicit YAML file. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Unset variables leave the file and default values in place.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

var validate = validator.New()

// Validate checks field constraints and the ordering of the date windows
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	windows := []struct {
		name     string
		from, to string
	}{
		{"x_train", c.Pipeline.XTrainFrom, c.Pipeline.XTrainTo},
		{"y_train", c.Pipeline.YTrainFrom, c.Pipeline.YTrainTo},
		{"x_test", c.Pipeline.XTestFrom, c.Pipeline.XTestTo},
	}
	for _, w := range windows {
		// Both ends already passed the datetime tag.
		from, _ := time.Parse(DateLayout, w.from)
		to, _ := time.Parse(DateLayout, w.to)
		if to.Before(from) {
			return fmt.Errorf("%s window ends before it starts: %s > %s", w.name, w.from, w.to)
		}
	}

	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		return fmt.Errorf("logging output %q needs a file path", c.Logging.Output)
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if path := os.Getenv(EnvPrefix + "_CONFIG_FILE"); path != "" {
		return path
	}

	locations := []string{
		"gafeatures.yaml",
		"configs/gafeatures.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "gafeatures.log",
		},
		Paths: PathsConfig{
			DataDir:   DefaultDataDir,
			TempDir:   DefaultTempDir,
			OutputDir: DefaultOutputDir,
			LogsDir:   DefaultLogsDir,
			TrainFile: DefaultTrainFile,
			TestFile:  DefaultTestFile,
		},
		Pipeline: PipelineConfig{
			ChunkSize:     DefaultChunkSize,
			FlattenSchema: DefaultFlattenSchema,
			KeepFraction:  DefaultKeepFraction,
			MaxCategories: DefaultMaxCategories,
			XTrainFrom:    "2016-08-01",
			XTrainTo:      "2017-11-30",
			YTrainFrom:    "2017-12-01",
			YTrainTo:      "2018-01-31",
			XTestFrom:     "2017-08-01",
			XTestTo:       "2018-11-30",
			StageTimeout:  DefaultStageTimeout,
		},
		Export: ExportConfig{
			ExcelFile:  "preprocessed.xlsx",
			SQLiteFile: "preprocessed.db",
		},
	}
}
