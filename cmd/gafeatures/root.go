package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"gafeatures/internal/config"
	"gafeatures/internal/errors"
	"gafeatures/internal/files"
	"gafeatures/internal/infrastructure"
	"gafeatures/pkg/contracts"
)

// globalFlags override the loaded configuration for every command
type globalFlags struct {
	configFile string
	baseDir    string
	logLevel   string
	logFormat  string
	tracing    bool
	metrics    string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "gafeatures",
		Short: "Google Analytics customer revenue feature pipeline",
		Long: `gafeatures flattens raw Google Analytics session exports, builds monthly
per-visitor feature tables with log revenue targets and summarizes customers.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "YAML config file (default: $GAF_CONFIG_FILE or ./gafeatures.yaml)")
	pf.StringVar(&flags.baseDir, "base-dir", "", "base directory for relative data, output and log paths")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.StringVar(&flags.logFormat, "log-format", "", "log format: json or text")
	pf.BoolVar(&flags.tracing, "trace", false, "print OpenTelemetry spans to stderr")
	pf.StringVar(&flags.metrics, "metrics-file", "", "write a Prometheus text metrics snapshot to this file")

	root.AddCommand(
		newFlattenCmd(flags),
		newSplitCmd(flags),
		newSummarizeCmd(flags),
		newRunCmd(flags),
		newVersionCmd(),
	)
	return root
}

// runtime holds what every command needs after startup
type runtime struct {
	cfg       *config.Config
	paths     *config.Paths
	files     *files.Manager
	logger    *slog.Logger
	providers *infrastructure.OTelProviders
	ctx       context.Context
	stop      context.CancelFunc
}

// setup loads configuration, logging and telemetry for one command
func setup(cmd *cobra.Command, flags *globalFlags) (*runtime, error) {
	var cfg *config.Config
	var err error
	if flags.configFile != "" {
		cfg, err = config.LoadFile(flags.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if flags.baseDir != "" {
		cfg.Paths.BaseDir = flags.baseDir
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Logging.Format = flags.logFormat
	}
	if flags.tracing {
		cfg.Telemetry.Tracing = true
	}
	if flags.metrics != "" {
		cfg.Telemetry.MetricsFile = flags.metrics
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.NewConfigError("invalid configuration after flag overrides", err)
	}

	paths, err := config.ResolvePaths(cfg.Paths)
	if err != nil {
		return nil, err
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, err
	}
	if cfg.Logging.FilePath != "" && !filepath.IsAbs(cfg.Logging.FilePath) {
		cfg.Logging.FilePath = paths.GetLogPath(cfg.Logging.FilePath)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger = infrastructure.WithComponent(logger, cmd.Name())
	paths.LogPathResolution(logger)

	otelCfg := infrastructure.DefaultOTelConfig()
	otelCfg.EnableTracing = cfg.Telemetry.Tracing
	providers, err := infrastructure.InitializeOTel(otelCfg, logger)
	if err != nil {
		return nil, err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	ctx = infrastructure.EnsureTraceID(ctx)

	logger.InfoContext(ctx, "Operation started",
		slog.String("command", cmd.Name()),
		slog.String("version", contracts.Version),
		slog.String("base_dir", paths.BaseDir))

	return &runtime{
		cfg:       cfg,
		paths:     paths,
		files:     files.NewManager(paths),
		logger:    logger,
		providers: providers,
		ctx:       ctx,
		stop:      stop,
	}, nil
}

// finish writes the metrics snapshot and shuts telemetry down
func (r *runtime) finish(cmdErr error) error {
	defer r.stop()

	if path := r.resolveOutput(r.cfg.Telemetry.MetricsFile); path != "" {
		if err := r.providers.WriteMetricsFile(path); err != nil {
			r.logger.Warn("Failed to write metrics file", slog.String("error", err.Error()))
		}
	}
	if err := r.providers.Shutdown(context.Background()); err != nil {
		r.logger.Warn("Failed to shut down telemetry", slog.String("error", err.Error()))
	}

	if cmdErr != nil {
		if r.ctx.Err() != nil {
			r.logger.Info("Operation cancelled by signal")
		}
		r.logger.ErrorContext(r.ctx, "Operation failed", slog.String("error", cmdErr.Error()))
	} else {
		r.logger.InfoContext(r.ctx, "Operation completed")
	}
	if err := infrastructure.CloseLogFile(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
	}
	return cmdErr
}

// resolveData maps a relative input path into the data directory, or the
// directory named by its data/, output/, tmp/ or logs/ prefix
func (r *runtime) resolveData(path string) string {
	if path == "" {
		return path
	}
	return r.files.ResolvePath(path)
}

// resolveOutput maps a relative output path into the output directory
func (r *runtime) resolveOutput(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return r.files.ResolvePath(filepath.Join("output", path))
}
