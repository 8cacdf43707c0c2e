package exporter

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gafeatures/internal/config"
	"gafeatures/internal/errors"
	"gafeatures/internal/frame"
)

// CSVWriter writes frames as CSV files below the output directory
type CSVWriter struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter(paths *config.Paths, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{paths: paths, logger: logger.With(slog.String("component", "csv_writer"))}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteFrame writes f with a header row and returns the resolved file path.
// An existing file is replaced.
func (w *CSVWriter) WriteFrame(filePath string, f *frame.Frame, options WriteOptions) (string, error) {
	fullPath := w.resolvePath(filePath)

	w.logger.Info("Writing CSV file",
		slog.String("file_path", filePath),
		slog.String("full_path", fullPath),
		slog.Int("record_count", f.Len()),
		slog.Int("column_count", f.Width()))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", errors.NewStorageError("failed to create directory", err).
			WithContext("path", fullPath)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return "", errors.NewStorageError("failed to create file", err).
			WithContext("path", fullPath)
	}
	defer file.Close()

	buf := bufio.NewWriter(file)
	if options.BOMPrefix {
		if _, err := buf.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return "", errors.NewStorageError("failed to write BOM", err)
		}
	}
	if err := frame.WriteCSV(buf, f); err != nil {
		return "", errors.NewStorageError(fmt.Sprintf("failed to write %s", filepath.Base(fullPath)), err)
	}
	if err := buf.Flush(); err != nil {
		return "", errors.NewStorageError("failed to flush csv", err)
	}
	if err := file.Sync(); err != nil {
		return "", errors.NewStorageError("failed to sync csv", err)
	}
	return fullPath, nil
}

// resolvePath resolves a relative path against the output directory
func (w *CSVWriter) resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) {
		return filePath
	}
	return w.paths.GetOutputPath(filePath)
}
