package dataprocessing

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gafeatures/internal/errors"
	"gafeatures/internal/files"
	"gafeatures/internal/frame"
	"gafeatures/pkg/contracts/domain"
)

const (
	// DefaultChunkSize bounds the number of rows held in memory per batch
	DefaultChunkSize = 100000

	compactDateLayout = "20060102"
	chunkFileLayout   = "%06d.csv"
)

// FlattenOptions configures a single flatten run
type FlattenOptions struct {
	InputPath  string
	OutputPath string

	// MaxRows stops after this many data rows when > 0
	MaxRows int

	// ChunkSize is the number of rows per batch file
	ChunkSize int

	// TempDir is the parent of the per-run workspace
	TempDir string

	// JSONColumns hold JSON object text to expand into flat columns
	JSONColumns []string

	// Schema is the fixed output column set
	Schema domain.Schema
}

// FlattenStats reports what a flatten run did
type FlattenStats struct {
	Rows          int
	Chunks        int
	FilledColumns int
}

// Flattener expands the JSON columns of a raw session CSV into the flat session schema
type Flattener struct {
	logger *slog.Logger
}

// NewFlattener creates a flattener
func NewFlattener(logger *slog.Logger) *Flattener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Flattener{logger: logger.With(slog.String("component", "flattener"))}
}

// Flatten reads opts.InputPath in batches, writes each flattened batch to a
// workspace file and concatenates the batch files into opts.OutputPath. The
// workspace is removed on every return path.
func (f *Flattener) Flatten(ctx context.Context, opts FlattenOptions) (FlattenStats, error) {
	var stats FlattenStats
	opts = withFlattenDefaults(opts)

	if opts.InputPath == "" || opts.OutputPath == "" {
		return stats, errors.NewValidationError("flatten needs an input and an output path", nil)
	}

	in, err := os.Open(opts.InputPath)
	if err != nil {
		return stats, errors.NewStorageError("failed to open input file", err).
			WithContext("path", opts.InputPath)
	}
	defer in.Close()

	reader := csv.NewReader(in)
	header, err := reader.Read()
	if err != nil {
		if stderrors.Is(err, io.EOF) {
			return stats, errors.NewParsingError("input file has no header row", err).
				WithContext("path", opts.InputPath)
		}
		return stats, errors.NewParsingError("failed to read header", err).
			WithContext("path", opts.InputPath)
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	isJSON := make(map[string]bool, len(opts.JSONColumns))
	for _, name := range opts.JSONColumns {
		isJSON[name] = true
	}
	for name := range isJSON {
		if !containsString(header, name) {
			return stats, errors.NewValidationError(fmt.Sprintf("json column %q not in input header", name), nil).
				WithContext("path", opts.InputPath)
		}
	}

	ws, err := files.NewWorkspace(opts.TempDir, "flatten")
	if err != nil {
		return stats, errors.NewStorageError("failed to create workspace", err)
	}
	defer func() {
		if err := ws.Remove(); err != nil {
			f.logger.WarnContext(ctx, "Failed to remove flatten workspace",
				slog.String("dir", ws.Dir),
				slog.String("error", err.Error()))
		}
	}()

	f.logger.InfoContext(ctx, "Flattening sessions",
		slog.String("input", opts.InputPath),
		slog.Int("chunk_size", opts.ChunkSize),
		slog.Int("max_rows", opts.MaxRows))

	start := time.Now()
	done := false
	for !done {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		limit := opts.ChunkSize
		if opts.MaxRows > 0 && opts.MaxRows-stats.Rows < limit {
			limit = opts.MaxRows - stats.Rows
		}

		records := make([]map[string]string, 0, limit)
		for len(records) < limit {
			rec, err := reader.Read()
			if stderrors.Is(err, io.EOF) {
				done = true
				break
			}
			if err != nil {
				return stats, errors.NewParsingError("failed to read row", err).
					WithContext("row", stats.Rows+len(records)+1)
			}
			row := stats.Rows + len(records) + 1
			flat, err := flattenRecord(header, rec, isJSON, opts.Schema, row)
			if err != nil {
				return stats, err
			}
			records = append(records, flat)
		}
		if opts.MaxRows > 0 && stats.Rows+len(records) >= opts.MaxRows {
			done = true
		}
		if len(records) == 0 {
			break
		}

		filled, err := f.writeChunk(ctx, ws.Path(fmt.Sprintf(chunkFileLayout, stats.Chunks)), records, opts.Schema, stats.Chunks)
		if err != nil {
			return stats, err
		}
		stats.Rows += len(records)
		stats.Chunks++
		stats.FilledColumns += filled

		f.logger.DebugContext(ctx, "Chunk flattened",
			slog.Int("chunk", stats.Chunks),
			slog.Int("rows_total", stats.Rows))
	}

	chunks, err := ws.Files("*.csv")
	if err != nil {
		return stats, errors.NewStorageError("failed to list chunk files", err)
	}
	if len(chunks) == 0 {
		if err := writeHeaderOnly(opts.OutputPath, opts.Schema); err != nil {
			return stats, err
		}
	} else if err := files.ConcatCSV(opts.OutputPath, chunks); err != nil {
		return stats, errors.NewStorageError("failed to concatenate chunk files", err).
			WithContext("output", opts.OutputPath)
	}

	f.logger.InfoContext(ctx, "Sessions flattened",
		slog.String("output", opts.OutputPath),
		slog.Int("rows", stats.Rows),
		slog.Int("chunks", stats.Chunks),
		slog.Int("filled_columns", stats.FilledColumns),
		slog.Duration("duration", time.Since(start)))

	return stats, nil
}

// writeChunk writes one batch in schema order. A schema field that no record
// of the batch carries is filled with its default.
func (f *Flattener) writeChunk(ctx context.Context, path string, records []map[string]string, schema domain.Schema, chunk int) (int, error) {
	filled := 0
	fill := make(map[string]bool)
	for _, field := range schema {
		present := false
		for _, rec := range records {
			if _, ok := rec[field.Name]; ok {
				present = true
				break
			}
		}
		if !present {
			fill[field.Name] = true
			filled++
			f.logger.WarnContext(ctx, "Column missing from chunk, filled with default",
				slog.String("column", field.Name),
				slog.String("default", field.Default),
				slog.Int("chunk", chunk))
		}
	}

	out, err := os.Create(path)
	if err != nil {
		return 0, errors.NewStorageError("failed to create chunk file", err).WithContext("path", path)
	}
	if err := writeRecords(out, records, schema, fill); err != nil {
		out.Close()
		return 0, err
	}
	if err := out.Close(); err != nil {
		return 0, errors.NewStorageError("failed to close chunk file", err).WithContext("path", path)
	}
	return filled, nil
}

func writeRecords(out io.Writer, records []map[string]string, schema domain.Schema, fill map[string]bool) error {
	w := csv.NewWriter(out)
	if err := w.Write(schema.Names()); err != nil {
		return errors.NewStorageError("failed to write chunk header", err)
	}
	row := make([]string, len(schema))
	for _, rec := range records {
		for i, field := range schema {
			if fill[field.Name] {
				row[i] = field.Default
				continue
			}
			row[i] = rec[field.Name]
		}
		if err := w.Write(row); err != nil {
			return errors.NewStorageError("failed to write chunk row", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.NewStorageError("failed to flush chunk file", err)
	}
	return nil
}

// flattenRecord merges the plain cells and the expanded JSON columns of one row
func flattenRecord(header, rec []string, isJSON map[string]bool, schema domain.Schema, row int) (map[string]string, error) {
	flat := make(map[string]string, len(header)+32)
	for i, name := range header {
		if isJSON[name] {
			continue
		}
		flat[name] = rec[i]
	}
	for i, name := range header {
		if !isJSON[name] {
			continue
		}
		obj, err := decodeObject(rec[i])
		if err != nil {
			return nil, errors.NewParsingError("invalid JSON cell", err).
				WithContext("row", row).
				WithContext("column", name)
		}
		flattenValue("", obj, flat)
	}

	for _, field := range schema {
		if field.Type != domain.FieldDate {
			continue
		}
		raw, ok := flat[field.Name]
		if !ok || raw == "" {
			continue
		}
		d, err := parseSessionDate(raw)
		if err != nil {
			return nil, errors.NewParsingError("invalid date", err).
				WithContext("row", row).
				WithContext("column", field.Name)
		}
		flat[field.Name] = d.Format(frame.DateLayout)
	}
	return flat, nil
}

func decodeObject(s string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after JSON object")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object, got %T", v)
	}
	return obj, nil
}

// flattenValue writes nested objects with dotted keys
func flattenValue(prefix string, v any, out map[string]string) {
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			flattenValue(key, child, out)
		}
	case string:
		out[prefix] = val
	case json.Number:
		out[prefix] = val.String()
	case bool:
		if val {
			out[prefix] = "True"
		} else {
			out[prefix] = "False"
		}
	case nil:
		out[prefix] = ""
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(val); err == nil {
			out[prefix] = strings.TrimSpace(buf.String())
		}
	}
}

func parseSessionDate(s string) (time.Time, error) {
	if t, err := time.Parse(compactDateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(frame.DateLayout, s)
}

func writeHeaderOnly(path string, schema domain.Schema) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.NewStorageError("failed to create output directory", err)
	}
	out, err := os.Create(path)
	if err != nil {
		return errors.NewStorageError("failed to create output file", err).WithContext("path", path)
	}
	if err := writeRecords(out, nil, schema, nil); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return errors.NewStorageError("failed to close output file", err).WithContext("path", path)
	}
	return nil
}

func withFlattenDefaults(opts FlattenOptions) FlattenOptions {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if len(opts.JSONColumns) == 0 {
		opts.JSONColumns = domain.DefaultJSONColumns
	}
	if len(opts.Schema) == 0 {
		opts.Schema = domain.SessionSchema
	}
	return opts
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
