package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"gafeatures/internal/errors"
	"gafeatures/internal/frame"
	"gafeatures/pkg/contracts/domain"
)

// maxColumns is SQLite's default column limit per table
const maxColumns = 2000

// SQLiteStore writes and reads frames as SQLite tables
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Create opens a fresh database at path, replacing any existing file
func Create(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.NewStorageError("failed to create database directory", err).
			WithContext("path", path)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, errors.NewStorageError("failed to replace database", err).
			WithContext("path", path)
	}
	return Open(path, logger)
}

// Open opens the database at path, creating it when absent
func Open(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.NewStorageError("failed to open database", err).WithContext("path", path)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.NewStorageError("failed to open database", err).WithContext("path", path)
	}
	return &SQLiteStore{
		db:     db,
		path:   path,
		logger: logger.With(slog.String("component", "sqlite_store")),
	}, nil
}

// Path returns the database file
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// WriteTable replaces table name with the rows of f. Numbers are stored as
// REAL with NaN as NULL, everything else as TEXT. A fullVisitorId column
// gets an index.
func (s *SQLiteStore) WriteTable(ctx context.Context, name string, f *frame.Frame) error {
	names := f.Columns()
	if len(names) == 0 {
		return errors.NewValidationError(fmt.Sprintf("table %s has no columns", name), nil)
	}
	if len(names) > maxColumns {
		return errors.NewValidationError(fmt.Sprintf("table %s has %d columns, sqlite allows %d", name, len(names), maxColumns), nil)
	}

	columns := make([]*frame.Column, len(names))
	defs := make([]string, len(names))
	for i, n := range names {
		columns[i], _ = f.Column(n)
		typ := "TEXT"
		if columns[i].Kind == frame.KindNumber {
			typ = "REAL"
		}
		defs[i] = quoteIdent(n) + " " + typ
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStorageError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	table := quoteIdent(name)
	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+table); err != nil {
		return errors.NewStorageError("failed to drop table", err).WithContext("table", name)
	}
	if _, err := tx.ExecContext(ctx, `CREATE TABLE `+table+` (`+strings.Join(defs, ",")+`)`); err != nil {
		return errors.NewStorageError("failed to create table", err).WithContext("table", name)
	}

	placeholders := strings.TrimRight(strings.Repeat("?,", len(names)), ",")
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+table+` VALUES (`+placeholders+`)`)
	if err != nil {
		return errors.NewStorageError("failed to prepare insert", err).WithContext("table", name)
	}
	defer stmt.Close()

	args := make([]any, len(columns))
	for row := 0; row < f.Len(); row++ {
		for i, c := range columns {
			args[i] = sqlValue(c, row)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return errors.NewStorageError(fmt.Sprintf("failed to insert row %d", row+1), err).
				WithContext("table", name)
		}
	}

	if f.Has(domain.ColumnVisitorID) {
		index := quoteIdent("idx_" + name + "_" + domain.ColumnVisitorID)
		if _, err := tx.ExecContext(ctx, `CREATE INDEX `+index+` ON `+table+` (`+quoteIdent(domain.ColumnVisitorID)+`)`); err != nil {
			return errors.NewStorageError("failed to create index", err).WithContext("table", name)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewStorageError("failed to commit table", err).WithContext("table", name)
	}
	s.logger.Info("Table written",
		slog.String("table", name),
		slog.Int("rows", f.Len()),
		slog.Int("columns", len(names)))
	return nil
}

// ReadTable loads table name into a frame. REAL columns become numbers with
// NULL as NaN, all other columns become text.
func (s *SQLiteStore) ReadTable(ctx context.Context, name string) (*frame.Frame, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT * FROM `+quoteIdent(name))
	if err != nil {
		return nil, errors.NewStorageError("failed to query table", err).WithContext("table", name)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, errors.NewStorageError("failed to read column types", err).WithContext("table", name)
	}

	numeric := make([]bool, len(types))
	nums := make([][]float64, len(types))
	texts := make([][]string, len(types))
	for i, t := range types {
		numeric[i] = strings.EqualFold(t.DatabaseTypeName(), "REAL")
	}

	dest := make([]any, len(types))
	ptrs := make([]any, len(types))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	count := 0
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.NewStorageError(fmt.Sprintf("failed to scan row %d", count+1), err).
				WithContext("table", name)
		}
		for i, v := range dest {
			if numeric[i] {
				nums[i] = append(nums[i], toFloat(v))
			} else {
				texts[i] = append(texts[i], toText(v))
			}
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("failed to read table", err).WithContext("table", name)
	}

	out := frame.New(count)
	for i, t := range types {
		if numeric[i] {
			if nums[i] == nil {
				nums[i] = []float64{}
			}
			err = out.SetNumber(t.Name(), nums[i])
		} else {
			if texts[i] == nil {
				texts[i] = []string{}
			}
			err = out.SetText(t.Name(), texts[i])
		}
		if err != nil {
			return nil, errors.NewStorageError("failed to build frame", err).WithContext("table", name)
		}
	}
	return out, nil
}

// Tables lists the user tables in name order
func (s *SQLiteStore) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`)
	if err != nil {
		return nil, errors.NewStorageError("failed to list tables", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, errors.NewStorageError("failed to list tables", err)
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("failed to list tables", err)
	}
	return names, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sqlValue(c *frame.Column, row int) any {
	if c.IsMissing(row) {
		return nil
	}
	if c.Kind == frame.KindNumber {
		return c.Num[row]
	}
	return c.String(row)
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	default:
		return math.NaN()
	}
}

func toText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
