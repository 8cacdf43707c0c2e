package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestFileValidator_ValidateSessionFile(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name          string
		path          string
		errorContains string
	}{
		{
			name: "valid session export",
			path: writeFile(t, dir, "train.csv", "channelGrouping,date,fullVisitorId\nDirect,20170101,1\n"),
		},
		{
			name: "header with bom",
			path: writeFile(t, dir, "bom.csv", "\ufefffullVisitorId,date\n1,2017-01-01\n"),
		},
		{
			name:          "missing file",
			path:          filepath.Join(dir, "nope.csv"),
			errorContains: "does not exist",
		},
		{
			name:          "directory",
			path:          func() string { p := filepath.Join(dir, "sub.csv"); require.NoError(t, os.Mkdir(p, 0755)); return p }(),
			errorContains: "is a directory",
		},
		{
			name:          "wrong extension",
			path:          writeFile(t, dir, "train.json", "{}"),
			errorContains: "not a CSV file",
		},
		{
			name:          "missing columns",
			path:          writeFile(t, dir, "partial.csv", "date,browser\n20170101,Chrome\n"),
			errorContains: "missing columns: fullVisitorId",
		},
		{
			name:          "empty file",
			path:          writeFile(t, dir, "empty.csv", ""),
			errorContains: "failed to read header",
		},
	}

	v := NewFileValidator(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateSessionFile(tt.path)
			if tt.errorContains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}

func TestFileValidator_ValidateOutputDirectory(t *testing.T) {
	v := NewFileValidator(nil)

	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, v.ValidateOutputDirectory(dir))
	assert.DirExists(t, dir)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	file := writeFile(t, t.TempDir(), "file", "x")
	assert.Error(t, v.ValidateOutputDirectory(filepath.Join(file, "child")))
}
