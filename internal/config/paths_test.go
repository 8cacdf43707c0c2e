package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePaths(t *testing.T) {
	base := t.TempDir()
	abs := filepath.Join(t.TempDir(), "elsewhere")

	tests := []struct {
		name       string
		pc         PathsConfig
		wantData   string
		wantOutput string
	}{
		{
			name:       "relative to base",
			pc:         PathsConfig{BaseDir: base, DataDir: "data", TempDir: "tmp", OutputDir: "out", LogsDir: "logs"},
			wantData:   filepath.Join(base, "data"),
			wantOutput: filepath.Join(base, "out"),
		},
		{
			name:       "absolute kept",
			pc:         PathsConfig{BaseDir: base, DataDir: abs, TempDir: "tmp", OutputDir: abs, LogsDir: "logs"},
			wantData:   abs,
			wantOutput: abs,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paths, err := ResolvePaths(tt.pc)
			require.NoError(t, err)
			assert.Equal(t, tt.wantData, paths.DataDir)
			assert.Equal(t, tt.wantOutput, paths.OutputDir)
			assert.True(t, filepath.IsAbs(paths.TempDir))
		})
	}
}

func TestResolvePaths_DefaultsToWorkingDirectory(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)

	paths, err := ResolvePaths(PathsConfig{DataDir: "data", TempDir: "tmp", OutputDir: "out", LogsDir: "logs"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "data"), paths.DataDir)
}

func TestPaths_EnsureDirectoriesAndGetters(t *testing.T) {
	base := t.TempDir()
	paths, err := ResolvePaths(PathsConfig{BaseDir: base, DataDir: "data", TempDir: "tmp", OutputDir: "out", LogsDir: "logs"})
	require.NoError(t, err)

	require.NoError(t, paths.EnsureDirectories())
	for _, dir := range []string{paths.DataDir, paths.TempDir, paths.OutputDir, paths.LogsDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	assert.Equal(t, filepath.Join(base, "data", "train_v2.csv"), paths.GetDataPath("train_v2.csv"))
	assert.Equal(t, filepath.Join(base, "out", XTrainFile), paths.GetOutputPath(XTrainFile))
	assert.Equal(t, filepath.Join(base, "logs", "run.log"), paths.GetLogPath("run.log"))
	assert.Equal(t, "/abs/file.csv", paths.GetDataPath("/abs/file.csv"))

	assert.True(t, FileExists(paths.DataDir))
	assert.False(t, FileExists(filepath.Join(base, "missing")))
}
