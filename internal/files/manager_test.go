package files

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gafeatures/internal/config"
)

func testPaths(t *testing.T) *config.Paths {
	t.Helper()
	base := t.TempDir()
	return &config.Paths{
		BaseDir:   base,
		DataDir:   filepath.Join(base, "data"),
		TempDir:   filepath.Join(base, "tmp"),
		OutputDir: filepath.Join(base, "output"),
		LogsDir:   filepath.Join(base, "logs"),
	}
}

func TestManager_ResolvePath(t *testing.T) {
	paths := testPaths(t)
	m := NewManager(paths)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"absolute", "/srv/train.csv", "/srv/train.csv"},
		{"data prefix", "data/train_v2.csv", filepath.Join(paths.DataDir, "train_v2.csv")},
		{"output prefix", "output/x.csv", filepath.Join(paths.OutputDir, "x.csv")},
		{"tmp prefix", "tmp/chunk.csv", filepath.Join(paths.TempDir, "chunk.csv")},
		{"logs prefix", "logs/run.log", filepath.Join(paths.LogsDir, "run.log")},
		{"bare name", "test_v2.csv", filepath.Join(paths.DataDir, "test_v2.csv")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.ResolvePath(tt.in))
		})
	}
}

func TestManager_CreateAndRequire(t *testing.T) {
	m := NewManager(testPaths(t))

	_, err := m.RequireFile("train_v2.csv")
	assert.Error(t, err)
	assert.False(t, m.FileExists("train_v2.csv"))

	f, err := m.Create("data/nested/train_v2.csv")
	require.NoError(t, err)
	_, err = f.WriteString("a,b\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	path, err := m.RequireFile("nested/train_v2.csv")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))
	assert.True(t, m.FileExists("nested/train_v2.csv"))

	_, err = m.RequireFile("nested")
	assert.ErrorContains(t, err, "directory")

	names, err := m.ListFiles("nested")
	require.NoError(t, err)
	assert.Equal(t, []string{"train_v2.csv"}, names)
}

func TestWorkspace_Lifecycle(t *testing.T) {
	parent := filepath.Join(t.TempDir(), "temp")

	ws, err := NewWorkspace(parent, "flatten")
	require.NoError(t, err)
	assert.DirExists(t, ws.Dir)
	assert.Contains(t, filepath.Base(ws.Dir), "flatten-")

	other, err := NewWorkspace(parent, "flatten")
	require.NoError(t, err)
	assert.NotEqual(t, ws.Dir, other.Dir)

	for _, name := range []string{"000002.csv", "000000.csv", "000001.csv", "notes.txt"} {
		require.NoError(t, os.WriteFile(ws.Path(name), []byte("h\n"), 0644))
	}

	got, err := ws.Files("*.csv")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "000000.csv", filepath.Base(got[0]))
	assert.Equal(t, "000002.csv", filepath.Base(got[2]))

	require.NoError(t, ws.Remove())
	assert.NoDirExists(t, ws.Dir)
	assert.DirExists(t, other.Dir)
}

func TestConcatCSV(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "000000.csv")
	b := filepath.Join(dir, "000001.csv")
	c := filepath.Join(dir, "000002.csv")
	require.NoError(t, os.WriteFile(a, []byte("id,x\n1,a\n2,b\n"), 0644))
	require.NoError(t, os.WriteFile(b, []byte("id,x\n3,c\n"), 0644))
	require.NoError(t, os.WriteFile(c, []byte("id,x\n"), 0644))

	dst := filepath.Join(dir, "out", "all.csv")
	require.NoError(t, ConcatCSV(dst, []string{a, b, c}))

	content, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "id,x\n1,a\n2,b\n3,c\n", string(content))

	assert.Error(t, ConcatCSV(dst, []string{filepath.Join(dir, "missing.csv")}))
}
