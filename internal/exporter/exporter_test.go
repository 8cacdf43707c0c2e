package exporter

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"gafeatures/internal/config"
	"gafeatures/internal/errors"
	"gafeatures/internal/frame"
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

func sampleFrame(t *testing.T) *frame.Frame {
	t.Helper()
	f := frame.New(2)
	require.NoError(t, f.SetText("fullVisitorId", []string{"0001", "0002"}))
	require.NoError(t, f.SetNumber("pageviews_9_1", []float64{3, math.NaN()}))
	require.NoError(t, f.SetText("browser", []string{"Chrome", "Safari"}))
	return f
}

func TestCSVWriter_WriteFrame(t *testing.T) {
	paths := testPaths(t)
	writer := NewCSVWriter(paths, nil)

	tests := []struct {
		name    string
		options WriteOptions
		prefix  string
	}{
		{"plain", WriteOptions{}, ""},
		{"with bom", WriteOptions{BOMPrefix: true}, "\ufeff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := writer.WriteFrame("x.csv", sampleFrame(t), tt.options)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(paths.OutputDir, "x.csv"), got)

			content, err := os.ReadFile(got)
			require.NoError(t, err)
			want := tt.prefix + "fullVisitorId,pageviews_9_1,browser\n0001,3,Chrome\n0002,,Safari\n"
			assert.Equal(t, want, string(content))
		})
	}
}

func TestCSVWriter_AbsolutePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "y.csv")
	got, err := NewCSVWriter(testPaths(t), nil).WriteFrame(path, sampleFrame(t), WriteOptions{})
	require.NoError(t, err)
	assert.Equal(t, path, got)
	assert.FileExists(t, path)
}

func TestExcelWriter_WriteWorkbook(t *testing.T) {
	paths := testPaths(t)
	y := frame.New(1)
	require.NoError(t, y.SetText("fullVisitorId", []string{"0001"}))
	require.NoError(t, y.SetNumber("target", []float64{0.5}))

	got, err := NewExcelWriter(paths, nil).WriteWorkbook("book.xlsx", []Table{
		{Name: "x_train", Frame: sampleFrame(t)},
		{Name: "y_train", Frame: y},
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(paths.OutputDir, "book.xlsx"), got)

	f, err := excelize.OpenFile(got)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"x_train", "y_train"}, f.GetSheetList())

	rows, err := f.GetRows("x_train")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"fullVisitorId", "pageviews_9_1", "browser"}, rows[0])
	assert.Equal(t, []string{"0001", "3", "Chrome"}, rows[1])
	assert.Equal(t, []string{"0002", "", "Safari"}, rows[2])

	rows, err = f.GetRows("y_train")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"fullVisitorId", "target"}, {"0001", "0.5"}}, rows)
}

func TestExcelWriter_Errors(t *testing.T) {
	writer := NewExcelWriter(testPaths(t), nil)

	_, err := writer.WriteWorkbook("empty.xlsx", nil)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))

	_, err = writer.WriteWorkbook("dup.xlsx", []Table{
		{Name: "x", Frame: sampleFrame(t)},
		{Name: "x", Frame: sampleFrame(t)},
	})
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "x_train", sheetName("x_train"))
	assert.Len(t, sheetName("a_very_long_table_name_that_overflows_the_limit"), maxSheetName)
}
