package dataprocessing

import (
	"os"
	"path/filepath"

	"gafeatures/internal/errors"
	"gafeatures/internal/frame"
	"gafeatures/pkg/contracts/domain"
)

// PreprocessedNames are the file names of the three split outputs
type PreprocessedNames struct {
	XTrain string
	YTrain string
	XTest  string
}

// DefaultPreprocessedNames returns the standard output file names
func DefaultPreprocessedNames() PreprocessedNames {
	return PreprocessedNames{
		XTrain: "preprocessed_x_train.csv",
		YTrain: "preprocessed_y_train.csv",
		XTest:  "preprocessed_x_test.csv",
	}
}

// SessionKinds types the flattened session columns. Columns outside the
// schema stay text.
func SessionKinds(schema domain.Schema) map[string]frame.Kind {
	kinds := make(map[string]frame.Kind, len(schema))
	for _, f := range schema {
		switch f.Type {
		case domain.FieldNumber:
			kinds[f.Name] = frame.KindNumber
		case domain.FieldDate:
			kinds[f.Name] = frame.KindTime
		default:
			kinds[f.Name] = frame.KindText
		}
	}
	return kinds
}

// LoadSessions reads a flattened session file written with either flatten
// schema. Visitor ids stay text.
func LoadSessions(path string, maxRows int) (*frame.Frame, error) {
	return readFrame(path, frame.ReadOptions{
		Kinds:       SessionKinds(domain.CustomerSchema),
		Default:     frame.KindText,
		TimeLayouts: []string{frame.DateLayout, compactDateLayout},
		MaxRows:     maxRows,
	})
}

// LoadPreprocessed reads the three split outputs back from dir. Feature and
// target columns are numbers, visitor ids text.
func LoadPreprocessed(dir string, names PreprocessedNames, maxTrainRows, maxTestRows int) (*SplitResult, error) {
	opts := func(maxRows int) frame.ReadOptions {
		return frame.ReadOptions{
			Kinds: map[string]frame.Kind{
				domain.ColumnVisitorID:   frame.KindText,
				domain.ColumnDate:        frame.KindTime,
				domain.ColumnMonthBucket: frame.KindText,
			},
			Default: frame.KindNumber,
			MaxRows: maxRows,
		}
	}

	xTrain, err := readFrame(filepath.Join(dir, names.XTrain), opts(maxTrainRows))
	if err != nil {
		return nil, err
	}
	yTrain, err := readFrame(filepath.Join(dir, names.YTrain), opts(maxTrainRows))
	if err != nil {
		return nil, err
	}
	xTest, err := readFrame(filepath.Join(dir, names.XTest), opts(maxTestRows))
	if err != nil {
		return nil, err
	}
	return &SplitResult{XTrain: xTrain, YTrain: yTrain, XTest: xTest}, nil
}

func readFrame(path string, opts frame.ReadOptions) (*frame.Frame, error) {
	in, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError(path)
		}
		return nil, errors.NewStorageError("failed to open table", err).WithContext("path", path)
	}
	defer in.Close()

	f, err := frame.ReadCSV(in, opts)
	if err != nil {
		return nil, errors.NewParsingError("failed to read table", err).WithContext("path", path)
	}
	return f, nil
}

// WriteTable writes a frame as CSV, creating parent directories
func WriteTable(path string, f *frame.Frame) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.NewStorageError("failed to create output directory", err)
	}
	out, err := os.Create(path)
	if err != nil {
		return errors.NewStorageError("failed to create table file", err).WithContext("path", path)
	}
	defer out.Close()

	if err := frame.WriteCSV(out, f); err != nil {
		return errors.NewStorageError("failed to write table", err).WithContext("path", path)
	}
	return out.Sync()
}
