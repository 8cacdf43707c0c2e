package files

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
)

// Workspace is a uniquely named scratch directory owned by one run of a stage
type Workspace struct {
	Dir string
}

// NewWorkspace creates <parent>/<prefix>-<uuid>
func NewWorkspace(parent, prefix string) (*Workspace, error) {
	if err := os.MkdirAll(parent, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory %s: %w", parent, err)
	}

	dir := filepath.Join(parent, fmt.Sprintf("%s-%s", prefix, uuid.New().String()))
	if err := os.Mkdir(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace %s: %w", dir, err)
	}

	slog.Debug("Created workspace", slog.String("dir", dir))
	return &Workspace{Dir: dir}, nil
}

// Path returns the path of a file inside the workspace
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// Files returns the workspace files matching pattern in name order
func (w *Workspace) Files(pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(w.Dir, pattern))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// Remove deletes the workspace and everything in it
func (w *Workspace) Remove() error {
	slog.Debug("Removing workspace", slog.String("dir", w.Dir))
	return os.RemoveAll(w.Dir)
}

// ConcatCSV writes the sources to dst in the given order, keeping the header
// line of the first source only. Sources must share the same header.
func ConcatCSV(dst string, srcs []string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	for i, src := range srcs {
		if err := appendFile(w, src, i > 0); err != nil {
			return err
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", dst, err)
	}
	return out.Sync()
}

func appendFile(w io.Writer, src string, skipHeader bool) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer in.Close()

	r := bufio.NewReader(in)
	if skipHeader {
		if _, err := r.ReadString('\n'); err != nil && err != io.EOF {
			return fmt.Errorf("failed to skip header of %s: %w", src, err)
		}
	}

	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return nil
}
