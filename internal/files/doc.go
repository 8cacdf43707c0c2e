// Package files provides file system helpers for the pipeline stages.
//
// Workspace is a per-run scratch directory with a unique name; the flatten
// stage writes one CSV per batch into it and removes it when done:
//
//	ws, err := files.NewWorkspace(tempDir, "flatten")
//	if err != nil {
//	    return err
//	}
//	defer ws.Remove()
//
// ConcatCSV joins CSV files that share a header into one file with a single
// header. Manager resolves file names against the configured directories.
package files
