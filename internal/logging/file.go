package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// EnsureLogFile creates the log file (and its directory) if missing,
// writing a one-line header so the file is never ambiguous-empty.
func EnsureLogFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	header := fmt.Sprintf("TorNet Log File - Created %s\n", time.Now().Format(time.RFC3339))
	return os.WriteFile(path, []byte(header), 0600)
}

// OpenLogFile opens path for appending, creating it with a header if needed.
// The caller owns the returned file.
func OpenLogFile(path string) (*os.File, error) {
	if err := EnsureLogFile(path); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0600)
}

// Tee returns a writer that duplicates output to every non-nil writer.
func Tee(writers ...io.Writer) io.Writer {
	out := make([]io.Writer, 0, len(writers))
	for _, w := range writers {
		if w != nil {
			out = append(out, w)
		}
	}
	return io.MultiWriter(out...)
}
