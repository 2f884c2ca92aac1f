package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"
)

// TeeWriter duplicates log output to the console and a log file, the way the
// run ledger expects: the file is the durable artifact, the console is for
// the operator.
type TeeWriter struct {
	mu      sync.Mutex
	console io.Writer
	file    *os.File
}

// NewTeeWriter opens (creates or appends to) the log file at path and returns
// a writer that mirrors everything to stdout. Parent directories are created
// as needed.
func NewTeeWriter(path string) (*TeeWriter, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &TeeWriter{console: os.Stdout, file: f}, nil
}

func (t *TeeWriter) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.console.Write(p); err != nil {
		return 0, err
	}
	return t.file.Write(p)
}

// Close flushes and closes the underlying log file.
func (t *TeeWriter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.file.Sync(); err != nil {
		t.file.Close()
		return err
	}
	return t.file.Close()
}
