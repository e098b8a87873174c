package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

const (
	defaultMaxSizeMB  = 50
	defaultMaxBackups = 3
)

// RotatingWriter is a size-based log file rotator. It implements
// io.Writer and is safe for concurrent use. When the active file would
// exceed its size limit, it is renamed to <path>.1 and the numbered
// backups shift up, dropping the oldest.
type RotatingWriter struct {
	mu    sync.Mutex
	out   *os.File
	path  string
	limit int64 // bytes
	keep  int   // numbered backups retained
	size  int64 // bytes written to the active file
}

// NewRotatingWriter opens (creating if needed) the log file at path,
// rotating once maxSizeMB is exceeded and keeping maxBackups old files.
// Non-positive limits fall back to defaults.
func NewRotatingWriter(path string, maxSizeMB, maxBackups int) (*RotatingWriter, error) {
	if maxSizeMB <= 0 {
		maxSizeMB = defaultMaxSizeMB
	}
	if maxBackups <= 0 {
		maxBackups = defaultMaxBackups
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	rw := &RotatingWriter{
		path:  path,
		limit: int64(maxSizeMB) * 1024 * 1024,
		keep:  maxBackups,
	}
	if err := rw.open(); err != nil {
		return nil, err
	}
	return rw, nil
}

// Write implements io.Writer, rotating first if p would push the active
// file past its limit.
func (rw *RotatingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.size+int64(len(p)) > rw.limit {
		if err := rw.rotate(); err != nil {
			return 0, fmt.Errorf("log rotation: %w", err)
		}
	}

	n, err := rw.out.Write(p)
	rw.size += int64(n)
	return n, err
}

// Close closes the active log file.
func (rw *RotatingWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.out == nil {
		return nil
	}
	err := rw.out.Close()
	rw.out = nil
	return err
}

// TeeWriter returns an io.Writer duplicating writes to both w1 and w2,
// used to keep logs on stdout while also writing the rotated file.
func TeeWriter(w1, w2 io.Writer) io.Writer {
	return io.MultiWriter(w1, w2)
}

func (rw *RotatingWriter) open() error {
	f, err := os.OpenFile(rw.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	rw.out = f
	rw.size = info.Size()
	return nil
}

func (rw *RotatingWriter) rotate() error {
	if rw.out != nil {
		rw.out.Close()
		rw.out = nil
	}

	// <path>.keep falls off the end, every younger backup ages by one,
	// and the active file becomes <path>.1.
	os.Remove(rw.backup(rw.keep))
	for i := rw.keep - 1; i >= 1; i-- {
		os.Rename(rw.backup(i), rw.backup(i+1))
	}
	os.Rename(rw.path, rw.backup(1))

	return rw.open()
}

func (rw *RotatingWriter) backup(n int) string {
	return fmt.Sprintf("%s.%d", rw.path, n)
}
