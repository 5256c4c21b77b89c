package build

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"
)

const (
	// defaultMaxLogFiles is how many rotated files the daemon keeps when
	// the flag is left at zero.
	defaultMaxLogFiles = 10

	// defaultMaxLogFileSizeMB is the rotation threshold applied when the
	// flag is left at zero.
	defaultMaxLogFileSizeMB = 20

	// logFilename is the daemon's log file name inside the log
	// directory.
	logFilename = "trouped.log"
)

// RotatorConfig describes the daemon's file-logging setup. The zero value
// of every field except LogDir falls back to the trouped defaults above.
type RotatorConfig struct {
	// LogDir is the directory the log file lives in. Required.
	LogDir string

	// MaxLogFiles caps how many gzip-compressed rotated files are kept.
	MaxLogFiles int

	// MaxLogFileSizeMB is the size a file may reach before rotation.
	MaxLogFileSizeMB int
}

// RotatingLogWriter is an io.Writer that feeds a jrick/logrotate rotator
// through a pipe, rotating and gzip-compressing the daemon's log file as it
// grows.
type RotatingLogWriter struct {
	// path is the active log file.
	path string

	// pipe is the write end feeding the rotator goroutine.
	pipe *io.PipeWriter
}

// NewRotatingLogWriter creates the log directory if needed, starts the
// rotator goroutine and returns a writer that is immediately usable.
func NewRotatingLogWriter(cfg RotatorConfig) (*RotatingLogWriter, error) {
	if cfg.LogDir == "" {
		return nil, fmt.Errorf("log directory required")
	}

	maxFiles := cfg.MaxLogFiles
	if maxFiles <= 0 {
		maxFiles = defaultMaxLogFiles
	}

	sizeMB := cfg.MaxLogFileSizeMB
	if sizeMB <= 0 {
		sizeMB = defaultMaxLogFileSizeMB
	}

	if err := os.MkdirAll(cfg.LogDir, 0o700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	path := filepath.Join(cfg.LogDir, logFilename)

	// The rotator wants its threshold in kilobytes.
	fileRotator, err := rotator.New(
		path, int64(sizeMB)*1024, false, maxFiles,
	)
	if err != nil {
		return nil, fmt.Errorf("create file rotator: %w", err)
	}

	fileRotator.SetCompressor(gzip.NewWriter(nil), ".gz")

	// The rotator consumes the read end until the pipe closes. Errors go
	// to stderr, the rotator itself being the log destination.
	pr, pw := io.Pipe()
	go func() {
		if err := fileRotator.Run(pr); err != nil {
			_, _ = fmt.Fprintf(
				os.Stderr, "log rotator stopped: %v\n", err,
			)
		}
	}()

	return &RotatingLogWriter{
		path: path,
		pipe: pw,
	}, nil
}

// Path reports the active log file, for the daemon's startup banner.
func (r *RotatingLogWriter) Path() string {
	return r.path
}

// Write feeds the byte slice to the rotator pipe.
func (r *RotatingLogWriter) Write(b []byte) (int, error) {
	return r.pipe.Write(b)
}

// Close closes the pipe's write end, which flushes the rotator goroutine
// and lets it exit.
func (r *RotatingLogWriter) Close() error {
	return r.pipe.Close()
}
