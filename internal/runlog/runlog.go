// Package runlog keeps the append-only, human-readable record of each
// selection run.
package runlog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TimeLayout is the timestamp format prefixed to each line.
const TimeLayout = "02/01/2006 15:04:05"

// Appender receives one line per stage transition.
type Appender interface {
	Append(line string) error
}

// Log writes timestamped lines to an underlying writer.
//
// Thread-safety: Log is safe for concurrent use via internal mutex.
type Log struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Log.
type Option func(*Log)

// WithClock overrides the timestamp source (for testing).
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// WithLogger mirrors every line to logger at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) { l.logger = logger }
}

// New creates a Log writing to w.
func New(w io.Writer, opts ...Option) *Log {
	l := &Log{w: w, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Open opens (or creates) the log file at path for appending.
// If clear is true, existing content is discarded first.
func Open(path string, clear bool, opts ...Option) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if clear {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	l := New(f, opts...)
	l.closer = f
	return l, nil
}

// FileName returns the per-caller log file path inside dir.
func FileName(dir, token string) string {
	return filepath.Join(dir, "DataSelector_"+token+".log")
}

// Append writes one timestamped line.
func (l *Log) Append(line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logger != nil {
		l.logger.Debug("run log", "line", line)
	}
	if _, err := fmt.Fprintf(l.w, "%s : %s\n", l.now().Format(TimeLayout), line); err != nil {
		return fmt.Errorf("append run log: %w", err)
	}
	return nil
}

// Close closes the underlying file, if the Log owns one.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	l.closer = nil
	return err
}

// Discard is an Appender that drops every line.
var Discard Appender = discard{}

type discard struct{}

func (discard) Append(string) error { return nil }
