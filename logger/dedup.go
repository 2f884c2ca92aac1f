package logger

import (
	"fmt"
	"sync"
)

// DedupLogger wraps another logger and suppresses consecutive repetitions of
// an identical formatted line. Retry-heavy stages produce the same message
// many times; the audit log keeps one copy plus a repeat count.
type DedupLogger struct {
	mu    sync.Mutex
	inner Logger

	lastLine  string
	lastCount int
	lastEmit  func(msg string, args ...interface{})
}

// NewDedupLogger creates a deduplicating wrapper around inner.
func NewDedupLogger(inner Logger) *DedupLogger {
	if inner == nil {
		inner = NewNoOpLogger()
	}
	return &DedupLogger{inner: inner}
}

var _ Logger = (*DedupLogger)(nil)

// emit forwards the line unless it repeats the previous one. A changed line
// first flushes the pending repeat count.
func (d *DedupLogger) emit(log func(msg string, args ...interface{}), msg string, args ...interface{}) {
	line := msg
	if len(args) > 0 {
		line = fmt.Sprintf(msg, args...)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if line == d.lastLine {
		d.lastCount++
		return
	}
	d.flushLocked()
	d.lastLine = line
	d.lastEmit = log
	log("%s", line)
}

// Flush reports any pending repeat count. Call once when a stage finishes.
func (d *DedupLogger) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flushLocked()
	d.lastLine = ""
	d.lastEmit = nil
}

// flushLocked emits the pending repeat notice at the level of the collapsed
// line, so a suppressed error run stays visible under an error-only filter.
func (d *DedupLogger) flushLocked() {
	if d.lastCount > 0 && d.lastEmit != nil {
		d.lastEmit("(previous line repeated %d more time(s))", d.lastCount)
	}
	d.lastCount = 0
}

func (d *DedupLogger) Error(msg string, args ...interface{})   { d.emit(d.inner.Error, msg, args...) }
func (d *DedupLogger) Warn(msg string, args ...interface{})    { d.emit(d.inner.Warn, msg, args...) }
func (d *DedupLogger) Info(msg string, args ...interface{})    { d.emit(d.inner.Info, msg, args...) }
func (d *DedupLogger) Debug(msg string, args ...interface{})   { d.emit(d.inner.Debug, msg, args...) }
func (d *DedupLogger) Verbose(msg string, args ...interface{}) { d.emit(d.inner.Verbose, msg, args...) }

// With and WithFields delegate to the wrapped logger. The derived logger
// deduplicates independently, starting with fresh state; its field context
// renders into the line anyway, so sharing counts across contexts would
// conflate distinct output.
func (d *DedupLogger) With(key string, value interface{}) Logger {
	return &DedupLogger{inner: d.inner.With(key, value)}
}

func (d *DedupLogger) WithFields(fields map[string]interface{}) Logger {
	return &DedupLogger{inner: d.inner.WithFields(fields)}
}
