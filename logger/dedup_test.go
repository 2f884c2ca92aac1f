package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vasylivanchyk330/AWS-Automation/config"
)

func newBufferedDedup(t *testing.T) (*DedupLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	inner := NewLoggerWithWriter(&config.LoggerConfig{Level: config.LogLevelInfo}, &buf)
	return NewDedupLogger(inner), &buf
}

func TestDedup_CollapsesConsecutiveRepeats(t *testing.T) {
	log, buf := newBufferedDedup(t)

	for i := 0; i < 5; i++ {
		log.Info("Batch %d throttled, backing off", 7)
	}
	log.Info("Batch %d done", 7)

	out := buf.String()
	require.Equal(t, 1, strings.Count(out, "throttled"))
	require.Contains(t, out, "(previous line repeated 4 more time(s))")
	require.Contains(t, out, "Batch 7 done")
}

func TestDedup_DistinctLinesPassThrough(t *testing.T) {
	log, buf := newBufferedDedup(t)

	log.Info("line one")
	log.Info("line two")
	log.Info("line three")

	out := buf.String()
	require.Contains(t, out, "line one")
	require.Contains(t, out, "line two")
	require.Contains(t, out, "line three")
	require.NotContains(t, out, "repeated")
}

func TestDedup_FlushReportsPendingCount(t *testing.T) {
	log, buf := newBufferedDedup(t)

	log.Info("same line")
	log.Info("same line")
	log.Info("same line")
	require.NotContains(t, buf.String(), "repeated")

	log.Flush()
	require.Contains(t, buf.String(), "(previous line repeated 2 more time(s))")

	// Flush resets state; the same line logs again afterwards.
	log.Info("same line")
	require.Equal(t, 2, strings.Count(buf.String(), "same line"))
}

func TestDedup_FlushWithoutRepeatsIsSilent(t *testing.T) {
	log, buf := newBufferedDedup(t)

	log.Info("only once")
	before := buf.String()
	log.Flush()
	require.Equal(t, before, buf.String())
}

func TestDedup_RepeatNoticeKeepsLevel(t *testing.T) {
	var buf bytes.Buffer
	inner := NewLoggerWithWriter(&config.LoggerConfig{Level: config.LogLevelError}, &buf)
	log := NewDedupLogger(inner)

	// Under an error-only filter the repeat notice must survive together
	// with the error line it stands for.
	for i := 0; i < 3; i++ {
		log.Error("DeleteObjects throttled")
	}
	log.Flush()

	out := buf.String()
	require.Equal(t, 1, strings.Count(out, "DeleteObjects throttled"))
	require.Contains(t, out, "(previous line repeated 2 more time(s))")
}

func TestDedup_RepeatNoticeKeepsLevelOnLineChange(t *testing.T) {
	var buf bytes.Buffer
	inner := NewLoggerWithWriter(&config.LoggerConfig{Level: config.LogLevelError}, &buf)
	log := NewDedupLogger(inner)

	log.Error("stage failed")
	log.Error("stage failed")
	log.Info("moving on")

	out := buf.String()
	require.Contains(t, out, "repeated 1 more time(s)")
	require.NotContains(t, out, "moving on")
}

func TestDedup_DerivedLoggerStartsFresh(t *testing.T) {
	log, buf := newBufferedDedup(t)

	log.Info("purge started")
	log.With("bucket", "releases").Info("purge started")

	// The derived logger carries its own state, so its first line is not
	// suppressed by the parent's history.
	require.Equal(t, 2, strings.Count(buf.String(), "purge started"))
}

func TestDedup_CountsAcrossLevels(t *testing.T) {
	log, buf := newBufferedDedup(t)

	// The same formatted line repeated on another level still counts as a
	// repeat; the artifact records content, not severity.
	log.Info("stalled")
	log.Warn("stalled")
	log.Flush()

	require.Equal(t, 1, strings.Count(buf.String(), "stalled"))
	require.Contains(t, buf.String(), "repeated 1 more time(s)")
}
