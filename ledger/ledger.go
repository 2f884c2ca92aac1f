package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vasylivanchyk330/AWS-Automation/config"
	"github.com/vasylivanchyk330/AWS-Automation/model"
)

// logNameLayout matches script_run_2025_01_02___150405.log
const (
	logNameLayout = "2006_01_02___150405"
	failedSuffix  = "__errorred.log"
)

// RunLedger collects the stage results of a run and owns the log artifact
// path. When any stage failed, Finalize renames the artifact so the failure
// is visible from the file name alone.
type RunLedger struct {
	mu        sync.Mutex
	path      string
	startedAt time.Time
	results   []model.StageResult
}

// New resolves the log path from config and creates the log directory.
func New(cfg *config.LedgerConfig) (*RunLedger, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ledger config: %w", err)
	}

	now := time.Now()
	path := cfg.LogFile
	if path == "" {
		path = filepath.Join(cfg.LogDir, "script_run_"+now.Format(logNameLayout)+".log")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	return &RunLedger{path: path, startedAt: now}, nil
}

// LogPath returns the artifact path the run writes to.
func (l *RunLedger) LogPath() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.path
}

// Record appends a stage result. Only terminal states are kept; a result
// still in flight carries no verdict. Safe for concurrent use.
func (l *RunLedger) Record(res *model.StageResult) {
	if res == nil || !res.State.Terminal() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.results = append(l.results, *res)
}

// Results returns a copy of the recorded stage results in arrival order.
func (l *RunLedger) Results() []model.StageResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.StageResult, len(l.results))
	copy(out, l.results)
	return out
}

// Failed reports whether any recorded stage failed.
func (l *RunLedger) Failed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.results {
		if r.State == model.StageFailed {
			return true
		}
	}
	return false
}

// Totals aggregates the summaries of every recorded stage.
func (l *RunLedger) Totals() model.Summary {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total model.Summary
	for _, r := range l.results {
		if r.Summary == nil {
			continue
		}
		total.Matched += r.Summary.Matched
		total.Deleted += r.Summary.Deleted
		total.AlreadyAbsent += r.Summary.AlreadyAbsent
		total.Failed += r.Summary.Failed
		total.Batches += r.Summary.Batches
	}
	total.Elapsed = time.Since(l.startedAt)
	return total
}

// ExitCode is 0 for a clean run and 1 when any stage failed.
func (l *RunLedger) ExitCode() int {
	if l.Failed() {
		return 1
	}
	return 0
}

// Finalize settles the artifact name and returns the final path. A failed
// run gets the failure suffix appended to the base name; the rename error is
// returned but the original path still stands if it cannot be applied.
func (l *RunLedger) Finalize() (string, error) {
	l.mu.Lock()
	failed := false
	for _, r := range l.results {
		if r.State == model.StageFailed {
			failed = true
			break
		}
	}
	path := l.path
	l.mu.Unlock()

	if !failed {
		return path, nil
	}

	marked := strings.TrimSuffix(path, ".log") + failedSuffix
	if err := os.Rename(path, marked); err != nil {
		if os.IsNotExist(err) {
			// Nothing was written; keep the marked name for reporting anyway
			l.setPath(marked)
			return marked, nil
		}
		return path, fmt.Errorf("failed to mark log artifact: %w", err)
	}
	l.setPath(marked)
	return marked, nil
}

func (l *RunLedger) setPath(path string) {
	l.mu.Lock()
	l.path = path
	l.mu.Unlock()
}
