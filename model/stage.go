package model

import (
	"fmt"
	"time"
)

// StageState is the per-target pipeline execution state. Transitions only
// move forward: Pending -> Running -> Completed | Failed | Skipped.
type StageState int

const (
	StagePending StageState = iota
	StageRunning
	StageCompleted
	StageFailed
	StageSkipped
)

func (s StageState) String() string {
	switch s {
	case StagePending:
		return "PENDING"
	case StageRunning:
		return "RUNNING"
	case StageCompleted:
		return "COMPLETED"
	case StageFailed:
		return "FAILED"
	case StageSkipped:
		return "SKIPPED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// Terminal reports whether the state is final.
func (s StageState) Terminal() bool {
	switch s {
	case StageCompleted, StageFailed, StageSkipped:
		return true
	default:
		return false
	}
}

// StageResult records the terminal outcome of one (target, stage) pair.
type StageResult struct {
	Target   string
	Stage    string
	State    StageState
	Attempts int
	Elapsed  time.Duration
	Err      error
	Summary  *Summary // nil for single-action stages
}

func (r *StageResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s/%s: %s after %d attempt(s): %v", r.Target, r.Stage, r.State, r.Attempts, r.Err)
	}
	return fmt.Sprintf("%s/%s: %s after %d attempt(s)", r.Target, r.Stage, r.State, r.Attempts)
}
