package model

import (
	"fmt"
	"time"
)

// ErrorClass is the three-way classification the retry policy understands.
type ErrorClass int

const (
	ClassNone ErrorClass = iota
	ClassThrottling
	ClassNotFound
	ClassPermanent
)

func (c ErrorClass) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassThrottling:
		return "throttling"
	case ClassNotFound:
		return "not_found"
	case ClassPermanent:
		return "permanent"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

// ItemError reports a single identity the provider refused to delete.
type ItemError struct {
	Key     string
	Version string
	Code    string
	Message string
}

// DeletionOutcome is the terminal result of one batch.
type DeletionOutcome struct {
	Seq           int
	Submitted     int
	Deleted       int
	AlreadyAbsent int
	Attempts      int
	ItemErrors    []ItemError
	Class         ErrorClass
	Err           error // last call-level error, nil on success
}

// Failed reports whether the batch ended in an unrecovered failure.
// Item-level not-found entries and call-level NotFound are benign.
func (o *DeletionOutcome) Failed() bool {
	if o.Err != nil && o.Class != ClassNotFound {
		return true
	}
	return len(o.ItemErrors) > 0
}

// Summary aggregates outcomes across all batches of one enumeration pass.
type Summary struct {
	Matched       int
	Deleted       int
	AlreadyAbsent int
	Failed        int
	Batches       int
	Elapsed       time.Duration
}

func (s *Summary) String() string {
	return fmt.Sprintf("matched=%d, deleted=%d, already_absent=%d, failed=%d, batches=%d, elapsed=%.2fs",
		s.Matched, s.Deleted, s.AlreadyAbsent, s.Failed, s.Batches, s.Elapsed.Seconds())
}

// Add folds one batch outcome into the summary. Aggregation is commutative,
// so out-of-order batch completion does not matter.
func (s *Summary) Add(o *DeletionOutcome) {
	s.Batches++
	s.Deleted += o.Deleted
	s.AlreadyAbsent += o.AlreadyAbsent
	if o.Failed() {
		s.Failed += o.Submitted - o.Deleted - o.AlreadyAbsent
	}
}

// Success reports whether every matched descriptor reached a benign terminal
// state.
func (s *Summary) Success() bool {
	return s.Failed == 0
}
