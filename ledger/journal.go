package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/vasylivanchyk330/AWS-Automation/config"
)

var (
	ErrRunNotFound    = errors.New("run not found in journal")
	ErrBucketNotFound = errors.New("journal bucket not found")
)

// StageRecord is the persisted form of a stage result.
type StageRecord struct {
	Target   string `json:"target"`
	Stage    string `json:"stage"`
	State    string `json:"state"`
	Attempts int    `json:"attempts"`
	Elapsed  string `json:"elapsed"`
	Error    string `json:"error,omitempty"`
}

// RunRecord is one journal entry describing a whole run.
type RunRecord struct {
	ID            string        `json:"id"`
	Kind          string        `json:"kind"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
	Failed        bool          `json:"failed"`
	LogFile       string        `json:"log_file"`
	Matched       int           `json:"matched"`
	Deleted       int           `json:"deleted"`
	AlreadyAbsent int           `json:"already_absent"`
	FailedItems   int           `json:"failed_items"`
	Stages        []StageRecord `json:"stages"`
}

// NewRunRecord snapshots a finished ledger into a journal entry.
func NewRunRecord(kind string, l *RunLedger) RunRecord {
	totals := l.Totals()
	rec := RunRecord{
		ID:            l.startedAt.UTC().Format(time.RFC3339) + "/" + kind,
		Kind:          kind,
		StartedAt:     l.startedAt,
		FinishedAt:    time.Now(),
		Failed:        l.Failed(),
		LogFile:       l.LogPath(),
		Matched:       totals.Matched,
		Deleted:       totals.Deleted,
		AlreadyAbsent: totals.AlreadyAbsent,
		FailedItems:   totals.Failed,
	}
	for _, r := range l.Results() {
		sr := StageRecord{
			Target:   r.Target,
			Stage:    r.Stage,
			State:    r.State.String(),
			Attempts: r.Attempts,
			Elapsed:  r.Elapsed.String(),
		}
		if r.Err != nil {
			sr.Error = r.Err.Error()
		}
		rec.Stages = append(rec.Stages, sr)
	}
	return rec
}

// Journal persists run records in a bbolt database so past runs survive the
// process and can be audited later.
type Journal struct {
	db     *bbolt.DB
	bucket string
}

// NewJournal opens the journal database and creates its bucket.
func NewJournal(cfg *config.JournalConfig) (*Journal, error) {
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid journal config: %w", err)
	}

	db, err := bbolt.Open(cfg.Path, cfg.Mode, &bbolt.Options{NoSync: cfg.NoSync})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(cfg.Bucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &Journal{db: db, bucket: cfg.Bucket}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Append writes one run record keyed by its ID. Record IDs start with an
// RFC3339 timestamp, so key order is chronological.
func (j *Journal) Append(rec RunRecord) error {
	return j.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(j.bucket))
		if b == nil {
			return ErrBucketNotFound
		}
		val, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(rec.ID), val)
	})
}

// Get looks up a run record by ID.
func (j *Journal) Get(id string) (*RunRecord, error) {
	var rec RunRecord
	err := j.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(j.bucket))
		if b == nil {
			return ErrBucketNotFound
		}
		val := b.Get([]byte(id))
		if val == nil {
			return ErrRunNotFound
		}
		return json.Unmarshal(val, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// LastRun returns the most recent run record, or ErrRunNotFound when the
// journal is empty.
func (j *Journal) LastRun() (*RunRecord, error) {
	var rec RunRecord
	err := j.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(j.bucket))
		if b == nil {
			return ErrBucketNotFound
		}
		k, v := b.Cursor().Last()
		if k == nil {
			return ErrRunNotFound
		}
		return json.Unmarshal(v, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns every run record in chronological order.
func (j *Journal) List() ([]RunRecord, error) {
	var records []RunRecord
	err := j.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(j.bucket))
		if b == nil {
			return ErrBucketNotFound
		}
		return b.ForEach(func(k, v []byte) error {
			var rec RunRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshal error for key %s: %w", k, err)
			}
			records = append(records, rec)
			return nil
		})
	})
	return records, err
}
