package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vasylivanchyk330/AWS-Automation/config"
	"github.com/vasylivanchyk330/AWS-Automation/model"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := NewJournal(&config.JournalConfig{
		Path:   filepath.Join(t.TempDir(), "journal.db"),
		Bucket: "runs",
	})
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournal_AppendAndGet(t *testing.T) {
	j := newTestJournal(t)

	rec := RunRecord{
		ID:        "2024-06-01T10:00:00Z/buckets",
		Kind:      "buckets",
		StartedAt: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
		Failed:    true,
		LogFile:   "/tmp/script_run_2024_06_01___100000__errorred.log",
		Matched:   100,
		Deleted:   90,
		Stages: []StageRecord{
			{Target: "b1", Stage: "purge", State: "FAILED", Attempts: 3, Error: "boom"},
		},
	}
	require.NoError(t, j.Append(rec))

	got, err := j.Get(rec.ID)
	require.NoError(t, err)
	require.Equal(t, rec.Kind, got.Kind)
	require.True(t, got.Failed)
	require.Equal(t, 100, got.Matched)
	require.Len(t, got.Stages, 1)
	require.Equal(t, "FAILED", got.Stages[0].State)
}

func TestJournal_GetMissing(t *testing.T) {
	j := newTestJournal(t)
	_, err := j.Get("nope")
	require.ErrorIs(t, err, ErrRunNotFound)
}

func TestJournal_LastRunIsChronological(t *testing.T) {
	j := newTestJournal(t)

	require.NoError(t, j.Append(RunRecord{ID: "2024-06-01T10:00:00Z/buckets", Kind: "buckets"}))
	require.NoError(t, j.Append(RunRecord{ID: "2024-06-02T10:00:00Z/stacks", Kind: "stacks"}))
	require.NoError(t, j.Append(RunRecord{ID: "2024-06-03T10:00:00Z/images", Kind: "images"}))

	last, err := j.LastRun()
	require.NoError(t, err)
	require.Equal(t, "images", last.Kind)

	all, err := j.List()
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "buckets", all[0].Kind)
	require.Equal(t, "images", all[2].Kind)
}

func TestJournal_LastRunEmpty(t *testing.T) {
	j := newTestJournal(t)
	_, err := j.LastRun()
	require.ErrorIs(t, err, ErrRunNotFound)
}

func TestNewRunRecord_SnapshotsLedger(t *testing.T) {
	led := newTestLedger(t)
	led.Record(&model.StageResult{
		Target: "b1", Stage: "purge", State: model.StageCompleted, Attempts: 1,
		Summary: &model.Summary{Matched: 10, Deleted: 10, Batches: 1},
	})

	rec := NewRunRecord("buckets", led)
	require.Equal(t, "buckets", rec.Kind)
	require.False(t, rec.Failed)
	require.Equal(t, 10, rec.Matched)
	require.Equal(t, 10, rec.Deleted)
	require.Len(t, rec.Stages, 1)
	require.Equal(t, "COMPLETED", rec.Stages[0].State)
	require.Contains(t, rec.ID, "/buckets")
}
