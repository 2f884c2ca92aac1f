package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vasylivanchyk330/AWS-Automation/config"
	"github.com/vasylivanchyk330/AWS-Automation/model"
)

var errThrottled = errors.New("slow down")

func testClassifier(err error) model.ErrorClass {
	if errors.Is(err, errThrottled) {
		return model.ClassThrottling
	}
	return model.ClassPermanent
}

func testItemClassifier(ie model.ItemError) model.ErrorClass {
	if ie.Code == "NotFound" {
		return model.ClassNotFound
	}
	return model.ClassPermanent
}

func testDescriptors(n int) []model.ResourceDescriptor {
	items := make([]model.ResourceDescriptor, n)
	for i := range items {
		items[i] = model.ResourceDescriptor{Key: fmt.Sprintf("item-%05d", i)}
	}
	return items
}

// fastExecutor disables real sleeping and jitter so retry tests run
// instantly and delays are exact.
func fastExecutor(t *testing.T, cfg *config.EngineConfig, sleeps *[]time.Duration) *Executor {
	t.Helper()
	e := NewExecutor(cfg, testClassifier, testItemClassifier, nil)
	e.backoff.jitter = func() float64 { return 0 }
	var mu sync.Mutex
	e.backoff.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		if sleeps != nil {
			*sleeps = append(*sleeps, d)
		}
		return nil
	}
	return e
}

func TestExecutorRun_SplitsAndDeletesAllBatches(t *testing.T) {
	items := testDescriptors(2500)

	var mu sync.Mutex
	var batchSizes []int
	del := func(ctx context.Context, b model.Batch) (int, []model.ItemError, error) {
		mu.Lock()
		batchSizes = append(batchSizes, len(b.Items))
		mu.Unlock()
		return len(b.Items), nil, nil
	}

	e := fastExecutor(t, &config.EngineConfig{Workers: 4, BatchSize: 1000}, nil)
	sum := e.Run(context.Background(), items, del)

	require.Equal(t, 2500, sum.Matched)
	require.Equal(t, 2500, sum.Deleted)
	require.Equal(t, 0, sum.Failed)
	require.Equal(t, 3, sum.Batches)
	require.True(t, sum.Success())

	require.Len(t, batchSizes, 3)
	total := 0
	for _, n := range batchSizes {
		require.LessOrEqual(t, n, 1000)
		total += n
	}
	require.Equal(t, 2500, total)
}

func TestExecutorRun_AccountingInvariant(t *testing.T) {
	items := testDescriptors(10)

	// 7 deleted, 2 already gone, 1 refused.
	del := func(ctx context.Context, b model.Batch) (int, []model.ItemError, error) {
		return 7, []model.ItemError{
			{Key: "item-00003", Code: "NotFound"},
			{Key: "item-00005", Code: "NotFound"},
			{Key: "item-00009", Code: "AccessDenied", Message: "denied"},
		}, nil
	}

	e := fastExecutor(t, &config.EngineConfig{Workers: 1, BatchSize: 100}, nil)
	sum := e.Run(context.Background(), items, del)

	require.Equal(t, 10, sum.Matched)
	require.Equal(t, 7, sum.Deleted)
	require.Equal(t, 2, sum.AlreadyAbsent)
	require.Equal(t, 1, sum.Failed)
	require.Equal(t, sum.Matched, sum.Deleted+sum.AlreadyAbsent+sum.Failed)
	require.False(t, sum.Success())
}

func TestExecutorRun_CallLevelNotFoundIsBenign(t *testing.T) {
	items := testDescriptors(5)

	notFound := errors.New("no such container")
	classify := func(err error) model.ErrorClass {
		if errors.Is(err, notFound) {
			return model.ClassNotFound
		}
		return model.ClassPermanent
	}

	e := NewExecutor(&config.EngineConfig{Workers: 1}, classify, testItemClassifier, nil)
	sum := e.Run(context.Background(), items, func(ctx context.Context, b model.Batch) (int, []model.ItemError, error) {
		return 0, nil, notFound
	})

	require.Equal(t, 5, sum.Matched)
	require.Equal(t, 0, sum.Deleted)
	require.Equal(t, 5, sum.AlreadyAbsent)
	require.Equal(t, 0, sum.Failed)
	require.True(t, sum.Success())
}

func TestExecutorRun_SecondRunIsIdempotent(t *testing.T) {
	items := testDescriptors(3)

	del := func(ctx context.Context, b model.Batch) (int, []model.ItemError, error) {
		itemErrs := make([]model.ItemError, 0, len(b.Items))
		for _, d := range b.Items {
			itemErrs = append(itemErrs, model.ItemError{Key: d.Key, Code: "NotFound"})
		}
		return 0, itemErrs, nil
	}

	e := fastExecutor(t, &config.EngineConfig{Workers: 2}, nil)
	sum := e.Run(context.Background(), items, del)

	require.Equal(t, 3, sum.Matched)
	require.Equal(t, 3, sum.AlreadyAbsent)
	require.Equal(t, 0, sum.Failed)
	require.True(t, sum.Success())
}

func TestExecutorRun_ThrottlingRetriesThenSucceeds(t *testing.T) {
	items := testDescriptors(4)

	var mu sync.Mutex
	calls := 0
	del := func(ctx context.Context, b model.Batch) (int, []model.ItemError, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls <= 2 {
			return 0, nil, errThrottled
		}
		return len(b.Items), nil, nil
	}

	var sleeps []time.Duration
	e := fastExecutor(t, &config.EngineConfig{Workers: 1, MaxRetries: 5, BaseBackoffSec: 1}, &sleeps)
	sum := e.Run(context.Background(), items, del)

	require.Equal(t, 3, calls)
	require.Equal(t, 4, sum.Deleted)
	require.Equal(t, 0, sum.Failed)
	// Exponential backoff without jitter: 1s, then 2s.
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeps)
}

func TestExecutorRun_RetriesExhausted(t *testing.T) {
	items := testDescriptors(4)

	var mu sync.Mutex
	calls := 0
	del := func(ctx context.Context, b model.Batch) (int, []model.ItemError, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return 0, nil, errThrottled
	}

	var sleeps []time.Duration
	e := fastExecutor(t, &config.EngineConfig{Workers: 1, MaxRetries: 3, BaseBackoffSec: 1}, &sleeps)
	sum := e.Run(context.Background(), items, del)

	// Initial attempt plus three retries, sleeping before each retry only.
	require.Equal(t, 4, calls)
	require.Len(t, sleeps, 3)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, sleeps)

	require.Equal(t, 4, sum.Matched)
	require.Equal(t, 0, sum.Deleted)
	require.Equal(t, 4, sum.Failed)
	require.False(t, sum.Success())
}

func TestExecutorRun_PermanentErrorFailsWithoutRetry(t *testing.T) {
	items := testDescriptors(2)

	var mu sync.Mutex
	calls := 0
	del := func(ctx context.Context, b model.Batch) (int, []model.ItemError, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return 0, nil, errors.New("access denied")
	}

	var sleeps []time.Duration
	e := fastExecutor(t, &config.EngineConfig{Workers: 1, MaxRetries: 5}, &sleeps)
	sum := e.Run(context.Background(), items, del)

	require.Equal(t, 1, calls)
	require.Empty(t, sleeps)
	require.Equal(t, 2, sum.Failed)
}

func TestExecutorRun_NoItems(t *testing.T) {
	e := fastExecutor(t, &config.EngineConfig{Workers: 3}, nil)
	sum := e.Run(context.Background(), nil, func(ctx context.Context, b model.Batch) (int, []model.ItemError, error) {
		t.Fatal("delete must not be called for an empty set")
		return 0, nil, nil
	})

	require.Equal(t, 0, sum.Matched)
	require.Equal(t, 0, sum.Batches)
	require.True(t, sum.Success())
}

func TestExecutorRunStream_OverlapsEnumeration(t *testing.T) {
	batches := make(chan model.Batch, 3)
	for seq, n := range []int{1000, 1000, 500} {
		batches <- model.Batch{Seq: seq, Items: testDescriptors(n)}
	}
	close(batches)

	del := func(ctx context.Context, b model.Batch) (int, []model.ItemError, error) {
		return len(b.Items), nil, nil
	}

	e := fastExecutor(t, &config.EngineConfig{Workers: 2}, nil)
	sum := e.RunStream(context.Background(), batches, del)

	require.Equal(t, 2500, sum.Matched)
	require.Equal(t, 2500, sum.Deleted)
	require.Equal(t, 3, sum.Batches)
}

func TestExecutorRun_CancelledContextFailsRemainingBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := testDescriptors(30)
	e := fastExecutor(t, &config.EngineConfig{Workers: 1, BatchSize: 10}, nil)
	sum := e.Run(ctx, items, func(ctx context.Context, b model.Batch) (int, []model.ItemError, error) {
		t.Fatal("delete must not be called after cancellation")
		return 0, nil, nil
	})

	require.Equal(t, 30, sum.Matched)
	require.Equal(t, 30, sum.Failed)
	require.False(t, sum.Success())
}
