package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vasylivanchyk330/AWS-Automation/config"
	"github.com/vasylivanchyk330/AWS-Automation/logger"
	"github.com/vasylivanchyk330/AWS-Automation/model"
)

// BatchDeleteFunc is one provider-specific bulk-delete call. Kinds without a
// native bulk endpoint issue per-item deletes behind the same signature.
// The provider must account for every submitted identity: deleted count plus
// per-item errors covers the whole batch.
type BatchDeleteFunc func(ctx context.Context, batch model.Batch) (deleted int, itemErrs []model.ItemError, err error)

// Classifier maps a raw provider error onto the three categories the retry
// policy understands.
type Classifier func(error) model.ErrorClass

// ItemClassifier maps a per-item error code onto an error class, so batches
// containing already-deleted identities count them as benign.
type ItemClassifier func(model.ItemError) model.ErrorClass

// Executor deletes descriptor sets with a fixed-size worker pool, retrying
// throttled batches with exponential backoff and jitter. Counts are
// aggregated by the submitting goroutine only; workers never touch shared
// state.
type Executor struct {
	cfg          *config.EngineConfig
	classify     Classifier
	classifyItem ItemClassifier
	backoff      BackoffPolicy
	limiter      *rate.Limiter
	log          logger.Logger
}

// NewExecutor creates an executor. classifyItem may be nil, in which case
// every per-item error counts as permanent.
func NewExecutor(cfg *config.EngineConfig, classify Classifier, classifyItem ItemClassifier, log logger.Logger) *Executor {
	if cfg == nil {
		cfg = &config.EngineConfig{}
	}
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if classify == nil {
		classify = func(error) model.ErrorClass { return model.ClassPermanent }
	}
	if classifyItem == nil {
		classifyItem = func(model.ItemError) model.ErrorClass { return model.ClassPermanent }
	}

	var limiter *rate.Limiter
	if cfg.MaxRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.MaxRPS), cfg.MaxRPS) // burst = MaxRPS
	}

	return &Executor{
		cfg:          cfg,
		classify:     classify,
		classifyItem: classifyItem,
		backoff:      NewBackoffPolicy(cfg.MaxRetries, time.Duration(cfg.BaseBackoffSec*float64(time.Second))),
		limiter:      limiter,
		log:          log,
	}
}

// Run partitions the descriptor set into batches and deletes them with the
// worker pool. It returns only after every batch reached a terminal state.
func (e *Executor) Run(ctx context.Context, items []model.ResourceDescriptor, del BatchDeleteFunc) *model.Summary {
	batches := model.SplitBatches(items, e.cfg.BatchSize)
	ch := make(chan model.Batch, len(batches))
	for _, b := range batches {
		ch <- b
	}
	close(ch)

	return e.drain(ctx, ch, del)
}

// RunStream deletes batches as they arrive from an enumeration stream, so
// deletion overlaps continued page fetching.
func (e *Executor) RunStream(ctx context.Context, batches <-chan model.Batch, del BatchDeleteFunc) *model.Summary {
	return e.drain(ctx, batches, del)
}

// drain runs the worker pool until the batch channel closes and every
// outcome has been folded into the summary.
func (e *Executor) drain(ctx context.Context, batches <-chan model.Batch, del BatchDeleteFunc) *model.Summary {
	start := time.Now()
	summary := &model.Summary{}

	results := make(chan *model.DeletionOutcome)

	var wg sync.WaitGroup
	for w := 0; w < e.cfg.Workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for b := range batches {
				if err := ctx.Err(); err != nil {
					// Cancellation: batches already in flight finish, but
					// nothing new is submitted to the provider.
					results <- &model.DeletionOutcome{
						Seq:       b.Seq,
						Submitted: len(b.Items),
						Class:     model.ClassPermanent,
						Err:       err,
					}
					continue
				}
				out := e.executeBatch(ctx, b, del)
				if out.Failed() {
					e.log.Warn("[Worker %d] Batch %d failed: class=%s, item_errors=%d: %v",
						workerID, out.Seq, out.Class, len(out.ItemErrors), out.Err)
				} else {
					e.log.Verbose("[Worker %d] Batch %d done: deleted=%d, already_absent=%d, attempts=%d",
						workerID, out.Seq, out.Deleted, out.AlreadyAbsent, out.Attempts)
				}
				results <- out
			}
		}(w)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	// The calling goroutine is the single owner of the summary; batches may
	// complete out of submission order, which is fine because aggregation is
	// commutative.
	for out := range results {
		summary.Add(out)
		summary.Matched += out.Submitted
	}

	summary.Elapsed = time.Since(start)
	return summary
}

// executeBatch drives one batch to a terminal state: success, partial
// success with recorded item errors, benign not-found, or retries exhausted.
func (e *Executor) executeBatch(ctx context.Context, b model.Batch, del BatchDeleteFunc) *model.DeletionOutcome {
	out := &model.DeletionOutcome{Seq: b.Seq, Submitted: len(b.Items)}

	for attempt := 0; ; attempt++ {
		out.Attempts = attempt + 1

		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				out.Class = model.ClassPermanent
				out.Err = fmt.Errorf("rate limiter error: %w", err)
				return out
			}
		}

		// The deletion call itself must not be cut short by run
		// cancellation: partial batch deletion is well-defined by the
		// provider, and re-listing after a mid-batch abort would
		// double-count.
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx),
			time.Duration(e.cfg.TimeoutSeconds)*time.Second)
		deleted, itemErrs, err := del(callCtx, b)
		cancel()

		if err == nil {
			out.Deleted = deleted
			for _, ie := range itemErrs {
				if e.classifyItem(ie) == model.ClassNotFound {
					out.AlreadyAbsent++
				} else {
					out.ItemErrors = append(out.ItemErrors, ie)
				}
			}
			if len(out.ItemErrors) > 0 {
				out.Class = model.ClassPermanent
			}
			return out
		}

		switch e.classify(err) {
		case model.ClassNotFound:
			// Already-deleted identities are success-equivalent.
			out.AlreadyAbsent = out.Submitted
			out.Class = model.ClassNotFound
			out.Err = err
			return out
		case model.ClassThrottling:
			if attempt >= e.backoff.MaxRetries {
				out.Class = model.ClassThrottling
				out.Err = fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, out.Attempts, err)
				return out
			}
			e.log.Debug("Batch %d throttled (attempt %d/%d), backing off", b.Seq, out.Attempts, e.backoff.MaxRetries+1)
			if werr := e.backoff.Wait(ctx, attempt); werr != nil {
				out.Class = model.ClassPermanent
				out.Err = werr
				return out
			}
		default:
			out.Class = model.ClassPermanent
			out.Err = err
			return out
		}
	}
}
