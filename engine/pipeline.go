package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/vasylivanchyk330/AWS-Automation/logger"
	"github.com/vasylivanchyk330/AWS-Automation/model"
)

// Stage is one step of a target's cleanup sequence: either an
// enumeration+deletion pass or a single idempotent action (apply a policy,
// delete the now-empty container). Run returns a nil summary for
// single-action stages.
type Stage struct {
	Name string
	Run  func(ctx context.Context, target string) (*model.Summary, error)

	// Wait suspends the pipeline between this stage's completion and the
	// next stage's start, e.g. to let a lifecycle policy propagate. This is
	// the orchestrator's only scheduled suspension point.
	Wait time.Duration
}

// Recorder receives every terminal stage result. The run ledger implements
// it.
type Recorder interface {
	Record(result *model.StageResult)
}

// ApproveFunc gates destructive work on one target. A nil func approves
// everything.
type ApproveFunc func(target string) bool

// flusher is implemented by the deduplicating logger; flushing between
// stages keeps repeat counts scoped to one stage invocation.
type flusher interface {
	Flush()
}

// Pipeline runs an ordered list of cleanup stages against each target
// entity. Stage order is fixed and never reordered on runtime state; a
// target's sequence is abandoned on the first stage that exhausts its
// retries, while other targets are isolated from the failure unless
// fail-fast is requested.
type Pipeline struct {
	stages   []Stage
	backoff  BackoffPolicy
	classify Classifier
	failFast bool
	log      logger.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewPipeline creates a pipeline over the given stages. classify decides
// which stage errors are retried with backoff; nil retries nothing.
func NewPipeline(stages []Stage, backoff BackoffPolicy, classify Classifier, failFast bool, log logger.Logger) *Pipeline {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if classify == nil {
		classify = func(error) model.ErrorClass { return model.ClassPermanent }
	}
	return &Pipeline{
		stages:   stages,
		backoff:  backoff,
		classify: classify,
		failFast: failFast,
		log:      log,
		sleep:    sleepWithContext,
	}
}

// Execute processes every approved target through the stage sequence and
// reports whether all of them completed. Unapproved targets are skipped
// without being recorded as failures.
func (p *Pipeline) Execute(ctx context.Context, targets []string, approve ApproveFunc, rec Recorder) bool {
	allOK := true
	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			p.log.Warn("Run cancelled, %q and remaining targets are not processed", target)
			return false
		}
		if approve != nil && !approve(target) {
			p.log.Info("Skipping target: %s", target)
			continue
		}
		if !p.ExecuteTarget(ctx, target, rec) {
			allOK = false
			if p.failFast {
				p.log.Error("Target %q failed, aborting remaining targets (fail-fast)", target)
				return false
			}
		}
	}
	return allOK
}

// ExecuteTarget drives one target through the state machine
// Pending -> Running(stage i) -> {Running(stage i+1) | Failed | Completed}.
// There is no transition back to an earlier stage and no automatic restart
// of the sequence.
func (p *Pipeline) ExecuteTarget(ctx context.Context, target string, rec Recorder) bool {
	p.log.Info("Processing target: %s", target)

	for i, stage := range p.stages {
		p.log.Info("STARTING STAGE -- %s (%d/%d) for %s", stage.Name, i+1, len(p.stages), target)

		result := p.runStage(ctx, target, stage)
		if f, ok := p.log.(flusher); ok {
			f.Flush()
		}
		if rec != nil {
			rec.Record(result)
		}

		if result.State == model.StageFailed {
			p.log.Error("Stage %q failed for %q after %d attempt(s): %v",
				stage.Name, target, result.Attempts, result.Err)
			p.skipRemaining(target, i+1, rec)
			return false
		}
		p.log.Info("Finished stage %s for %s", stage.Name, target)

		if stage.Wait > 0 && i < len(p.stages)-1 {
			p.log.Info("Waiting %s before the next stage...", stage.Wait)
			if err := p.sleep(ctx, stage.Wait); err != nil {
				p.skipRemaining(target, i+1, rec)
				return false
			}
		}
	}

	p.log.Info("Target completed: %s", target)
	return true
}

// runStage executes one stage with the shared backoff policy. Only errors
// classified as throttling are retried; the retry ceiling makes the stage's
// budget deterministic.
func (p *Pipeline) runStage(ctx context.Context, target string, stage Stage) *model.StageResult {
	result := &model.StageResult{Target: target, Stage: stage.Name, State: model.StageRunning}
	start := time.Now()

	for attempt := 0; ; attempt++ {
		result.Attempts = attempt + 1

		summary, err := stage.Run(ctx, target)
		result.Summary = summary

		if err == nil && (summary == nil || summary.Success()) {
			result.State = model.StageCompleted
			result.Elapsed = time.Since(start)
			return result
		}
		if err == nil {
			// The executor already spent its own retry budget; a summary
			// with failures is terminal for the stage.
			result.State = model.StageFailed
			result.Err = fmt.Errorf("%d of %d descriptor(s) not deleted", summary.Failed, summary.Matched)
			result.Elapsed = time.Since(start)
			return result
		}

		if p.classify(err) != model.ClassThrottling || attempt >= p.backoff.MaxRetries {
			result.State = model.StageFailed
			result.Err = err
			result.Elapsed = time.Since(start)
			return result
		}

		p.log.Error("Stage %q throttled for %q, retrying (attempt %d/%d)",
			stage.Name, target, result.Attempts, p.backoff.MaxRetries+1)
		if werr := p.backoff.Wait(ctx, attempt); werr != nil {
			result.State = model.StageFailed
			result.Err = werr
			result.Elapsed = time.Since(start)
			return result
		}
	}
}

// skipRemaining records the never-run tail of a failed target's sequence so
// the ledger shows the full picture.
func (p *Pipeline) skipRemaining(target string, from int, rec Recorder) {
	for _, stage := range p.stages[from:] {
		if rec != nil {
			rec.Record(&model.StageResult{
				Target: target,
				Stage:  stage.Name,
				State:  model.StageSkipped,
			})
		}
	}
}
