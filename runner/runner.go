// Package runner wires criteria, provider adapters and the deletion engine
// into one teardown run per resource kind.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/vasylivanchyk330/AWS-Automation/config"
	"github.com/vasylivanchyk330/AWS-Automation/confirm"
	"github.com/vasylivanchyk330/AWS-Automation/engine"
	"github.com/vasylivanchyk330/AWS-Automation/ledger"
	"github.com/vasylivanchyk330/AWS-Automation/logger"
	"github.com/vasylivanchyk330/AWS-Automation/model"
	"github.com/vasylivanchyk330/AWS-Automation/provider"
)

// Runner drives a single teardown run. Stage results land in the ledger,
// which later decides the exit code and the artifact name.
type Runner struct {
	cfg    *config.AppConfig
	log    logger.Logger
	ledger *ledger.RunLedger
	policy *confirm.Policy
	awsCfg aws.Config

	// newS3 exists so tests can substitute a fake-backed adapter.
	newS3 func(aws.Config) *provider.S3Teardown
}

// NewRunner creates a runner from validated configuration.
func NewRunner(cfg *config.AppConfig, log logger.Logger, led *ledger.RunLedger, policy *confirm.Policy, awsCfg aws.Config) *Runner {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Runner{
		cfg:    cfg,
		log:    log,
		ledger: led,
		policy: policy,
		awsCfg: awsCfg,
		newS3:  provider.NewS3Teardown,
	}
}

// Run executes the teardown for the configured resource kind. A non-nil
// error means the run could not proceed at all; per-target failures are
// reported through the ledger instead.
func (r *Runner) Run(ctx context.Context) error {
	if r.cfg.DryRun {
		r.log.Info("Running in DRY-RUN mode - nothing will be deleted")
	}

	switch r.cfg.Kind {
	case config.KindBuckets:
		return r.runBuckets(ctx)
	case config.KindLogGroups, config.KindStacks, config.KindEventRules,
		config.KindImages, config.KindBuilderImages:
		return r.runFlat(ctx)
	default:
		return fmt.Errorf("unsupported resource kind: %s", r.cfg.Kind)
	}
}

func (r *Runner) backoff() engine.BackoffPolicy {
	return engine.NewBackoffPolicy(
		r.cfg.Engine.MaxRetries,
		time.Duration(r.cfg.Engine.BaseBackoffSec*float64(time.Second)),
	)
}

// matchAll selects every item; used for stages that purge the full content
// of an already-selected target.
func matchAll() *config.Criteria {
	return &config.Criteria{Pattern: ".*"}
}

// runBuckets drives the staged bucket teardown: deny new writes, install
// expiry lifecycle rules, purge every version and delete marker, sweep
// leftover current objects, abort unfinished multipart uploads, then delete
// the bucket itself.
func (r *Runner) runBuckets(ctx context.Context) error {
	s3t := r.newS3(r.awsCfg)

	enum := engine.NewEnumerator(&r.cfg.Criteria, r.log)
	descriptors, err := enum.Enumerate(ctx, s3t.ListBucketsPage())
	if err != nil {
		return fmt.Errorf("bucket enumeration failed: %w", err)
	}

	names := descriptorNames(descriptors)
	r.log.Info("Matched %d bucket(s)", len(names))
	if len(names) == 0 {
		return nil
	}

	if r.cfg.DryRun {
		for _, name := range names {
			count, size, err := s3t.BucketStats(ctx, name)
			if err != nil {
				r.log.Warn("Could not read stats for %s: %v", name, err)
				continue
			}
			r.log.Info("Would delete bucket %s: %d object(s), %d byte(s)", name, count, size)
		}
		return nil
	}

	ok, err := r.policy.ConfirmRun("buckets", names)
	if err != nil {
		return fmt.Errorf("confirmation failed: %w", err)
	}
	if !ok {
		r.log.Info("Aborted by operator, nothing was deleted")
		return nil
	}

	// A bucket can vanish between enumeration and execution; skip those
	// instead of failing their whole stage sequence.
	targets := make([]string, 0, len(names))
	for _, name := range names {
		exists, err := s3t.BucketExists(ctx, name)
		if err != nil {
			r.log.Warn("Could not verify bucket %s, proceeding anyway: %v", name, err)
		} else if !exists {
			r.log.Warn("Bucket %s no longer exists, skipping", name)
			continue
		}
		targets = append(targets, name)
	}
	if len(targets) == 0 {
		return nil
	}

	pl := engine.NewPipeline(r.bucketStages(s3t), r.backoff(), provider.Classify, r.cfg.FailFast, r.log)
	pl.Execute(ctx, targets, r.policy.Approve(), r.ledger)
	return ctx.Err()
}

func (r *Runner) bucketStages(s3t *provider.S3Teardown) []engine.Stage {
	exec := engine.NewExecutor(&r.cfg.Engine, provider.Classify, provider.ClassifyItem, r.log)

	return []engine.Stage{
		{
			Name: "deny-new-writes",
			Run: func(ctx context.Context, bucket string) (*model.Summary, error) {
				return nil, s3t.ApplyDenyPolicy(ctx, bucket)
			},
		},
		{
			Name: "apply-lifecycle-rules",
			Run: func(ctx context.Context, bucket string) (*model.Summary, error) {
				return nil, s3t.ApplyExpireLifecycle(ctx, bucket)
			},
			Wait: time.Duration(r.cfg.LifecycleWaitMinutes) * time.Minute,
		},
		{
			Name: "purge-object-versions",
			Run: func(ctx context.Context, bucket string) (*model.Summary, error) {
				count, size, err := s3t.BucketStats(ctx, bucket)
				if err == nil {
					r.log.Info("Bucket %s holds %d object(s), %d byte(s) before the purge", bucket, count, size)
				}
				return r.purge(ctx, exec, s3t.VersionsPage(bucket), s3t.DeleteObjectsBatch(bucket))
			},
		},
		{
			Name: "purge-remaining-objects",
			Run: func(ctx context.Context, bucket string) (*model.Summary, error) {
				// Unversioned buckets (and writes that slipped past the deny
				// policy) leave current objects the version listing does not
				// account for.
				return r.purge(ctx, exec, s3t.ObjectsPage(bucket), s3t.DeleteObjectsBatch(bucket))
			},
		},
		{
			Name: "abort-multipart-uploads",
			Run: func(ctx context.Context, bucket string) (*model.Summary, error) {
				return r.purge(ctx, exec, s3t.MultipartUploadsPage(bucket), s3t.AbortUploadsBatch(bucket))
			},
		},
		{
			Name: "delete-bucket",
			Run: func(ctx context.Context, bucket string) (*model.Summary, error) {
				return nil, s3t.DeleteBucket(ctx, bucket)
			},
		},
	}
}

// purge streams a full listing into the executor so deletion overlaps
// continued page fetching.
func (r *Runner) purge(ctx context.Context, exec *engine.Executor, page engine.PageFunc, del engine.BatchDeleteFunc) (*model.Summary, error) {
	enum := engine.NewEnumerator(matchAll(), r.log)
	batches, errCh := enum.EnumerateStream(ctx, page, r.cfg.Engine.BatchSize)
	sum := exec.RunStream(ctx, batches, del)
	if err := <-errCh; err != nil {
		return sum, err
	}
	return sum, nil
}

// flatPass is one enumerate-confirm-delete sweep over a flat resource kind.
type flatPass struct {
	name string
	page engine.PageFunc
	del  engine.BatchDeleteFunc
}

func (r *Runner) flatPasses() ([]flatPass, error) {
	switch r.cfg.Kind {
	case config.KindLogGroups:
		t := provider.NewLogGroupTeardown(r.awsCfg)
		return []flatPass{{name: "delete-log-groups", page: t.Page(), del: t.DeleteBatch()}}, nil
	case config.KindStacks:
		t := provider.NewStackTeardown(r.awsCfg)
		return []flatPass{{name: "delete-stacks", page: t.Page(), del: t.DeleteBatch()}}, nil
	case config.KindEventRules:
		t := provider.NewRuleTeardown(r.awsCfg)
		return []flatPass{{name: "delete-event-rules", page: t.Page(), del: t.DeleteBatch()}}, nil
	case config.KindImages:
		t := provider.NewAMITeardown(r.awsCfg)
		return []flatPass{{name: "deregister-images", page: t.Page(), del: t.DeleteBatch()}}, nil
	case config.KindBuilderImages:
		t := provider.NewBuilderTeardown(r.awsCfg)
		return []flatPass{
			{name: "delete-builder-images", page: t.ImagesPage(), del: t.DeleteImagesBatch()},
			{name: "delete-builder-pipelines", page: t.PipelinesPage(), del: t.DeletePipelinesBatch()},
		}, nil
	default:
		return nil, fmt.Errorf("no passes for resource kind %s", r.cfg.Kind)
	}
}

// runFlat sweeps kinds without a staged per-target sequence: enumerate the
// matching set, confirm, and delete it with the batched executor. Each pass
// still runs as a single pipeline stage so throttled sweeps retry with
// backoff and every outcome is recorded.
func (r *Runner) runFlat(ctx context.Context) error {
	passes, err := r.flatPasses()
	if err != nil {
		return err
	}

	exec := engine.NewExecutor(&r.cfg.Engine, provider.Classify, provider.ClassifyItem, r.log)
	enum := engine.NewEnumerator(&r.cfg.Criteria, r.log)
	approve := r.policy.Approve()

	for _, pass := range passes {
		if err := ctx.Err(); err != nil {
			return err
		}

		descriptors, err := enum.Enumerate(ctx, pass.page)
		if err != nil {
			return fmt.Errorf("%s enumeration failed: %w", pass.name, err)
		}

		names := descriptorNames(descriptors)
		r.log.Info("%s: matched %d item(s)", pass.name, len(names))
		if len(names) == 0 {
			continue
		}

		if r.cfg.DryRun {
			for _, name := range names {
				r.log.Info("Would delete: %s", name)
			}
			continue
		}

		ok, err := r.policy.ConfirmRun(string(r.cfg.Kind), names)
		if err != nil {
			return fmt.Errorf("confirmation failed: %w", err)
		}
		if !ok {
			r.log.Info("Aborted by operator, nothing was deleted")
			return nil
		}

		items := descriptors
		if approve != nil {
			items = make([]model.ResourceDescriptor, 0, len(descriptors))
			for _, d := range descriptors {
				if approve(d.Name) {
					items = append(items, d)
				}
			}
			r.log.Info("%d of %d item(s) approved", len(items), len(descriptors))
			if len(items) == 0 {
				continue
			}
		}

		stage := engine.Stage{
			Name: pass.name,
			Run: func(ctx context.Context, target string) (*model.Summary, error) {
				return exec.Run(ctx, items, pass.del), nil
			},
		}
		pl := engine.NewPipeline([]engine.Stage{stage}, r.backoff(), provider.Classify, r.cfg.FailFast, r.log)
		pl.ExecuteTarget(ctx, string(r.cfg.Kind), r.ledger)
	}

	return ctx.Err()
}

func descriptorNames(descriptors []model.ResourceDescriptor) []string {
	names := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		name := d.Name
		if name == "" {
			name = d.Key
		}
		names = append(names, name)
	}
	return names
}
