package queue

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"social-publisher/domain/model"
	"social-publisher/domain/repository"
	"social-publisher/infrastructure/events"
	"social-publisher/infrastructure/logger"
	"social-publisher/usecase"
)

// BackoffPolicy bounds retries for one platform queue.
type BackoffPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// HardTimeout caps one attempt end to end; zero means no cap. Only video
	// platforms carry one, to cover long server-side processing.
	HardTimeout time.Duration
}

// PolicyFor returns the retry policy for a platform. Video platforms retry
// less and wait longer; retry thrash does not help a 20-minute transcode.
func PolicyFor(platform model.Platform) BackoffPolicy {
	if platform.IsVideoPlatform() {
		return BackoffPolicy{MaxAttempts: 2, BaseDelay: 5 * time.Second, HardTimeout: time.Hour}
	}
	return BackoffPolicy{MaxAttempts: 3, BaseDelay: 2 * time.Second}
}

// Delay returns the backoff before the attempt following attemptsSoFar,
// doubling per attempt: base, 2*base, 4*base.
func (p BackoffPolicy) Delay(attemptsSoFar int) time.Duration {
	delay := p.BaseDelay
	for i := 1; i < attemptsSoFar; i++ {
		delay *= 2
	}
	return delay
}

// Dispatcher polls every platform queue and executes claimed jobs. One
// goroutine per platform; jobs on the same platform run sequentially within
// a poll batch, different platforms interleave freely.
type Dispatcher struct {
	jobs         repository.IPublishJob
	audit        repository.IPublishAudit
	executor     usecase.IPublishUsecase
	notifier     events.INotifier
	pollInterval time.Duration
	batchSize    int
	now          func() time.Time
}

func NewDispatcher(jobs repository.IPublishJob, audit repository.IPublishAudit, executor usecase.IPublishUsecase, notifier events.INotifier, pollInterval time.Duration, batchSize int) *Dispatcher {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Dispatcher{
		jobs:         jobs,
		audit:        audit,
		executor:     executor,
		notifier:     notifier,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Run blocks until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	for _, platform := range model.AllPlatforms {
		platform := platform
		group.Go(func() error {
			return d.runPlatform(ctx, platform)
		})
	}
	return group.Wait()
}

func (d *Dispatcher) runPlatform(ctx context.Context, platform model.Platform) error {
	log := logger.GetLogger().WithField("platform", platform)
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		jobs, err := d.jobs.FetchDue(ctx, platform, d.batchSize)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.WithField("error", err.Error()).Error("fetching due jobs failed")
			continue
		}
		for _, job := range jobs {
			d.ProcessJob(ctx, job)
		}
	}
}

// ProcessJob runs one claimed attempt and settles the job: completed, queued
// again with backoff, or terminally failed.
func (d *Dispatcher) ProcessJob(ctx context.Context, job *model.PublishJob) {
	policy := PolicyFor(job.Platform)

	attemptCtx := ctx
	if policy.HardTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, policy.HardTimeout)
		defer cancel()
	}

	result, err := d.executor.Execute(attemptCtx, job)
	if err == nil {
		d.settleCompleted(ctx, job, result)
		return
	}

	reason := err.Error()
	if model.IsRetryable(err) && job.Attempts < policy.MaxAttempts {
		d.settleRescheduled(ctx, job, reason, policy)
		return
	}
	d.settleFailed(ctx, job, reason)
}

func (d *Dispatcher) settleCompleted(ctx context.Context, job *model.PublishJob, result *model.PublishResult) {
	if err := d.jobs.MarkCompleted(ctx, job.ID, *result); err != nil {
		logger.GetLogger().WithField("job_id", job.ID).WithField("error", err.Error()).
			Error("marking job completed failed")
		return
	}
	job.Status = model.JobStatusCompleted
	job.PostID = &result.PostID
	job.PostURL = &result.PostURL
	job.FailureReason = nil
	d.appendAudit(ctx, job)
	d.notify(ctx, job)
	logger.GetLogger().
		WithField("job_id", job.ID).
		WithField("platform", job.Platform).
		WithField("post_id", result.PostID).
		Info("publish job completed")
}

func (d *Dispatcher) settleRescheduled(ctx context.Context, job *model.PublishJob, reason string, policy BackoffPolicy) {
	nextAttemptAt := d.now().Add(policy.Delay(job.Attempts))
	if err := d.jobs.Reschedule(ctx, job.ID, nextAttemptAt, reason); err != nil {
		logger.GetLogger().WithField("job_id", job.ID).WithField("error", err.Error()).
			Error("rescheduling job failed")
		return
	}
	job.Status = model.JobStatusQueued
	job.FailureReason = &reason
	job.NextAttemptAt = nextAttemptAt
	d.appendAudit(ctx, job)
	d.notify(ctx, job)
	logger.GetLogger().
		WithField("job_id", job.ID).
		WithField("platform", job.Platform).
		WithField("attempt", job.Attempts).
		WithField("error", reason).
		Warn("publish attempt failed, rescheduled")
}

func (d *Dispatcher) settleFailed(ctx context.Context, job *model.PublishJob, reason string) {
	if err := d.jobs.MarkFailed(ctx, job.ID, reason); err != nil {
		logger.GetLogger().WithField("job_id", job.ID).WithField("error", err.Error()).
			Error("marking job failed failed")
		return
	}
	job.Status = model.JobStatusFailed
	job.FailureReason = &reason
	d.appendAudit(ctx, job)
	d.notify(ctx, job)
	logger.GetLogger().
		WithField("job_id", job.ID).
		WithField("platform", job.Platform).
		WithField("attempt", job.Attempts).
		WithField("error", reason).
		Warn("publish job failed terminally")
}

func (d *Dispatcher) appendAudit(ctx context.Context, job *model.PublishJob) {
	if d.audit == nil {
		return
	}
	entry := &model.PublishAudit{
		JobID:         job.ID,
		UserID:        job.UserID,
		Platform:      job.Platform,
		Attempt:       job.Attempts,
		Status:        job.Status,
		PostID:        job.PostID,
		FailureReason: job.FailureReason,
		CreatedAt:     d.now(),
	}
	if err := d.audit.Append(ctx, []*model.PublishAudit{entry}); err != nil {
		logger.GetLogger().WithField("job_id", job.ID).WithField("error", err.Error()).
			Warn("audit append failed")
	}
}

func (d *Dispatcher) notify(ctx context.Context, job *model.PublishJob) {
	if d.notifier != nil {
		d.notifier.JobTransition(ctx, job)
	}
}
