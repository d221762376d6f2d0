package usecase

import (
	"context"
	"fmt"

	"social-publisher/domain/dto"
	"social-publisher/domain/model"
	"social-publisher/domain/repository"
	"social-publisher/infrastructure/clients/platforms"
	"social-publisher/infrastructure/logger"
	"social-publisher/infrastructure/persistence"
)

type IPublishUsecase interface {
	// Enqueue validates the payload and inserts a queued job. Validation
	// failures resolve synchronously; nothing invalid ever enters the queue.
	Enqueue(ctx context.Context, userID string, platform model.Platform, req *dto.PublishRequest) (*dto.EnqueueResponse, error)
	// Status returns the job if it belongs to the user.
	Status(ctx context.Context, userID string, jobID int64) (*model.PublishJob, error)
	ListJobs(ctx context.Context, userID string, limit int) ([]*model.PublishJob, error)
	// Execute performs one publish attempt for a claimed job. The dispatcher
	// owns retry, backoff, and terminal-state bookkeeping.
	Execute(ctx context.Context, job *model.PublishJob) (*model.PublishResult, error)
}

type publishUsecase struct {
	jobRepo  repository.IPublishJob
	credRepo repository.ICredential
	tokens   ITokenUsecase
	registry map[model.Platform]platforms.Strategy
}

func NewPublishUsecase(jobRepo repository.IPublishJob, credRepo repository.ICredential, tokens ITokenUsecase, registry map[model.Platform]platforms.Strategy) IPublishUsecase {
	return &publishUsecase{
		jobRepo:  jobRepo,
		credRepo: credRepo,
		tokens:   tokens,
		registry: registry,
	}
}

func (u *publishUsecase) Enqueue(ctx context.Context, userID string, platform model.Platform, req *dto.PublishRequest) (*dto.EnqueueResponse, error) {
	strategy, ok := u.registry[platform]
	if !ok || !strategy.Configured() {
		return nil, model.ErrNotConfigured
	}
	content := req.ToContent()
	if err := ValidateContent(platform, content); err != nil {
		return &dto.EnqueueResponse{Status: model.JobStatusFailed, Error: err.Error()}, err
	}
	// Connection is checked up front so a disconnected platform fails the
	// enqueue call instead of burning queue attempts.
	if _, err := u.credRepo.GetAny(ctx, userID, platform); err != nil {
		return nil, err
	}

	job := &model.PublishJob{
		UserID:   userID,
		Platform: platform,
		Payload:  content,
	}
	if err := u.jobRepo.Insert(ctx, job); err != nil {
		return nil, err
	}
	logger.GetLogger().
		WithField("job_id", job.ID).
		WithField("user_id", userID).
		WithField("platform", platform).
		Info("publish job enqueued")
	return &dto.EnqueueResponse{JobID: job.ID, Status: job.Status}, nil
}

func (u *publishUsecase) Status(ctx context.Context, userID string, jobID int64) (*model.PublishJob, error) {
	job, err := u.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, persistence.ErrJobNotFound
	}
	return job, nil
}

func (u *publishUsecase) ListJobs(ctx context.Context, userID string, limit int) ([]*model.PublishJob, error) {
	return u.jobRepo.ListByUser(ctx, userID, limit)
}

func (u *publishUsecase) Execute(ctx context.Context, job *model.PublishJob) (*model.PublishResult, error) {
	strategy, ok := u.registry[job.Platform]
	if !ok || !strategy.Configured() {
		return nil, model.ErrNotConfigured
	}
	cred, err := u.tokens.ActiveCredential(ctx, job.UserID, job.Platform, "")
	if err != nil {
		return nil, err
	}

	switch pub := strategy.(type) {
	case platforms.AsyncPublisher:
		return publishViaContainer(ctx, pub, cred.AccessToken, cred, job.Payload, pollPolicyFor(job.Payload))
	case platforms.Publisher:
		return pub.Publish(ctx, cred.AccessToken, cred, job.Payload)
	default:
		return nil, fmt.Errorf("platform %s has no publisher", job.Platform)
	}
}
