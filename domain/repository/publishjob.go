package repository

import (
	"context"
	"time"

	"social-publisher/domain/model"
)

// IPublishJob persists the per-platform publish queue.
type IPublishJob interface {
	Insert(ctx context.Context, job *model.PublishJob) error
	GetByID(ctx context.Context, id int64) (*model.PublishJob, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.PublishJob, error)
	// FetchDue claims up to limit queued jobs for the platform whose
	// next_attempt_at has passed, marking them in_progress. Claiming is atomic
	// so concurrent dispatchers never execute the same job twice.
	FetchDue(ctx context.Context, platform model.Platform, limit int) ([]*model.PublishJob, error)
	// Reschedule returns a claimed job to the queue for a later attempt.
	Reschedule(ctx context.Context, id int64, nextAttemptAt time.Time, lastError string) error
	// MarkCompleted finalizes a successful job with its remote post identity.
	MarkCompleted(ctx context.Context, id int64, result model.PublishResult) error
	// MarkFailed finalizes a job with its last failure reason verbatim.
	MarkFailed(ctx context.Context, id int64, reason string) error
}

// IPublishAudit archives one entry per publish attempt, append-only.
type IPublishAudit interface {
	Append(ctx context.Context, entries []*model.PublishAudit) error
}
