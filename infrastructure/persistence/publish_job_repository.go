package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"social-publisher/domain/model"
)

const jobColumns = `id, user_id, platform, payload, status, attempts, post_id, post_url, failure_reason, next_attempt_at, created_at, updated_at`

// ErrJobNotFound is returned when a job id does not exist.
var ErrJobNotFound = errors.New("publish job not found")

// PublishJobRepository persists the per-platform publish queue in PostgreSQL.
type PublishJobRepository struct{ db *sql.DB }

func NewPublishJobRepository(db *sql.DB) *PublishJobRepository {
	return &PublishJobRepository{db: db}
}

func (r *PublishJobRepository) Insert(ctx context.Context, job *model.PublishJob) error {
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = model.JobStatusQueued
	}
	if job.NextAttemptAt.IsZero() {
		job.NextAttemptAt = now
	}
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return err
	}
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO publish_jobs (user_id, platform, payload, status, attempts, next_attempt_at, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,0,$5,$6,$6) RETURNING id`,
		job.UserID, job.Platform, payload, job.Status, job.NextAttemptAt, now)
	return row.Scan(&job.ID)
}

func (r *PublishJobRepository) GetByID(ctx context.Context, id int64) (*model.PublishJob, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM publish_jobs WHERE id=$1`, id)
	return scanJob(row)
}

func (r *PublishJobRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*model.PublishJob, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM publish_jobs WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var jobs []*model.PublishJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// FetchDue claims due jobs for the platform in one statement; SKIP LOCKED keeps
// concurrent dispatchers from double-executing a job.
func (r *PublishJobRepository) FetchDue(ctx context.Context, platform model.Platform, limit int) ([]*model.PublishJob, error) {
	now := time.Now().UTC()
	rows, err := r.db.QueryContext(ctx,
		`WITH due AS (
			SELECT id FROM publish_jobs
			WHERE platform=$1 AND status=$2 AND next_attempt_at <= $3
			ORDER BY next_attempt_at ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		 )
		 UPDATE publish_jobs p SET status=$5, attempts=p.attempts+1, updated_at=$3
		 FROM due WHERE p.id = due.id
		 RETURNING p.id, p.user_id, p.platform, p.payload, p.status, p.attempts, p.post_id, p.post_url, p.failure_reason, p.next_attempt_at, p.created_at, p.updated_at`,
		platform, model.JobStatusQueued, now, limit, model.JobStatusInProgress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var jobs []*model.PublishJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *PublishJobRepository) Reschedule(ctx context.Context, id int64, nextAttemptAt time.Time, lastError string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE publish_jobs SET status=$1, failure_reason=$2, next_attempt_at=$3, updated_at=$4 WHERE id=$5`,
		model.JobStatusQueued, lastError, nextAttemptAt, time.Now().UTC(), id)
	return err
}

func (r *PublishJobRepository) MarkCompleted(ctx context.Context, id int64, result model.PublishResult) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE publish_jobs SET status=$1, post_id=$2, post_url=$3, failure_reason=NULL, updated_at=$4 WHERE id=$5`,
		model.JobStatusCompleted, result.PostID, result.PostURL, time.Now().UTC(), id)
	return err
}

func (r *PublishJobRepository) MarkFailed(ctx context.Context, id int64, reason string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE publish_jobs SET status=$1, failure_reason=$2, updated_at=$3 WHERE id=$4`,
		model.JobStatusFailed, reason, time.Now().UTC(), id)
	return err
}

func scanJob(row rowScanner) (*model.PublishJob, error) {
	job := &model.PublishJob{}
	var (
		payload                 []byte
		postID, postURL, reason sql.NullString
	)
	err := row.Scan(&job.ID, &job.UserID, &job.Platform, &payload, &job.Status, &job.Attempts,
		&postID, &postURL, &reason, &job.NextAttemptAt, &job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &job.Payload); err != nil {
		return nil, err
	}
	if postID.Valid {
		job.PostID = &postID.String
	}
	if postURL.Valid {
		job.PostURL = &postURL.String
	}
	if reason.Valid {
		job.FailureReason = &reason.String
	}
	return job, nil
}
