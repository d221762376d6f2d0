package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"social-publisher/domain/model"
)

// PublishJobRepositoryMSSQL mirrors PublishJobRepository for Azure SQL in
// production (vendor switch happens in main).
type PublishJobRepositoryMSSQL struct{ db *sql.DB }

func NewPublishJobRepositoryMSSQL(db *sql.DB) *PublishJobRepositoryMSSQL {
	return &PublishJobRepositoryMSSQL{db: db}
}

// EnsurePublishJobSchemaMSSQL creates the publish queue table for SQL Server if it does not exist.
func EnsurePublishJobSchemaMSSQL(db *sql.DB) error {
	ddl := `IF NOT EXISTS (SELECT * FROM sys.objects WHERE object_id = OBJECT_ID(N'dbo.publish_jobs') AND type in (N'U'))
BEGIN
    CREATE TABLE dbo.[publish_jobs] (
        id BIGINT IDENTITY(1,1) PRIMARY KEY,
        user_id NVARCHAR(128) NOT NULL,
        platform NVARCHAR(64) NOT NULL,
        payload NVARCHAR(MAX) NOT NULL,
        status NVARCHAR(32) NOT NULL,
        attempts INT NOT NULL DEFAULT 0,
        post_id NVARCHAR(255) NULL,
        post_url NVARCHAR(1024) NULL,
        failure_reason NVARCHAR(MAX) NULL,
        next_attempt_at DATETIME2 NOT NULL,
        created_at DATETIME2 NOT NULL,
        updated_at DATETIME2 NOT NULL
    );
    CREATE INDEX IX_publish_jobs_due ON dbo.[publish_jobs](platform, status, next_attempt_at);
END`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("create publish_jobs (mssql): %w", err)
	}
	return nil
}

func (r *PublishJobRepositoryMSSQL) Insert(ctx context.Context, job *model.PublishJob) error {
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
		`INSERT INTO dbo.[publish_jobs] (user_id, platform, payload, status, attempts, next_attempt_at, created_at, updated_at)
		 OUTPUT INSERTED.id
		 VALUES (@p1,@p2,@p3,@p4,0,@p5,@p6,@p6)`,
		job.UserID, string(job.Platform), string(payload), string(job.Status), job.NextAttemptAt, now)
	return row.Scan(&job.ID)
}

func (r *PublishJobRepositoryMSSQL) GetByID(ctx context.Context, id int64) (*model.PublishJob, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM dbo.[publish_jobs] WHERE id=@p1`, id)
	return scanJob(row)
}

func (r *PublishJobRepositoryMSSQL) ListByUser(ctx context.Context, userID string, limit int) ([]*model.PublishJob, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT TOP (@p2) `+jobColumns+` FROM dbo.[publish_jobs] WHERE user_id=@p1 ORDER BY created_at DESC`,
		userID, limit)
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

// FetchDue claims due jobs in one statement; READPAST keeps concurrent
// dispatchers from double-executing a job.
func (r *PublishJobRepositoryMSSQL) FetchDue(ctx context.Context, platform model.Platform, limit int) ([]*model.PublishJob, error) {
	now := time.Now().UTC()
	rows, err := r.db.QueryContext(ctx,
		`UPDATE due SET status=@p1, attempts=due.attempts+1, updated_at=@p2
		 OUTPUT INSERTED.id, INSERTED.user_id, INSERTED.platform, INSERTED.payload, INSERTED.status, INSERTED.attempts,
		        INSERTED.post_id, INSERTED.post_url, INSERTED.failure_reason, INSERTED.next_attempt_at, INSERTED.created_at, INSERTED.updated_at
		 FROM (
		     SELECT TOP (@p3) * FROM dbo.[publish_jobs] WITH (UPDLOCK, ROWLOCK, READPAST)
		     WHERE platform=@p4 AND status=@p5 AND next_attempt_at <= @p2
		     ORDER BY next_attempt_at ASC
		 ) AS due`,
		string(model.JobStatusInProgress), now, limit, string(platform), string(model.JobStatusQueued))
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

func (r *PublishJobRepositoryMSSQL) Reschedule(ctx context.Context, id int64, nextAttemptAt time.Time, lastError string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE dbo.[publish_jobs] SET status=@p1, failure_reason=@p2, next_attempt_at=@p3, updated_at=@p4 WHERE id=@p5`,
		string(model.JobStatusQueued), lastError, nextAttemptAt, time.Now().UTC(), id)
	return err
}

func (r *PublishJobRepositoryMSSQL) MarkCompleted(ctx context.Context, id int64, result model.PublishResult) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE dbo.[publish_jobs] SET status=@p1, post_id=@p2, post_url=@p3, failure_reason=NULL, updated_at=@p4 WHERE id=@p5`,
		string(model.JobStatusCompleted), result.PostID, result.PostURL, time.Now().UTC(), id)
	return err
}

func (r *PublishJobRepositoryMSSQL) MarkFailed(ctx context.Context, id int64, reason string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE dbo.[publish_jobs] SET status=@p1, failure_reason=@p2, updated_at=@p3 WHERE id=@p4`,
		string(model.JobStatusFailed), reason, time.Now().UTC(), id)
	return err
}
