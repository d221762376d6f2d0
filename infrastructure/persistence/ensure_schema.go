package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// EnsureCredentialSchema creates the credentials table if missing. The unique
// index on (user_id, platform, platform_account_id) is what enforces the
// one-credential-per-identity invariant; application code relies on it.
func EnsureCredentialSchema(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ddl := `CREATE TABLE IF NOT EXISTS credentials (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		platform TEXT NOT NULL,
		access_token TEXT NOT NULL,
		refresh_token TEXT NOT NULL DEFAULT '',
		expires_at TIMESTAMPTZ NULL,
		refresh_expires_at TIMESTAMPTZ NULL,
		scopes TEXT NOT NULL DEFAULT '',
		platform_account_id TEXT NOT NULL DEFAULT '',
		platform_account_name TEXT NULL,
		metadata JSONB NOT NULL DEFAULT '{}',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create credentials: %w", err)
	}
	idx := `CREATE UNIQUE INDEX IF NOT EXISTS ux_credentials_identity
		ON credentials(user_id, platform, platform_account_id)`
	if _, err := db.ExecContext(ctx, idx); err != nil {
		return fmt.Errorf("create credentials index: %w", err)
	}
	return nil
}

// EnsurePublishJobSchema creates the publish queue table if missing.
func EnsurePublishJobSchema(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ddl := `CREATE TABLE IF NOT EXISTS publish_jobs (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		platform TEXT NOT NULL,
		payload JSONB NOT NULL,
		status TEXT NOT NULL,
		attempts INT NOT NULL DEFAULT 0,
		post_id TEXT NULL,
		post_url TEXT NULL,
		failure_reason TEXT NULL,
		next_attempt_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create publish_jobs: %w", err)
	}
	idx := `CREATE INDEX IF NOT EXISTS ix_publish_jobs_due
		ON publish_jobs(platform, status, next_attempt_at)`
	if _, err := db.ExecContext(ctx, idx); err != nil {
		return fmt.Errorf("create publish_jobs index: %w", err)
	}
	return nil
}
