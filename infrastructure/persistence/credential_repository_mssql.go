package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"social-publisher/domain/model"
)

// CredentialRepositoryMSSQL mirrors CredentialRepository for Azure SQL in
// production (vendor switch happens in main).
type CredentialRepositoryMSSQL struct{ db *sql.DB }

func NewCredentialRepositoryMSSQL(db *sql.DB) *CredentialRepositoryMSSQL {
	return &CredentialRepositoryMSSQL{db: db}
}

// EnsureCredentialSchemaMSSQL creates the credentials table for SQL Server if it does not exist.
func EnsureCredentialSchemaMSSQL(db *sql.DB) error {
	ddl := `IF NOT EXISTS (SELECT * FROM sys.objects WHERE object_id = OBJECT_ID(N'dbo.credentials') AND type in (N'U'))
BEGIN
    CREATE TABLE dbo.[credentials] (
        id BIGINT IDENTITY(1,1) PRIMARY KEY,
        user_id NVARCHAR(128) NOT NULL,
        platform NVARCHAR(64) NOT NULL,
        access_token NVARCHAR(MAX) NOT NULL,
        refresh_token NVARCHAR(MAX) NOT NULL DEFAULT '',
        expires_at DATETIME2 NULL,
        refresh_expires_at DATETIME2 NULL,
        scopes NVARCHAR(MAX) NOT NULL DEFAULT '',
        platform_account_id NVARCHAR(128) NOT NULL DEFAULT '',
        platform_account_name NVARCHAR(255) NULL,
        metadata NVARCHAR(MAX) NOT NULL DEFAULT '{}',
        active BIT NOT NULL DEFAULT 1,
        created_at DATETIME2 NOT NULL,
        updated_at DATETIME2 NOT NULL
    );
    CREATE UNIQUE INDEX UX_credentials_identity ON dbo.[credentials](user_id, platform, platform_account_id);
END`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("create credentials (mssql): %w", err)
	}
	return nil
}

func (r *CredentialRepositoryMSSQL) Upsert(ctx context.Context, c *model.Credential) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	meta, err := json.Marshal(metadataOrEmpty(c.Metadata))
	if err != nil {
		return err
	}
	var exp, refreshExp sql.NullTime
	if c.ExpiresAt != nil {
		exp = sql.NullTime{Time: *c.ExpiresAt, Valid: true}
	}
	if c.RefreshExpiresAt != nil {
		refreshExp = sql.NullTime{Time: *c.RefreshExpiresAt, Valid: true}
	}
	var accountName sql.NullString
	if c.PlatformAccountName != nil {
		accountName = sql.NullString{String: *c.PlatformAccountName, Valid: true}
	}
	// MERGE upsert by (user_id, platform, platform_account_id); empty incoming
	// refresh token keeps the stored one.
	q := `MERGE dbo.[credentials] AS target
USING (VALUES (@p1, @p2, @p3)) AS src(user_id, platform, platform_account_id)
ON target.user_id = src.user_id AND target.platform = src.platform AND target.platform_account_id = src.platform_account_id
WHEN MATCHED THEN UPDATE SET
    access_token=@p4,
    refresh_token=CASE WHEN @p5 = '' THEN target.refresh_token ELSE @p5 END,
    expires_at=@p6,
    refresh_expires_at=COALESCE(@p7, target.refresh_expires_at),
    scopes=@p8,
    platform_account_name=COALESCE(@p9, target.platform_account_name),
    metadata=@p10,
    active=1,
    updated_at=@p12
WHEN NOT MATCHED THEN
    INSERT (user_id, platform, access_token, refresh_token, expires_at, refresh_expires_at, scopes, platform_account_id, platform_account_name, metadata, active, created_at, updated_at)
    VALUES (@p1,@p2,@p4,@p5,@p6,@p7,@p8,@p3,@p9,@p10,1,@p11,@p12);`
	_, err = r.db.ExecContext(ctx, q,
		c.UserID, string(c.Platform), c.AccountID(),
		c.AccessToken, c.RefreshToken, exp, refreshExp, c.Scopes,
		accountName, string(meta), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return err
	}
	c.Active = true
	row := r.db.QueryRowContext(ctx,
		`SELECT id, created_at FROM dbo.[credentials] WHERE user_id=@p1 AND platform=@p2 AND platform_account_id=@p3`,
		c.UserID, string(c.Platform), c.AccountID())
	return row.Scan(&c.ID, &c.CreatedAt)
}

func (r *CredentialRepositoryMSSQL) Get(ctx context.Context, userID string, platform model.Platform, platformAccountID string) (*model.Credential, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM dbo.[credentials] WHERE user_id=@p1 AND platform=@p2 AND platform_account_id=@p3 AND active=1`,
		userID, string(platform), platformAccountID)
	return scanCredential(row)
}

func (r *CredentialRepositoryMSSQL) GetAny(ctx context.Context, userID string, platform model.Platform) (*model.Credential, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT TOP 1 `+credentialColumns+` FROM dbo.[credentials] WHERE user_id=@p1 AND platform=@p2 AND active=1 ORDER BY updated_at DESC`,
		userID, string(platform))
	return scanCredential(row)
}

func (r *CredentialRepositoryMSSQL) UpdateTokens(ctx context.Context, c *model.Credential) error {
	c.UpdatedAt = time.Now().UTC()
	var exp, refreshExp sql.NullTime
	if c.ExpiresAt != nil {
		exp = sql.NullTime{Time: *c.ExpiresAt, Valid: true}
	}
	if c.RefreshExpiresAt != nil {
		refreshExp = sql.NullTime{Time: *c.RefreshExpiresAt, Valid: true}
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE dbo.[credentials] SET
			access_token=@p1,
			refresh_token=CASE WHEN @p2 = '' THEN refresh_token ELSE @p2 END,
			expires_at=@p3,
			refresh_expires_at=@p4,
			updated_at=@p5
		 WHERE id=@p6 AND active=1`,
		c.AccessToken, c.RefreshToken, exp, refreshExp, c.UpdatedAt, c.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrCredentialNotFound
	}
	return nil
}

func (r *CredentialRepositoryMSSQL) SetInactive(ctx context.Context, userID string, platform model.Platform, platformAccountID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE dbo.[credentials] SET active=0, updated_at=@p1 WHERE user_id=@p2 AND platform=@p3 AND platform_account_id=@p4 AND active=1`,
		time.Now().UTC(), userID, string(platform), platformAccountID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrCredentialNotFound
	}
	return nil
}

func (r *CredentialRepositoryMSSQL) Purge(ctx context.Context, userID string, platform model.Platform, platformAccountID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM dbo.[credentials] WHERE user_id=@p1 AND platform=@p2 AND platform_account_id=@p3`,
		userID, string(platform), platformAccountID)
	return err
}

func (r *CredentialRepositoryMSSQL) ListByUser(ctx context.Context, userID string) ([]*model.Credential, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+credentialColumns+` FROM dbo.[credentials] WHERE user_id=@p1 AND active=1 ORDER BY platform`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*model.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			if errors.Is(err, model.ErrCredentialNotFound) {
				continue
			}
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}
