package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"social-publisher/domain/model"
)

const credentialColumns = `id, user_id, platform, access_token, refresh_token, expires_at, refresh_expires_at, scopes, platform_account_id, platform_account_name, metadata, active, created_at, updated_at`

// CredentialRepository persists OAuth credentials in PostgreSQL.
type CredentialRepository struct{ db *sql.DB }

func NewCredentialRepository(db *sql.DB) *CredentialRepository { return &CredentialRepository{db: db} }

func (r *CredentialRepository) Upsert(ctx context.Context, c *model.Credential) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	meta, err := json.Marshal(metadataOrEmpty(c.Metadata))
	if err != nil {
		return err
	}
	// Refresh token preserved on conflict when the new response omitted one;
	// re-authentication reactivates a previously revoked row.
	q := `INSERT INTO credentials (user_id, platform, access_token, refresh_token, expires_at, refresh_expires_at, scopes, platform_account_id, platform_account_name, metadata, active, created_at, updated_at)
		  VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,TRUE,$11,$12)
		  ON CONFLICT (user_id, platform, platform_account_id) DO UPDATE SET
			access_token=EXCLUDED.access_token,
			refresh_token=COALESCE(NULLIF(EXCLUDED.refresh_token,''), credentials.refresh_token),
			expires_at=EXCLUDED.expires_at,
			refresh_expires_at=COALESCE(EXCLUDED.refresh_expires_at, credentials.refresh_expires_at),
			scopes=EXCLUDED.scopes,
			platform_account_name=COALESCE(EXCLUDED.platform_account_name, credentials.platform_account_name),
			metadata=EXCLUDED.metadata,
			active=TRUE,
			updated_at=EXCLUDED.updated_at
		  RETURNING id, created_at`
	row := r.db.QueryRowContext(ctx, q,
		c.UserID, c.Platform, c.AccessToken, c.RefreshToken, c.ExpiresAt, c.RefreshExpiresAt,
		c.Scopes, c.AccountID(), c.PlatformAccountName, meta, c.CreatedAt, c.UpdatedAt)
	if err := row.Scan(&c.ID, &c.CreatedAt); err != nil {
		return err
	}
	c.Active = true
	return nil
}

func (r *CredentialRepository) Get(ctx context.Context, userID string, platform model.Platform, platformAccountID string) (*model.Credential, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE user_id=$1 AND platform=$2 AND platform_account_id=$3 AND active=TRUE`,
		userID, platform, platformAccountID)
	return scanCredential(row)
}

func (r *CredentialRepository) GetAny(ctx context.Context, userID string, platform model.Platform) (*model.Credential, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE user_id=$1 AND platform=$2 AND active=TRUE ORDER BY updated_at DESC LIMIT 1`,
		userID, platform)
	return scanCredential(row)
}

// UpdateTokens only touches rows still active so a refresh racing a revoke
// cannot resurrect the credential.
func (r *CredentialRepository) UpdateTokens(ctx context.Context, c *model.Credential) error {
	c.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`UPDATE credentials SET
			access_token=$1,
			refresh_token=COALESCE(NULLIF($2,''), refresh_token),
			expires_at=$3,
			refresh_expires_at=$4,
			updated_at=$5
		 WHERE id=$6 AND active=TRUE`,
		c.AccessToken, c.RefreshToken, c.ExpiresAt, c.RefreshExpiresAt, c.UpdatedAt, c.ID)
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

func (r *CredentialRepository) SetInactive(ctx context.Context, userID string, platform model.Platform, platformAccountID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE credentials SET active=FALSE, updated_at=$1 WHERE user_id=$2 AND platform=$3 AND platform_account_id=$4 AND active=TRUE`,
		time.Now().UTC(), userID, platform, platformAccountID)
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

func (r *CredentialRepository) Purge(ctx context.Context, userID string, platform model.Platform, platformAccountID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM credentials WHERE user_id=$1 AND platform=$2 AND platform_account_id=$3`,
		userID, platform, platformAccountID)
	return err
}

func (r *CredentialRepository) ListByUser(ctx context.Context, userID string) ([]*model.Credential, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE user_id=$1 AND active=TRUE ORDER BY platform`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*model.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (*model.Credential, error) {
	c := &model.Credential{}
	var (
		exp, refreshExp sql.NullTime
		accountID       string
		accountName     sql.NullString
		meta            []byte
	)
	err := row.Scan(&c.ID, &c.UserID, &c.Platform, &c.AccessToken, &c.RefreshToken,
		&exp, &refreshExp, &c.Scopes, &accountID, &accountName, &meta, &c.Active,
		&c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrCredentialNotFound
	}
	if err != nil {
		return nil, err
	}
	if exp.Valid {
		c.ExpiresAt = &exp.Time
	}
	if refreshExp.Valid {
		c.RefreshExpiresAt = &refreshExp.Time
	}
	if accountID != "" {
		c.PlatformAccountID = &accountID
	}
	if accountName.Valid {
		c.PlatformAccountName = &accountName.String
	}
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &c.Metadata)
	}
	return c, nil
}

func metadataOrEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
