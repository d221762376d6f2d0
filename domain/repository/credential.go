package repository

import (
	"context"

	"social-publisher/domain/model"
)

// ICredential persists OAuth credentials. At most one active row exists per
// (user_id, platform, platform_account_id); the storage layer enforces the
// uniqueness, not the callers.
type ICredential interface {
	// Upsert inserts or updates the credential for its key. When the incoming
	// refresh token is empty the stored one is preserved (many providers only
	// return a refresh token on first authorization).
	Upsert(ctx context.Context, cred *model.Credential) error
	// Get returns the active credential for the key; platformAccountID "" means
	// the single-identity row for (userID, platform).
	Get(ctx context.Context, userID string, platform model.Platform, platformAccountID string) (*model.Credential, error)
	// GetAny returns any active credential for (userID, platform), regardless of
	// account. Used by publish paths where the caller did not pin an account.
	GetAny(ctx context.Context, userID string, platform model.Platform) (*model.Credential, error)
	// UpdateTokens persists the result of a refresh. The update only applies to
	// rows still active, so a refresh racing a revoke cannot resurrect the row.
	UpdateTokens(ctx context.Context, cred *model.Credential) error
	// SetInactive soft-deletes the credential.
	SetInactive(ctx context.Context, userID string, platform model.Platform, platformAccountID string) error
	// Purge hard-deletes the credential. Only used on explicit purge requests.
	Purge(ctx context.Context, userID string, platform model.Platform, platformAccountID string) error
	// ListByUser returns all active credentials for the user.
	ListByUser(ctx context.Context, userID string) ([]*model.Credential, error)
}
