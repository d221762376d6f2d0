package model

import "time"

// Credential stores platform OAuth secrets for one (user, platform, account) identity.
// Owned exclusively by the token usecase; revoke flips Active instead of deleting.
type Credential struct {
	ID                  int64             `json:"id"`
	UserID              string            `json:"user_id"`
	Platform            Platform          `json:"platform"`
	AccessToken         string            `json:"access_token"`
	RefreshToken        string            `json:"refresh_token"`
	ExpiresAt           *time.Time        `json:"expires_at,omitempty"`
	RefreshExpiresAt    *time.Time        `json:"refresh_expires_at,omitempty"`
	Scopes              string            `json:"scopes"`
	PlatformAccountID   *string           `json:"platform_account_id,omitempty"`
	PlatformAccountName *string           `json:"platform_account_name,omitempty"`
	Metadata            map[string]string `json:"metadata,omitempty"`
	Active              bool              `json:"active"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// NeedsRefresh reports whether the access token expires within the look-ahead
// window. Tokens without a recorded expiry are assumed valid.
func (c *Credential) NeedsRefresh(now time.Time, lookAhead time.Duration) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return c.ExpiresAt.Sub(now) < lookAhead
}

// RefreshExpired reports whether the refresh token itself can no longer be used.
func (c *Credential) RefreshExpired(now time.Time) bool {
	return c.RefreshExpiresAt != nil && now.After(*c.RefreshExpiresAt)
}

// AccountID returns the platform account id or "" when the platform only ever
// yields a single identity per user.
func (c *Credential) AccountID() string {
	if c.PlatformAccountID == nil {
		return ""
	}
	return *c.PlatformAccountID
}

// PendingAuthState is the ephemeral record behind an issued OAuth state token.
// Consumed exactly once; swept after its TTL when the flow is abandoned.
type PendingAuthState struct {
	UserID        string    `json:"user_id"`
	Platform      Platform  `json:"platform"`
	PKCEVerifier  string    `json:"pkce_verifier,omitempty"`
	PKCEChallenge string    `json:"pkce_challenge,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
