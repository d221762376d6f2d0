package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the token lifecycle and auth flow.
var (
	// ErrNotConfigured means client id/secret are absent for the platform.
	ErrNotConfigured = errors.New("platform oauth client not configured")
	// ErrInvalidState means the CSRF state token is unknown, already used, or expired.
	ErrInvalidState = errors.New("invalid or expired oauth state")
	// ErrNoRefreshToken means a refresh was requested but no refresh token is stored.
	ErrNoRefreshToken = errors.New("no refresh token stored")
	// ErrRefreshExpired means the refresh token's own expiry has passed.
	ErrRefreshExpired = errors.New("refresh token expired")
	// ErrCredentialNotFound means no active credential exists for the lookup key.
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrPollTimeout means the local polling budget was exhausted before the
	// remote container reached a ready state. Kept distinct from ProviderError
	// so slow-provider is distinguishable from broken-provider.
	ErrPollTimeout = errors.New("media processing poll timed out")
)

// ProviderError is a non-2xx response from a platform endpoint. Body is kept
// verbatim for operator diagnosis.
type ProviderError struct {
	Platform   Platform
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider error: status %d: %s", e.Platform, e.StatusCode, e.Body)
}

// RefreshFailedError marks a provider failure on the refresh path. Queued
// work never retries it: a publish attempt cannot outwait a broken
// credential, so the job fails with the refresh error as its reason.
type RefreshFailedError struct {
	Err error
}

func (e *RefreshFailedError) Error() string {
	return fmt.Sprintf("token refresh failed: %v", e.Err)
}

func (e *RefreshFailedError) Unwrap() error { return e.Err }

// ValidationError joins the content rules a payload violated. Never retried.
type ValidationError struct {
	Platform Platform
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s validation failed: %s", e.Platform, strings.Join(e.Problems, "; "))
}

// IsRetryable reports whether a publish attempt failure is worth retrying.
// Token failures and validation failures cannot succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return false
	}
	var re *RefreshFailedError
	if errors.As(err, &re) {
		return false
	}
	switch {
	case errors.Is(err, ErrNoRefreshToken),
		errors.Is(err, ErrRefreshExpired),
		errors.Is(err, ErrNotConfigured),
		errors.Is(err, ErrCredentialNotFound):
		return false
	}
	return true
}
