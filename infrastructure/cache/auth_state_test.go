package cache_test

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-publisher/domain/model"
	"social-publisher/infrastructure/cache"
)

func TestMemoryAuthState_IssueAndConsumeOnce(t *testing.T) {
	s := cache.NewMemoryAuthState()
	defer s.Close()
	ctx := context.Background()

	state, challenge, err := s.Issue(ctx, "user-1", model.PlatformLinkedIn, false)
	require.NoError(t, err)
	assert.Len(t, state, 64, "32 random bytes hex encoded")
	assert.Empty(t, challenge)

	pending, err := s.Consume(ctx, state)
	require.NoError(t, err)
	assert.Equal(t, "user-1", pending.UserID)
	assert.Equal(t, model.PlatformLinkedIn, pending.Platform)
	assert.False(t, pending.CreatedAt.IsZero())

	// Replay must fail with the distinguishable invalid-state error.
	_, err = s.Consume(ctx, state)
	assert.ErrorIs(t, err, model.ErrInvalidState)
}

func TestMemoryAuthState_PKCE(t *testing.T) {
	s := cache.NewMemoryAuthState()
	defer s.Close()
	ctx := context.Background()

	state, challenge, err := s.Issue(ctx, "user-2", model.PlatformTwitter, true)
	require.NoError(t, err)
	require.NotEmpty(t, challenge)

	pending, err := s.Consume(ctx, state)
	require.NoError(t, err)
	require.NotEmpty(t, pending.PKCEVerifier)

	// Verifier alphabet and length per RFC 7636.
	assert.Regexp(t, regexp.MustCompile(`^[A-Za-z0-9]{43,128}$`), pending.PKCEVerifier)

	// Challenge must be base64url(SHA-256(verifier)), no padding.
	sum := sha256.Sum256([]byte(pending.PKCEVerifier))
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:]), challenge)
	assert.Equal(t, challenge, pending.PKCEChallenge)
}

func TestMemoryAuthState_UnknownState(t *testing.T) {
	s := cache.NewMemoryAuthState()
	defer s.Close()

	_, err := s.Consume(context.Background(), "deadbeef")
	assert.ErrorIs(t, err, model.ErrInvalidState)
}

func TestNewStateTokenUniqueness(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 100; i++ {
		tok, err := cache.NewStateToken()
		require.NoError(t, err)
		_, dup := seen[tok]
		require.False(t, dup)
		seen[tok] = struct{}{}
	}
}
