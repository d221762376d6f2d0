package cache

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"

	"social-publisher/domain/model"
)

const (
	// StateTTL bounds how long an issued state token stays consumable.
	StateTTL = 10 * time.Minute
	// SweepInterval is how often abandoned states are evicted.
	SweepInterval = 5 * time.Minute

	pkceVerifierLength = 64
	pkceAlphabet       = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// IAuthState issues and consumes single-use OAuth state tokens, optionally
// carrying a PKCE verifier for the later code exchange.
type IAuthState interface {
	// Issue returns a fresh state token and, when withPKCE is set, the S256
	// challenge to embed in the authorization URL.
	Issue(ctx context.Context, userID string, platform model.Platform, withPKCE bool) (state string, pkceChallenge string, err error)
	// Consume atomically takes the pending state. Unknown, replayed, or expired
	// tokens yield model.ErrInvalidState.
	Consume(ctx context.Context, state string) (*model.PendingAuthState, error)
	Close()
}

// NewStateToken returns a 256-bit random token encoded as hex.
func NewStateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewPKCEVerifier returns a 64-character verifier from the URL-safe alphabet
// (RFC 7636 requires 43-128 characters).
func NewPKCEVerifier() (string, error) {
	raw := make([]byte, pkceVerifierLength)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	out := make([]byte, pkceVerifierLength)
	for i, b := range raw {
		out[i] = pkceAlphabet[int(b)%len(pkceAlphabet)]
	}
	return string(out), nil
}

// PKCEChallengeS256 derives the base64url-encoded SHA-256 challenge.
func PKCEChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// MemoryAuthState keeps pending states in a TTL cache. Process-local; suits a
// single-instance deployment.
type MemoryAuthState struct {
	states *TTLCache[model.PendingAuthState]
}

func NewMemoryAuthState() *MemoryAuthState {
	return &MemoryAuthState{states: NewTTLCache[model.PendingAuthState](StateTTL, SweepInterval)}
}

func (s *MemoryAuthState) Issue(_ context.Context, userID string, platform model.Platform, withPKCE bool) (string, string, error) {
	state, err := NewStateToken()
	if err != nil {
		return "", "", err
	}
	pending := model.PendingAuthState{
		UserID:    userID,
		Platform:  platform,
		CreatedAt: time.Now().UTC(),
	}
	if withPKCE {
		verifier, err := NewPKCEVerifier()
		if err != nil {
			return "", "", err
		}
		pending.PKCEVerifier = verifier
		pending.PKCEChallenge = PKCEChallengeS256(verifier)
	}
	s.states.Put(state, pending)
	return state, pending.PKCEChallenge, nil
}

func (s *MemoryAuthState) Consume(_ context.Context, state string) (*model.PendingAuthState, error) {
	pending, ok := s.states.Take(state)
	if !ok {
		return nil, model.ErrInvalidState
	}
	return &pending, nil
}

func (s *MemoryAuthState) Close() { s.states.Close() }
