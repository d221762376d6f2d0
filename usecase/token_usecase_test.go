package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-publisher/domain/model"
	"social-publisher/infrastructure/cache"
	"social-publisher/infrastructure/clients/platforms"
)

// fakeCredRepo keeps credentials in memory keyed like the real table.
type fakeCredRepo struct {
	mu    sync.Mutex
	creds map[string]*model.Credential
}

func newFakeCredRepo() *fakeCredRepo {
	return &fakeCredRepo{creds: make(map[string]*model.Credential)}
}

func credKey(userID string, platform model.Platform, accountID string) string {
	return userID + "|" + string(platform) + "|" + accountID
}

func (r *fakeCredRepo) Upsert(_ context.Context, cred *model.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cred.Active = true
	stored := *cred
	r.creds[credKey(cred.UserID, cred.Platform, cred.AccountID())] = &stored
	return nil
}

func (r *fakeCredRepo) Get(_ context.Context, userID string, platform model.Platform, accountID string) (*model.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cred, ok := r.creds[credKey(userID, platform, accountID)]
	if !ok || !cred.Active {
		return nil, model.ErrCredentialNotFound
	}
	out := *cred
	return &out, nil
}

func (r *fakeCredRepo) GetAny(_ context.Context, userID string, platform model.Platform) (*model.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cred := range r.creds {
		if cred.UserID == userID && cred.Platform == platform && cred.Active {
			out := *cred
			return &out, nil
		}
	}
	return nil, model.ErrCredentialNotFound
}

func (r *fakeCredRepo) UpdateTokens(_ context.Context, cred *model.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.creds[credKey(cred.UserID, cred.Platform, cred.AccountID())]
	if !ok || !stored.Active {
		return model.ErrCredentialNotFound
	}
	stored.AccessToken = cred.AccessToken
	stored.RefreshToken = cred.RefreshToken
	stored.ExpiresAt = cred.ExpiresAt
	stored.RefreshExpiresAt = cred.RefreshExpiresAt
	return nil
}

func (r *fakeCredRepo) SetInactive(_ context.Context, userID string, platform model.Platform, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cred, ok := r.creds[credKey(userID, platform, accountID)]
	if !ok || !cred.Active {
		return model.ErrCredentialNotFound
	}
	cred.Active = false
	return nil
}

func (r *fakeCredRepo) Purge(_ context.Context, userID string, platform model.Platform, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.creds, credKey(userID, platform, accountID))
	return nil
}

func (r *fakeCredRepo) ListByUser(_ context.Context, userID string) ([]*model.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Credential
	for _, cred := range r.creds {
		if cred.UserID == userID && cred.Active {
			copied := *cred
			out = append(out, &copied)
		}
	}
	return out, nil
}

// fakeStrategy scripts exchange/refresh responses and counts refresh calls.
type fakeStrategy struct {
	platform     model.Platform
	configured   bool
	pkce         bool
	exchangeResp *platforms.TokenResponse
	refreshResp  *platforms.TokenResponse
	refreshErr   error
	identity     *platforms.Identity
	refreshCalls atomic.Int64
	gotVerifier  string
	refreshDelay time.Duration
}

func (s *fakeStrategy) Platform() model.Platform { return s.platform }
func (s *fakeStrategy) Configured() bool         { return s.configured }
func (s *fakeStrategy) UsesPKCE() bool           { return s.pkce }

func (s *fakeStrategy) BuildAuthURL(state, pkceChallenge string) (string, error) {
	return "https://provider.example.com/authorize?state=" + state + "&code_challenge=" + pkceChallenge, nil
}

func (s *fakeStrategy) Exchange(_ context.Context, _, pkceVerifier string) (*platforms.TokenResponse, error) {
	s.gotVerifier = pkceVerifier
	return s.exchangeResp, nil
}

func (s *fakeStrategy) FetchIdentity(context.Context, string) (*platforms.Identity, error) {
	if s.identity != nil {
		return s.identity, nil
	}
	return &platforms.Identity{ID: "acct-1", Name: "Ada"}, nil
}

func (s *fakeStrategy) Refresh(context.Context, string) (*platforms.TokenResponse, error) {
	s.refreshCalls.Add(1)
	if s.refreshDelay > 0 {
		time.Sleep(s.refreshDelay)
	}
	if s.refreshErr != nil {
		return nil, s.refreshErr
	}
	return s.refreshResp, nil
}

func newTokenFixture(strategy *fakeStrategy) (*fakeCredRepo, cache.IAuthState, ITokenUsecase) {
	repo := newFakeCredRepo()
	states := cache.NewMemoryAuthState()
	registry := map[model.Platform]platforms.Strategy{strategy.platform: strategy}
	return repo, states, NewTokenUsecase(repo, states, registry)
}

func seedCredential(repo *fakeCredRepo, expiresIn time.Duration, refreshToken string) *model.Credential {
	accountID := "acct-1"
	expiry := time.Now().UTC().Add(expiresIn)
	cred := &model.Credential{
		UserID:            "user-1",
		Platform:          model.PlatformTwitter,
		AccessToken:       "old-at",
		RefreshToken:      refreshToken,
		ExpiresAt:         &expiry,
		PlatformAccountID: &accountID,
		Active:            true,
	}
	_ = repo.Upsert(context.Background(), cred)
	return cred
}

func TestBeginAuthNotConfigured(t *testing.T) {
	strategy := &fakeStrategy{platform: model.PlatformTwitter, configured: false}
	_, _, tokens := newTokenFixture(strategy)

	_, err := tokens.BeginAuth(context.Background(), "user-1", model.PlatformTwitter)
	require.ErrorIs(t, err, model.ErrNotConfigured)
}

func TestCompleteAuthStoresCredentialWithVerifier(t *testing.T) {
	strategy := &fakeStrategy{
		platform:   model.PlatformTwitter,
		configured: true,
		pkce:       true,
		exchangeResp: &platforms.TokenResponse{
			AccessToken:  "at-1",
			RefreshToken: "rt-1",
			ExpiresIn:    7200,
			Scope:        "tweet.read tweet.write",
		},
	}
	repo, states, tokens := newTokenFixture(strategy)
	defer states.Close()

	resp, err := tokens.BeginAuth(context.Background(), "user-1", model.PlatformTwitter)
	require.NoError(t, err)
	require.NotEmpty(t, resp.State)
	assert.Contains(t, resp.AuthURL, "code_challenge=")

	cred, err := tokens.CompleteAuth(context.Background(), resp.State, "code-1")
	require.NoError(t, err)
	assert.NotEmpty(t, strategy.gotVerifier, "exchange must receive the stored verifier")
	assert.Equal(t, "at-1", cred.AccessToken)
	assert.Equal(t, "acct-1", cred.AccountID())
	require.NotNil(t, cred.ExpiresAt)

	stored, err := repo.Get(context.Background(), "user-1", model.PlatformTwitter, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "rt-1", stored.RefreshToken)

	// State is single-use.
	_, err = tokens.CompleteAuth(context.Background(), resp.State, "code-1")
	require.ErrorIs(t, err, model.ErrInvalidState)
}

func TestActiveCredentialSkipsRefreshWhenFresh(t *testing.T) {
	strategy := &fakeStrategy{platform: model.PlatformTwitter, configured: true}
	repo, states, tokens := newTokenFixture(strategy)
	defer states.Close()
	seedCredential(repo, time.Hour, "rt-1")

	cred, err := tokens.ActiveCredential(context.Background(), "user-1", model.PlatformTwitter, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "old-at", cred.AccessToken)
	assert.Zero(t, strategy.refreshCalls.Load())
}

func TestActiveCredentialRefreshesInsideLookAhead(t *testing.T) {
	strategy := &fakeStrategy{
		platform:    model.PlatformTwitter,
		configured:  true,
		refreshResp: &platforms.TokenResponse{AccessToken: "new-at", RefreshToken: "new-rt", ExpiresIn: 7200},
	}
	repo, states, tokens := newTokenFixture(strategy)
	defer states.Close()
	seedCredential(repo, 2*time.Minute, "rt-1")

	cred, err := tokens.ActiveCredential(context.Background(), "user-1", model.PlatformTwitter, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "new-at", cred.AccessToken)
	assert.Equal(t, "new-rt", cred.RefreshToken)
	assert.Equal(t, int64(1), strategy.refreshCalls.Load())
}

func TestRefreshPreservesRefreshTokenWhenProviderOmitsIt(t *testing.T) {
	strategy := &fakeStrategy{
		platform:    model.PlatformTwitter,
		configured:  true,
		refreshResp: &platforms.TokenResponse{AccessToken: "new-at", ExpiresIn: 7200},
	}
	repo, states, tokens := newTokenFixture(strategy)
	defer states.Close()
	seedCredential(repo, time.Minute, "rt-keep")

	cred, err := tokens.ActiveCredential(context.Background(), "user-1", model.PlatformTwitter, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "new-at", cred.AccessToken)
	assert.Equal(t, "rt-keep", cred.RefreshToken)

	stored, err := repo.Get(context.Background(), "user-1", model.PlatformTwitter, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "rt-keep", stored.RefreshToken)
}

func TestRefreshWithoutRefreshToken(t *testing.T) {
	strategy := &fakeStrategy{platform: model.PlatformTwitter, configured: true}
	repo, states, tokens := newTokenFixture(strategy)
	defer states.Close()
	seedCredential(repo, time.Minute, "")

	cred, err := tokens.ActiveCredential(context.Background(), "user-1", model.PlatformTwitter, "acct-1")
	require.ErrorIs(t, err, model.ErrNoRefreshToken)
	assert.False(t, model.IsRetryable(err))
	// The stale credential rides along with the failure.
	require.NotNil(t, cred)
	assert.Equal(t, "old-at", cred.AccessToken)
}

func TestRefreshWithExpiredRefreshToken(t *testing.T) {
	strategy := &fakeStrategy{platform: model.PlatformTwitter, configured: true}
	repo, states, tokens := newTokenFixture(strategy)
	defer states.Close()
	cred := seedCredential(repo, time.Minute, "rt-1")
	past := time.Now().UTC().Add(-time.Hour)
	cred.RefreshExpiresAt = &past
	_ = repo.Upsert(context.Background(), cred)

	stale, err := tokens.ActiveCredential(context.Background(), "user-1", model.PlatformTwitter, "acct-1")
	require.ErrorIs(t, err, model.ErrRefreshExpired)
	assert.Zero(t, strategy.refreshCalls.Load())
	require.NotNil(t, stale)
	assert.Equal(t, "old-at", stale.AccessToken)
}

func TestRefreshProviderFailureReturnsStaleCredential(t *testing.T) {
	strategy := &fakeStrategy{
		platform:   model.PlatformTwitter,
		configured: true,
		refreshErr: &model.ProviderError{Platform: model.PlatformTwitter, StatusCode: 400, Body: `{"error":"invalid_grant"}`},
	}
	repo, states, tokens := newTokenFixture(strategy)
	defer states.Close()
	seedCredential(repo, time.Minute, "rt-1")

	stale, err := tokens.ActiveCredential(context.Background(), "user-1", model.PlatformTwitter, "acct-1")
	var re *model.RefreshFailedError
	require.ErrorAs(t, err, &re)
	assert.False(t, model.IsRetryable(err), "a broken credential cannot be outwaited by the queue")
	var pe *model.ProviderError
	assert.ErrorAs(t, err, &pe)
	require.NotNil(t, stale)
	assert.Equal(t, "old-at", stale.AccessToken)

	stored, err := repo.Get(context.Background(), "user-1", model.PlatformTwitter, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "old-at", stored.AccessToken, "failed refresh must not touch the stored tokens")
}

func TestConcurrentRefreshIsSingleFlight(t *testing.T) {
	strategy := &fakeStrategy{
		platform:     model.PlatformTwitter,
		configured:   true,
		refreshResp:  &platforms.TokenResponse{AccessToken: "new-at", RefreshToken: "new-rt", ExpiresIn: 7200},
		refreshDelay: 20 * time.Millisecond,
	}
	repo, states, tokens := newTokenFixture(strategy)
	defer states.Close()
	seedCredential(repo, time.Minute, "rt-1")

	const callers = 8
	var wg sync.WaitGroup
	results := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cred, err := tokens.ActiveCredential(context.Background(), "user-1", model.PlatformTwitter, "acct-1")
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = cred.AccessToken
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), strategy.refreshCalls.Load(), "refresh must run once for concurrent callers")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "new-at", results[i])
	}
}

func TestRefreshCannotResurrectRevokedCredential(t *testing.T) {
	strategy := &fakeStrategy{
		platform:    model.PlatformTwitter,
		configured:  true,
		refreshResp: &platforms.TokenResponse{AccessToken: "new-at", ExpiresIn: 7200},
	}
	repo, states, tokens := newTokenFixture(strategy)
	defer states.Close()
	seedCredential(repo, time.Minute, "rt-1")

	require.NoError(t, repo.SetInactive(context.Background(), "user-1", model.PlatformTwitter, "acct-1"))

	_, err := tokens.ActiveCredential(context.Background(), "user-1", model.PlatformTwitter, "acct-1")
	require.ErrorIs(t, err, model.ErrCredentialNotFound)
}

func TestDisconnectThenLookupFails(t *testing.T) {
	strategy := &fakeStrategy{platform: model.PlatformTwitter, configured: true}
	repo, states, tokens := newTokenFixture(strategy)
	defer states.Close()
	seedCredential(repo, time.Hour, "rt-1")

	require.NoError(t, tokens.Disconnect(context.Background(), "user-1", model.PlatformTwitter, "acct-1", false))
	_, err := tokens.ActiveCredential(context.Background(), "user-1", model.PlatformTwitter, "acct-1")
	require.ErrorIs(t, err, model.ErrCredentialNotFound)
}

func TestConnectionsCoversAllPlatforms(t *testing.T) {
	strategy := &fakeStrategy{platform: model.PlatformTwitter, configured: true}
	repo, states, tokens := newTokenFixture(strategy)
	defer states.Close()
	seedCredential(repo, time.Hour, "rt-1")

	statuses, err := tokens.Connections(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, statuses, len(model.AllPlatforms))

	connected := 0
	for _, status := range statuses {
		if status.Connected {
			connected++
			assert.Equal(t, string(model.PlatformTwitter), status.Platform)
			assert.Equal(t, "acct-1", status.AccountID)
		}
	}
	assert.Equal(t, 1, connected)
}
