package usecase

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"social-publisher/domain/dto"
	"social-publisher/domain/model"
	"social-publisher/domain/repository"
	"social-publisher/infrastructure/cache"
	"social-publisher/infrastructure/clients/platforms"
	"social-publisher/infrastructure/logger"
)

// RefreshLookAhead is how close to expiry a token may get before a read
// triggers a refresh. Wide enough that a token cannot expire mid-publish.
const RefreshLookAhead = 5 * time.Minute

type ITokenUsecase interface {
	// BeginAuth issues a state token and returns the provider consent URL.
	BeginAuth(ctx context.Context, userID string, platform model.Platform) (*dto.AuthURLResponse, error)
	// CompleteAuth consumes the callback state, exchanges the code, resolves the
	// remote identity, and stores the credential.
	CompleteAuth(ctx context.Context, state, code string) (*model.Credential, error)
	// ActiveCredential returns a credential whose access token is valid for at
	// least the look-ahead window, refreshing transparently when needed.
	// accountID "" falls back to any active credential for the platform.
	ActiveCredential(ctx context.Context, userID string, platform model.Platform, accountID string) (*model.Credential, error)
	// ForceRefresh refreshes regardless of remaining lifetime.
	ForceRefresh(ctx context.Context, userID string, platform model.Platform, accountID string) (*model.Credential, error)
	// Disconnect deactivates the credential; purge additionally hard-deletes it.
	Disconnect(ctx context.Context, userID string, platform model.Platform, accountID string, purge bool) error
	// Connections reports connection status across every supported platform.
	Connections(ctx context.Context, userID string) ([]dto.ConnectionStatus, error)
}

type tokenUsecase struct {
	credRepo  repository.ICredential
	authState cache.IAuthState
	registry  map[model.Platform]platforms.Strategy
	refreshes singleflight.Group
	now       func() time.Time
}

func NewTokenUsecase(credRepo repository.ICredential, authState cache.IAuthState, registry map[model.Platform]platforms.Strategy) ITokenUsecase {
	return &tokenUsecase{
		credRepo:  credRepo,
		authState: authState,
		registry:  registry,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (u *tokenUsecase) strategy(platform model.Platform) (platforms.Strategy, error) {
	strategy, ok := u.registry[platform]
	if !ok || !strategy.Configured() {
		return nil, model.ErrNotConfigured
	}
	return strategy, nil
}

func (u *tokenUsecase) BeginAuth(ctx context.Context, userID string, platform model.Platform) (*dto.AuthURLResponse, error) {
	strategy, err := u.strategy(platform)
	if err != nil {
		return nil, err
	}
	state, pkceChallenge, err := u.authState.Issue(ctx, userID, platform, strategy.UsesPKCE())
	if err != nil {
		return nil, err
	}
	authURL, err := strategy.BuildAuthURL(state, pkceChallenge)
	if err != nil {
		return nil, err
	}
	return &dto.AuthURLResponse{AuthURL: authURL, State: state}, nil
}

func (u *tokenUsecase) CompleteAuth(ctx context.Context, state, code string) (*model.Credential, error) {
	pending, err := u.authState.Consume(ctx, state)
	if err != nil {
		return nil, err
	}
	strategy, err := u.strategy(pending.Platform)
	if err != nil {
		return nil, err
	}
	token, err := strategy.Exchange(ctx, code, pending.PKCEVerifier)
	if err != nil {
		return nil, err
	}
	identity, err := strategy.FetchIdentity(ctx, token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("identity lookup after exchange failed: %w", err)
	}

	now := u.now()
	cred := &model.Credential{
		UserID:       pending.UserID,
		Platform:     pending.Platform,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Scopes:       token.Scope,
		Metadata:     identity.Metadata,
		Active:       true,
	}
	if identity.ID != "" {
		id := identity.ID
		cred.PlatformAccountID = &id
	}
	if identity.Name != "" {
		name := identity.Name
		cred.PlatformAccountName = &name
	}
	applyTokenLifetimes(cred, token, now)

	if err := u.credRepo.Upsert(ctx, cred); err != nil {
		return nil, err
	}
	logger.GetLogger().
		WithField("user_id", cred.UserID).
		WithField("platform", cred.Platform).
		WithField("account_id", cred.AccountID()).
		Info("platform connected")
	return cred, nil
}

func applyTokenLifetimes(cred *model.Credential, token *platforms.TokenResponse, now time.Time) {
	if token.ExpiresIn > 0 {
		expiry := now.Add(time.Duration(token.ExpiresIn) * time.Second)
		cred.ExpiresAt = &expiry
	}
	if token.RefreshExpiresIn > 0 {
		refreshExpiry := now.Add(time.Duration(token.RefreshExpiresIn) * time.Second)
		cred.RefreshExpiresAt = &refreshExpiry
	}
}

func (u *tokenUsecase) lookup(ctx context.Context, userID string, platform model.Platform, accountID string) (*model.Credential, error) {
	if accountID == "" {
		return u.credRepo.GetAny(ctx, userID, platform)
	}
	return u.credRepo.Get(ctx, userID, platform, accountID)
}

func (u *tokenUsecase) ActiveCredential(ctx context.Context, userID string, platform model.Platform, accountID string) (*model.Credential, error) {
	cred, err := u.lookup(ctx, userID, platform, accountID)
	if err != nil {
		return nil, err
	}
	if !cred.NeedsRefresh(u.now(), RefreshLookAhead) {
		return cred, nil
	}
	return u.refresh(ctx, cred)
}

func (u *tokenUsecase) ForceRefresh(ctx context.Context, userID string, platform model.Platform, accountID string) (*model.Credential, error) {
	cred, err := u.lookup(ctx, userID, platform, accountID)
	if err != nil {
		return nil, err
	}
	return u.refresh(ctx, cred)
}

// refresh serializes per credential key so two near-simultaneous callers do
// not both spend the same refresh token; the loser receives the winner's
// result instead of a hard failure from the provider.
func (u *tokenUsecase) refresh(ctx context.Context, cred *model.Credential) (*model.Credential, error) {
	key := fmt.Sprintf("%s|%s|%s", cred.UserID, cred.Platform, cred.AccountID())
	result, err, _ := u.refreshes.Do(key, func() (interface{}, error) {
		return u.doRefresh(ctx, cred)
	})
	// A failed refresh still hands the stale credential back so callers can
	// report which connection broke, not just that one did.
	stale, _ := result.(*model.Credential)
	return stale, err
}

func (u *tokenUsecase) doRefresh(ctx context.Context, cred *model.Credential) (*model.Credential, error) {
	// Re-read: a concurrent caller that just finished leaves a fresh token
	// behind, making this call a no-op.
	current, err := u.credRepo.Get(ctx, cred.UserID, cred.Platform, cred.AccountID())
	if err != nil {
		return nil, err
	}
	now := u.now()
	if !current.NeedsRefresh(now, RefreshLookAhead) && current.AccessToken != cred.AccessToken {
		return current, nil
	}
	if current.RefreshToken == "" {
		return current, model.ErrNoRefreshToken
	}
	if current.RefreshExpired(now) {
		return current, model.ErrRefreshExpired
	}

	strategy, err := u.strategy(current.Platform)
	if err != nil {
		return current, err
	}
	token, err := strategy.Refresh(ctx, current.RefreshToken)
	if err != nil {
		logger.GetLogger().
			WithField("user_id", current.UserID).
			WithField("platform", current.Platform).
			WithField("error", err.Error()).
			Warn("token refresh failed")
		return current, &model.RefreshFailedError{Err: err}
	}

	current.AccessToken = token.AccessToken
	// Providers that omit the refresh token expect the old one to stay valid.
	if token.RefreshToken != "" {
		current.RefreshToken = token.RefreshToken
	}
	applyTokenLifetimes(current, token, u.now())
	if err := u.credRepo.UpdateTokens(ctx, current); err != nil {
		// Revoked mid-refresh: the guarded update refuses and the new token is
		// discarded rather than resurrecting the credential.
		return nil, err
	}
	return current, nil
}

func (u *tokenUsecase) Disconnect(ctx context.Context, userID string, platform model.Platform, accountID string, purge bool) error {
	if err := u.credRepo.SetInactive(ctx, userID, platform, accountID); err != nil {
		return err
	}
	if purge {
		return u.credRepo.Purge(ctx, userID, platform, accountID)
	}
	return nil
}

func (u *tokenUsecase) Connections(ctx context.Context, userID string) ([]dto.ConnectionStatus, error) {
	creds, err := u.credRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	byPlatform := make(map[model.Platform]*model.Credential, len(creds))
	for _, cred := range creds {
		byPlatform[cred.Platform] = cred
	}
	statuses := make([]dto.ConnectionStatus, 0, len(model.AllPlatforms))
	for _, platform := range model.AllPlatforms {
		status := dto.ConnectionStatus{Platform: string(platform)}
		if cred, ok := byPlatform[platform]; ok {
			status.Connected = true
			status.AccountID = cred.AccountID()
			if cred.PlatformAccountName != nil {
				status.AccountName = *cred.PlatformAccountName
			}
			if cred.ExpiresAt != nil {
				status.ExpiresAt = cred.ExpiresAt.UTC().Format(time.RFC3339)
			}
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
