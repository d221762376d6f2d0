package platforms

import (
	"context"

	"social-publisher/domain/model"
	"social-publisher/infrastructure/configuration"
)

// TokenResponse is the normalized result of a code exchange or refresh. Only
// the fields the core reads are mapped; everything else stays on the wire.
type TokenResponse struct {
	AccessToken      string
	RefreshToken     string
	ExpiresIn        int64 // seconds; 0 means the provider sent no expiry
	RefreshExpiresIn int64 // seconds; only some providers (TikTok) report this
	Scope            string
}

// Identity is the remote account a credential authenticates as.
type Identity struct {
	ID       string
	Name     string
	Metadata map[string]string
}

// Strategy is the per-platform OAuth behavior: consent URL shape, exchange
// auth style, identity lookup, and refresh. One implementation per platform,
// selected from the registry by platform tag.
type Strategy interface {
	Platform() model.Platform
	// Configured reports whether client credentials are present.
	Configured() bool
	// UsesPKCE reports whether the authorization flow carries a PKCE challenge.
	UsesPKCE() bool
	// BuildAuthURL returns the provider consent URL embedding the state token
	// and, for PKCE platforms, the S256 challenge.
	BuildAuthURL(state, pkceChallenge string) (string, error)
	// Exchange swaps an authorization code for tokens.
	Exchange(ctx context.Context, code, pkceVerifier string) (*TokenResponse, error)
	// FetchIdentity resolves the remote account behind an access token.
	FetchIdentity(ctx context.Context, accessToken string) (*Identity, error)
	// Refresh exchanges a refresh token for a new access token.
	Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error)
}

// Publisher is implemented by platforms whose publish is a single API call.
type Publisher interface {
	Publish(ctx context.Context, accessToken string, cred *model.Credential, content model.PublishContent) (*model.PublishResult, error)
}

// ContainerState is the normalized remote processing state of a media container.
type ContainerState string

const (
	ContainerInProgress ContainerState = "in_progress"
	ContainerFinished   ContainerState = "finished"
	ContainerError      ContainerState = "error"
	ContainerExpired    ContainerState = "expired"
	ContainerPublished  ContainerState = "published"
)

// AsyncPublisher is implemented by platforms whose publish is a three-phase
// remote operation: create a container, wait for processing, then publish.
type AsyncPublisher interface {
	// CreateContainer submits media plus caption and returns an opaque container id.
	CreateContainer(ctx context.Context, accessToken string, cred *model.Credential, content model.PublishContent) (string, error)
	// ContainerStatus reports the container's processing state and, for error
	// states, the remote-supplied reason.
	ContainerStatus(ctx context.Context, accessToken, containerID string) (ContainerState, string, error)
	// PublishContainer finalizes the post and returns the remote post id.
	PublishContainer(ctx context.Context, accessToken string, cred *model.Credential, containerID string) (string, error)
	// Permalink fetches the public URL of the published post.
	Permalink(ctx context.Context, accessToken, postID string) (string, error)
	// FallbackPermalink constructs a deterministic URL when Permalink fails.
	FallbackPermalink(cred *model.Credential, postID string) string
}

// NewRegistry builds the strategy lookup table from the configured clients.
func NewRegistry(cfg *configuration.OAuth) map[model.Platform]Strategy {
	return map[model.Platform]Strategy{
		model.PlatformLinkedIn:  NewLinkedIn(cfg.LinkedIn),
		model.PlatformTwitter:   NewTwitter(cfg.Twitter),
		model.PlatformBluesky:   NewBluesky(cfg.Bluesky),
		model.PlatformTikTok:    NewTikTok(cfg.TikTok),
		model.PlatformPinterest: NewPinterest(cfg.Pinterest),
		model.PlatformInstagram: NewInstagram(cfg.Instagram),
		model.PlatformYouTube:   NewYouTube(cfg.YouTube),
	}
}
