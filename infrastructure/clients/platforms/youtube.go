package platforms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	youtube "google.golang.org/api/youtube/v3"

	"social-publisher/domain/model"
	"social-publisher/infrastructure/configuration"
)

// YouTube rides on golang.org/x/oauth2 and the official API client. Upload is
// resumable on Google's side, so the video becomes the container and the
// processing status drives the async flow.
type YouTube struct {
	conf   configuration.OAuthClient
	oauth2 *oauth2.Config
}

func NewYouTube(conf configuration.OAuthClient) *YouTube {
	scopes := conf.Scopes
	if len(scopes) == 0 {
		scopes = []string{
			youtube.YoutubeScope,
			youtube.YoutubeUploadScope,
			youtube.YoutubeForceSslScope,
		}
	}
	return &YouTube{
		conf: conf,
		oauth2: &oauth2.Config{
			ClientID:     conf.ClientID,
			ClientSecret: conf.ClientSecret,
			RedirectURL:  conf.RedirectURI,
			Scopes:       scopes,
			Endpoint:     google.Endpoint,
		},
	}
}

func (y *YouTube) Platform() model.Platform { return model.PlatformYouTube }
func (y *YouTube) Configured() bool         { return y.conf.ClientID != "" && y.conf.ClientSecret != "" }
func (y *YouTube) UsesPKCE() bool           { return false }

// BuildAuthURL requests offline access so Google issues a refresh token, and
// forces the consent prompt because repeat grants omit it otherwise.
func (y *YouTube) BuildAuthURL(state, _ string) (string, error) {
	return y.oauth2.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	), nil
}

func (y *YouTube) Exchange(ctx context.Context, code, _ string) (*TokenResponse, error) {
	token, err := y.oauth2.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("youtube code exchange failed: %w", err)
	}
	return tokenResponseFromOAuth2(token), nil
}

func (y *YouTube) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	source := y.oauth2.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("youtube token refresh failed: %w", err)
	}
	resp := tokenResponseFromOAuth2(token)
	if resp.RefreshToken == "" {
		resp.RefreshToken = refreshToken
	}
	return resp, nil
}

func tokenResponseFromOAuth2(token *oauth2.Token) *TokenResponse {
	resp := &TokenResponse{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if !token.Expiry.IsZero() {
		resp.ExpiresIn = int64(time.Until(token.Expiry).Seconds())
	}
	return resp
}

func (y *YouTube) service(ctx context.Context, accessToken string) (*youtube.Service, error) {
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	return youtube.NewService(ctx, option.WithTokenSource(source))
}

func (y *YouTube) FetchIdentity(ctx context.Context, accessToken string) (*Identity, error) {
	service, err := y.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	response, err := service.Channels.List([]string{"id", "snippet"}).Mine(true).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get my channel: %w", err)
	}
	if len(response.Items) == 0 {
		return nil, errors.New("no channel found for authenticated user")
	}
	channel := response.Items[0]
	return &Identity{
		ID:       channel.Id,
		Name:     channel.Snippet.Title,
		Metadata: map[string]string{"custom_url": channel.Snippet.CustomUrl},
	}, nil
}

// CreateContainer streams the video from its URL into videos.insert. The
// returned video id is polled for processing afterwards.
func (y *YouTube) CreateContainer(ctx context.Context, accessToken string, _ *model.Credential, content model.PublishContent) (string, error) {
	if len(content.Media) == 0 {
		return "", errors.New("youtube: no video to publish")
	}
	service, err := y.service(ctx, accessToken)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, content.Media[0].URL, nil)
	if err != nil {
		return "", err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("video fetch failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("video fetch returned %d for %s", resp.StatusCode, content.Media[0].URL)
	}

	privacy := content.Metadata["privacy"]
	if privacy == "" {
		privacy = "public"
	}
	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       content.Title,
			Description: content.Text,
		},
		Status: &youtube.VideoStatus{PrivacyStatus: privacy},
	}
	uploaded, err := service.Videos.Insert([]string{"snippet", "status"}, video).
		Media(resp.Body).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload video: %w", err)
	}
	return uploaded.Id, nil
}

func (y *YouTube) ContainerStatus(ctx context.Context, accessToken, containerID string) (ContainerState, string, error) {
	service, err := y.service(ctx, accessToken)
	if err != nil {
		return "", "", err
	}
	response, err := service.Videos.List([]string{"processingDetails", "status"}).
		Id(containerID).Context(ctx).Do()
	if err != nil {
		return "", "", fmt.Errorf("failed to get video details: %w", err)
	}
	if len(response.Items) == 0 {
		return ContainerExpired, "video not found: " + containerID, nil
	}
	item := response.Items[0]
	if item.Status != nil && item.Status.UploadStatus == "rejected" {
		return ContainerError, item.Status.RejectionReason, nil
	}
	if item.Status != nil && item.Status.UploadStatus == "failed" {
		return ContainerError, item.Status.FailureReason, nil
	}
	if item.ProcessingDetails != nil {
		switch item.ProcessingDetails.ProcessingStatus {
		case "processing":
			return ContainerInProgress, "", nil
		case "succeeded":
			return ContainerFinished, "", nil
		case "failed", "terminated":
			reason := ""
			if item.ProcessingDetails.ProcessingFailureReason != "" {
				reason = item.ProcessingDetails.ProcessingFailureReason
			}
			return ContainerError, reason, nil
		}
	}
	return ContainerInProgress, "", nil
}

// PublishContainer is a formality for YouTube: the insert already published
// the video, so the container id is the post id.
func (y *YouTube) PublishContainer(_ context.Context, _ string, _ *model.Credential, containerID string) (string, error) {
	return containerID, nil
}

func (y *YouTube) Permalink(_ context.Context, _, postID string) (string, error) {
	return "https://www.youtube.com/watch?v=" + postID, nil
}

func (y *YouTube) FallbackPermalink(_ *model.Credential, postID string) string {
	return "https://www.youtube.com/watch?v=" + postID
}
