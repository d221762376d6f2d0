package platforms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-querystring/query"

	"social-publisher/domain/model"
	"social-publisher/infrastructure/configuration"
)

// TikTok calls the client id a client key, joins scopes with commas, and is
// the only platform reporting a refresh token expiry. Video posts go through
// the async direct-post flow (init, poll, complete).
type TikTok struct {
	conf configuration.OAuthClient

	AuthBase string
	APIBase  string
}

func NewTikTok(conf configuration.OAuthClient) *TikTok {
	if len(conf.Scopes) == 0 {
		conf.Scopes = []string{"user.info.basic", "video.publish"}
	}
	return &TikTok{
		conf:     conf,
		AuthBase: "https://www.tiktok.com/v2/auth/authorize/",
		APIBase:  "https://open.tiktokapis.com/v2",
	}
}

func (t *TikTok) Platform() model.Platform { return model.PlatformTikTok }
func (t *TikTok) Configured() bool         { return t.conf.ClientID != "" && t.conf.ClientSecret != "" }
func (t *TikTok) UsesPKCE() bool           { return false }

type tiktokAuthParams struct {
	ClientKey    string `url:"client_key"`
	ResponseType string `url:"response_type"`
	Scope        string `url:"scope"`
	RedirectURI  string `url:"redirect_uri"`
	State        string `url:"state"`
}

func (t *TikTok) BuildAuthURL(state, _ string) (string, error) {
	v, err := query.Values(tiktokAuthParams{
		ClientKey:    t.conf.ClientID,
		ResponseType: "code",
		Scope:        strings.Join(t.conf.Scopes, ","),
		RedirectURI:  t.conf.RedirectURI,
		State:        state,
	})
	if err != nil {
		return "", err
	}
	return t.AuthBase + "?" + v.Encode(), nil
}

type tiktokTokenData struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int64  `json:"expires_in"`
	RefreshToken     string `json:"refresh_token"`
	RefreshExpiresIn int64  `json:"refresh_expires_in"`
	OpenID           string `json:"open_id"`
	Scope            string `json:"scope"`
	ErrorCode        string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (d *tiktokTokenData) toResponse(platform model.Platform) (*TokenResponse, error) {
	if d.ErrorCode != "" {
		return nil, &model.ProviderError{
			Platform:   platform,
			StatusCode: http.StatusOK,
			Body:       fmt.Sprintf(`{"error":%q,"error_description":%q}`, d.ErrorCode, d.ErrorDescription),
		}
	}
	return &TokenResponse{
		AccessToken:      d.AccessToken,
		RefreshToken:     d.RefreshToken,
		ExpiresIn:        d.ExpiresIn,
		RefreshExpiresIn: d.RefreshExpiresIn,
		Scope:            d.Scope,
	}, nil
}

func (t *TikTok) Exchange(ctx context.Context, code, _ string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("client_key", t.conf.ClientID)
	form.Set("client_secret", t.conf.ClientSecret)
	form.Set("code", code)
	form.Set("grant_type", "authorization_code")
	form.Set("redirect_uri", t.conf.RedirectURI)
	var data tiktokTokenData
	if err := postForm(ctx, t.Platform(), t.APIBase+"/oauth/token/", form, "", "", &data); err != nil {
		return nil, err
	}
	return data.toResponse(t.Platform())
}

func (t *TikTok) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("client_key", t.conf.ClientID)
	form.Set("client_secret", t.conf.ClientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	var data tiktokTokenData
	if err := postForm(ctx, t.Platform(), t.APIBase+"/oauth/token/", form, "", "", &data); err != nil {
		return nil, err
	}
	return data.toResponse(t.Platform())
}

// tiktokError is the envelope TikTok attaches to every display-API response,
// including successful ones (code "ok").
type tiktokError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e tiktokError) check(platform model.Platform) error {
	if e.Code == "" || e.Code == "ok" {
		return nil
	}
	return &model.ProviderError{
		Platform:   platform,
		StatusCode: http.StatusOK,
		Body:       fmt.Sprintf(`{"code":%q,"message":%q}`, e.Code, e.Message),
	}
}

func (t *TikTok) FetchIdentity(ctx context.Context, accessToken string) (*Identity, error) {
	var data struct {
		Data struct {
			User struct {
				OpenID      string `json:"open_id"`
				DisplayName string `json:"display_name"`
			} `json:"user"`
		} `json:"data"`
		Error tiktokError `json:"error"`
	}
	endpoint := t.APIBase + "/user/info/?fields=open_id,display_name"
	if err := getJSON(ctx, t.Platform(), endpoint, accessToken, &data); err != nil {
		return nil, err
	}
	if err := data.Error.check(t.Platform()); err != nil {
		return nil, err
	}
	return &Identity{ID: data.Data.User.OpenID, Name: data.Data.User.DisplayName}, nil
}

// CreateContainer starts a direct post pulling the video from its URL. The
// returned publish id is the container the status fetch polls on.
func (t *TikTok) CreateContainer(ctx context.Context, accessToken string, _ *model.Credential, content model.PublishContent) (string, error) {
	if len(content.Media) == 0 {
		return "", errors.New("tiktok: no video to publish")
	}
	title := content.Title
	if title == "" {
		title = content.Text
	}
	privacy := content.Metadata["privacy_level"]
	if privacy == "" {
		privacy = "PUBLIC_TO_EVERYONE"
	}
	payload := map[string]interface{}{
		"post_info": map[string]interface{}{
			"title":         title,
			"privacy_level": privacy,
		},
		"source_info": map[string]interface{}{
			"source":    "PULL_FROM_URL",
			"video_url": content.Media[0].URL,
		},
	}
	var data struct {
		Data struct {
			PublishID string `json:"publish_id"`
		} `json:"data"`
		Error tiktokError `json:"error"`
	}
	if err := postJSON(ctx, t.Platform(), t.APIBase+"/post/publish/video/init/", accessToken, payload, &data); err != nil {
		return "", err
	}
	if err := data.Error.check(t.Platform()); err != nil {
		return "", err
	}
	return data.Data.PublishID, nil
}

type tiktokStatusData struct {
	Status       string   `json:"status"`
	FailReason   string   `json:"fail_reason"`
	PublicPostID []uint64 `json:"publicaly_available_post_id"`
}

func (t *TikTok) fetchStatus(ctx context.Context, accessToken, publishID string) (*tiktokStatusData, error) {
	payload := map[string]string{"publish_id": publishID}
	var data struct {
		Data  tiktokStatusData `json:"data"`
		Error tiktokError      `json:"error"`
	}
	if err := postJSON(ctx, t.Platform(), t.APIBase+"/post/publish/status/fetch/", accessToken, payload, &data); err != nil {
		return nil, err
	}
	if err := data.Error.check(t.Platform()); err != nil {
		return nil, err
	}
	return &data.Data, nil
}

func (t *TikTok) ContainerStatus(ctx context.Context, accessToken, containerID string) (ContainerState, string, error) {
	status, err := t.fetchStatus(ctx, accessToken, containerID)
	if err != nil {
		return "", "", err
	}
	switch status.Status {
	case "PROCESSING_DOWNLOAD", "PROCESSING_UPLOAD", "SEND_TO_USER_INBOX":
		return ContainerInProgress, "", nil
	case "PUBLISH_COMPLETE":
		// Direct post completes without a separate publish call.
		return ContainerPublished, "", nil
	case "FAILED":
		return ContainerError, status.FailReason, nil
	default:
		return ContainerInProgress, "", nil
	}
}

// PublishContainer resolves the public post id once the direct post is done.
func (t *TikTok) PublishContainer(ctx context.Context, accessToken string, _ *model.Credential, containerID string) (string, error) {
	status, err := t.fetchStatus(ctx, accessToken, containerID)
	if err != nil {
		return "", err
	}
	if len(status.PublicPostID) > 0 {
		return fmt.Sprintf("%d", status.PublicPostID[0]), nil
	}
	return containerID, nil
}

// Permalink is not exposed by the posting API; callers fall back.
func (t *TikTok) Permalink(_ context.Context, _, _ string) (string, error) {
	return "", errors.New("tiktok: permalink lookup unsupported")
}

func (t *TikTok) FallbackPermalink(cred *model.Credential, postID string) string {
	handle := cred.Metadata["username"]
	if handle == "" {
		handle = cred.AccountID()
	}
	return fmt.Sprintf("https://www.tiktok.com/@%s/video/%s", handle, postID)
}
