package platforms

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"social-publisher/domain/model"
	"social-publisher/infrastructure/configuration"
	"social-publisher/infrastructure/logger"
)

// Bluesky speaks AT Protocol sessions instead of OAuth. The connect page
// collects a handle and app password and posts them back as the exchange
// code ("handle:app-password"); createSession turns that into a JWT pair.
// Session access tokens last about two hours.
const blueskyAccessTTLSeconds = 7200

type Bluesky struct {
	conf configuration.OAuthClient

	XRPCBase string
}

func NewBluesky(conf configuration.OAuthClient) *Bluesky {
	return &Bluesky{
		conf:     conf,
		XRPCBase: "https://bsky.social/xrpc",
	}
}

func (b *Bluesky) Platform() model.Platform { return model.PlatformBluesky }

// Configured needs only a redirect target; there is no remote client
// registration for app-password sessions.
func (b *Bluesky) Configured() bool { return b.conf.RedirectURI != "" }
func (b *Bluesky) UsesPKCE() bool   { return false }

// BuildAuthURL points at the app-hosted connect page. There is no provider
// consent screen, so the state token rides on our own redirect URI.
func (b *Bluesky) BuildAuthURL(state, _ string) (string, error) {
	v := url.Values{}
	v.Set("platform", string(model.PlatformBluesky))
	v.Set("state", state)
	sep := "?"
	if strings.Contains(b.conf.RedirectURI, "?") {
		sep = "&"
	}
	return b.conf.RedirectURI + sep + v.Encode(), nil
}

type blueskySession struct {
	AccessJwt  string `json:"accessJwt"`
	RefreshJwt string `json:"refreshJwt"`
	Did        string `json:"did"`
	Handle     string `json:"handle"`
}

func (b *Bluesky) Exchange(ctx context.Context, code, _ string) (*TokenResponse, error) {
	identifier, password, ok := strings.Cut(code, ":")
	if !ok || identifier == "" || password == "" {
		return nil, &model.ProviderError{
			Platform:   b.Platform(),
			StatusCode: http.StatusBadRequest,
			Body:       "expected identifier:app-password",
		}
	}
	var session blueskySession
	payload := map[string]string{"identifier": identifier, "password": password}
	if err := postJSON(ctx, b.Platform(), b.XRPCBase+"/com.atproto.server.createSession", "", payload, &session); err != nil {
		return nil, err
	}
	return &TokenResponse{
		AccessToken:  session.AccessJwt,
		RefreshToken: session.RefreshJwt,
		ExpiresIn:    blueskyAccessTTLSeconds,
	}, nil
}

func (b *Bluesky) FetchIdentity(ctx context.Context, accessToken string) (*Identity, error) {
	var session struct {
		Did    string `json:"did"`
		Handle string `json:"handle"`
	}
	if err := getJSON(ctx, b.Platform(), b.XRPCBase+"/com.atproto.server.getSession", accessToken, &session); err != nil {
		return nil, err
	}
	return &Identity{
		ID:       session.Did,
		Name:     session.Handle,
		Metadata: map[string]string{"handle": session.Handle},
	}, nil
}

// Refresh presents the refresh JWT as the bearer token; refreshSession
// rotates both JWTs.
func (b *Bluesky) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	var session blueskySession
	if err := postJSON(ctx, b.Platform(), b.XRPCBase+"/com.atproto.server.refreshSession", refreshToken, nil, &session); err != nil {
		return nil, err
	}
	return &TokenResponse{
		AccessToken:  session.AccessJwt,
		RefreshToken: session.RefreshJwt,
		ExpiresIn:    blueskyAccessTTLSeconds,
	}, nil
}

type blueskyBlob struct {
	Type     string `json:"$type"`
	Ref      any    `json:"ref"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

// uploadImage pulls the image bytes and pushes them through uploadBlob.
func (b *Bluesky) uploadImage(ctx context.Context, accessToken, mediaURL string) (*blueskyBlob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("media fetch returned %d for %s", resp.StatusCode, mediaURL)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, err
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	upload, err := http.NewRequestWithContext(ctx, http.MethodPost, b.XRPCBase+"/com.atproto.repo.uploadBlob", strings.NewReader(string(raw)))
	if err != nil {
		return nil, err
	}
	upload.Header.Set("Content-Type", contentType)
	upload.Header.Set("Authorization", "Bearer "+accessToken)
	var out struct {
		Blob blueskyBlob `json:"blob"`
	}
	if err := do(b.Platform(), upload, &out); err != nil {
		return nil, err
	}
	return &out.Blob, nil
}

// Publish creates an app.bsky.feed.post record. Image uploads that fail are
// skipped with a warning so one bad asset does not sink the whole post; the
// post only fails when every requested image is lost.
func (b *Bluesky) Publish(ctx context.Context, accessToken string, cred *model.Credential, content model.PublishContent) (*model.PublishResult, error) {
	log := logger.GetLogger()

	text := content.Text
	if content.Link != "" {
		text = strings.TrimSpace(text + " " + content.Link)
	}
	record := map[string]interface{}{
		"$type":     "app.bsky.feed.post",
		"text":      text,
		"createdAt": time.Now().UTC().Format(time.RFC3339),
	}

	if len(content.Media) > 0 {
		images := make([]map[string]interface{}, 0, len(content.Media))
		for _, media := range content.Media {
			blob, err := b.uploadImage(ctx, accessToken, media.URL)
			if err != nil {
				log.WithField("url", media.URL).WithField("error", err.Error()).
					Warn("bluesky image upload failed, posting without it")
				continue
			}
			images = append(images, map[string]interface{}{
				"alt":   "",
				"image": blob,
			})
		}
		if len(images) == 0 {
			return nil, fmt.Errorf("bluesky: all %d image uploads failed", len(content.Media))
		}
		record["embed"] = map[string]interface{}{
			"$type":  "app.bsky.embed.images",
			"images": images,
		}
	}

	payload := map[string]interface{}{
		"repo":       cred.AccountID(),
		"collection": "app.bsky.feed.post",
		"record":     record,
	}
	var data struct {
		URI string `json:"uri"`
		Cid string `json:"cid"`
	}
	if err := postJSON(ctx, b.Platform(), b.XRPCBase+"/com.atproto.repo.createRecord", accessToken, payload, &data); err != nil {
		return nil, err
	}

	// at://did:plc:xyz/app.bsky.feed.post/rkey
	rkey := data.URI
	if idx := strings.LastIndex(data.URI, "/"); idx >= 0 {
		rkey = data.URI[idx+1:]
	}
	handle := cred.Metadata["handle"]
	if handle == "" {
		handle = cred.AccountID()
	}
	return &model.PublishResult{
		PostID:  data.URI,
		PostURL: fmt.Sprintf("https://bsky.app/profile/%s/post/%s", handle, rkey),
	}, nil
}
