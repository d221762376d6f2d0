package platforms

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-querystring/query"

	"social-publisher/domain/model"
	"social-publisher/infrastructure/configuration"
)

// LinkedIn uses space-joined scopes and plain form client authentication.
type LinkedIn struct {
	conf configuration.OAuthClient

	AuthBase string
	TokenURL string
	APIBase  string
}

func NewLinkedIn(conf configuration.OAuthClient) *LinkedIn {
	if len(conf.Scopes) == 0 {
		conf.Scopes = []string{"openid", "profile", "w_member_social"}
	}
	return &LinkedIn{
		conf:     conf,
		AuthBase: "https://www.linkedin.com/oauth/v2/authorization",
		TokenURL: "https://www.linkedin.com/oauth/v2/accessToken",
		APIBase:  "https://api.linkedin.com/v2",
	}
}

func (l *LinkedIn) Platform() model.Platform { return model.PlatformLinkedIn }
func (l *LinkedIn) Configured() bool         { return l.conf.ClientID != "" && l.conf.ClientSecret != "" }
func (l *LinkedIn) UsesPKCE() bool           { return false }

type linkedInAuthParams struct {
	ResponseType string `url:"response_type"`
	ClientID     string `url:"client_id"`
	RedirectURI  string `url:"redirect_uri"`
	State        string `url:"state"`
	Scope        string `url:"scope"`
}

func (l *LinkedIn) BuildAuthURL(state, _ string) (string, error) {
	v, err := query.Values(linkedInAuthParams{
		ResponseType: "code",
		ClientID:     l.conf.ClientID,
		RedirectURI:  l.conf.RedirectURI,
		State:        state,
		Scope:        strings.Join(l.conf.Scopes, " "),
	})
	if err != nil {
		return "", err
	}
	return l.AuthBase + "?" + v.Encode(), nil
}

func (l *LinkedIn) Exchange(ctx context.Context, code, _ string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", l.conf.RedirectURI)
	form.Set("client_id", l.conf.ClientID)
	form.Set("client_secret", l.conf.ClientSecret)
	var data struct {
		AccessToken           string `json:"access_token"`
		ExpiresIn             int64  `json:"expires_in"`
		RefreshToken          string `json:"refresh_token"`
		RefreshTokenExpiresIn int64  `json:"refresh_token_expires_in"`
		Scope                 string `json:"scope"`
	}
	if err := postForm(ctx, l.Platform(), l.TokenURL, form, "", "", &data); err != nil {
		return nil, err
	}
	return &TokenResponse{
		AccessToken:      data.AccessToken,
		RefreshToken:     data.RefreshToken,
		ExpiresIn:        data.ExpiresIn,
		RefreshExpiresIn: data.RefreshTokenExpiresIn,
		Scope:            data.Scope,
	}, nil
}

func (l *LinkedIn) FetchIdentity(ctx context.Context, accessToken string) (*Identity, error) {
	var data struct {
		Sub  string `json:"sub"`
		Name string `json:"name"`
	}
	if err := getJSON(ctx, l.Platform(), l.APIBase+"/userinfo", accessToken, &data); err != nil {
		return nil, err
	}
	return &Identity{ID: data.Sub, Name: data.Name}, nil
}

func (l *LinkedIn) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", l.conf.ClientID)
	form.Set("client_secret", l.conf.ClientSecret)
	var data struct {
		AccessToken           string `json:"access_token"`
		ExpiresIn             int64  `json:"expires_in"`
		RefreshToken          string `json:"refresh_token"`
		RefreshTokenExpiresIn int64  `json:"refresh_token_expires_in"`
	}
	if err := postForm(ctx, l.Platform(), l.TokenURL, form, "", "", &data); err != nil {
		return nil, err
	}
	return &TokenResponse{
		AccessToken:      data.AccessToken,
		RefreshToken:     data.RefreshToken,
		ExpiresIn:        data.ExpiresIn,
		RefreshExpiresIn: data.RefreshTokenExpiresIn,
	}, nil
}

// Publish creates a UGC text/article post as the authenticated member.
func (l *LinkedIn) Publish(ctx context.Context, accessToken string, cred *model.Credential, content model.PublishContent) (*model.PublishResult, error) {
	author := fmt.Sprintf("urn:li:person:%s", cred.AccountID())
	shareContent := map[string]interface{}{
		"shareCommentary":    map[string]string{"text": content.Text},
		"shareMediaCategory": "NONE",
	}
	if content.Link != "" {
		shareContent["shareMediaCategory"] = "ARTICLE"
		shareContent["media"] = []map[string]interface{}{
			{"status": "READY", "originalUrl": content.Link},
		}
	}
	payload := map[string]interface{}{
		"author":         author,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]interface{}{
			"com.linkedin.ugc.ShareContent": shareContent,
		},
		"visibility": map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}
	var data struct {
		ID string `json:"id"`
	}
	if err := postJSON(ctx, l.Platform(), l.APIBase+"/ugcPosts", accessToken, payload, &data); err != nil {
		return nil, err
	}
	return &model.PublishResult{
		PostID:  data.ID,
		PostURL: fmt.Sprintf("https://www.linkedin.com/feed/update/%s", data.ID),
	}, nil
}
