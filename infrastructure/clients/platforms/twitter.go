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

// Twitter requires PKCE on the authorization flow and HTTP Basic client
// authentication on the token endpoint.
type Twitter struct {
	conf configuration.OAuthClient

	AuthBase string
	TokenURL string
	APIBase  string
}

func NewTwitter(conf configuration.OAuthClient) *Twitter {
	if len(conf.Scopes) == 0 {
		conf.Scopes = []string{"tweet.read", "tweet.write", "users.read", "offline.access"}
	}
	return &Twitter{
		conf:     conf,
		AuthBase: "https://twitter.com/i/oauth2/authorize",
		TokenURL: "https://api.twitter.com/2/oauth2/token",
		APIBase:  "https://api.twitter.com/2",
	}
}

func (t *Twitter) Platform() model.Platform { return model.PlatformTwitter }
func (t *Twitter) Configured() bool         { return t.conf.ClientID != "" && t.conf.ClientSecret != "" }
func (t *Twitter) UsesPKCE() bool           { return true }

type twitterAuthParams struct {
	ResponseType        string `url:"response_type"`
	ClientID            string `url:"client_id"`
	RedirectURI         string `url:"redirect_uri"`
	State               string `url:"state"`
	Scope               string `url:"scope"`
	CodeChallenge       string `url:"code_challenge"`
	CodeChallengeMethod string `url:"code_challenge_method"`
}

func (t *Twitter) BuildAuthURL(state, pkceChallenge string) (string, error) {
	v, err := query.Values(twitterAuthParams{
		ResponseType:        "code",
		ClientID:            t.conf.ClientID,
		RedirectURI:         t.conf.RedirectURI,
		State:               state,
		Scope:               strings.Join(t.conf.Scopes, " "),
		CodeChallenge:       pkceChallenge,
		CodeChallengeMethod: "S256",
	})
	if err != nil {
		return "", err
	}
	return t.AuthBase + "?" + v.Encode(), nil
}

func (t *Twitter) Exchange(ctx context.Context, code, pkceVerifier string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", t.conf.RedirectURI)
	form.Set("code_verifier", pkceVerifier)
	var data struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
		Scope        string `json:"scope"`
	}
	if err := postForm(ctx, t.Platform(), t.TokenURL, form, t.conf.ClientID, t.conf.ClientSecret, &data); err != nil {
		return nil, err
	}
	return &TokenResponse{
		AccessToken:  data.AccessToken,
		RefreshToken: data.RefreshToken,
		ExpiresIn:    data.ExpiresIn,
		Scope:        data.Scope,
	}, nil
}

func (t *Twitter) FetchIdentity(ctx context.Context, accessToken string) (*Identity, error) {
	var data struct {
		Data struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Username string `json:"username"`
		} `json:"data"`
	}
	if err := getJSON(ctx, t.Platform(), t.APIBase+"/users/me", accessToken, &data); err != nil {
		return nil, err
	}
	return &Identity{
		ID:       data.Data.ID,
		Name:     data.Data.Name,
		Metadata: map[string]string{"username": data.Data.Username},
	}, nil
}

func (t *Twitter) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	var data struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := postForm(ctx, t.Platform(), t.TokenURL, form, t.conf.ClientID, t.conf.ClientSecret, &data); err != nil {
		return nil, err
	}
	return &TokenResponse{
		AccessToken:  data.AccessToken,
		RefreshToken: data.RefreshToken,
		ExpiresIn:    data.ExpiresIn,
	}, nil
}

func (t *Twitter) Publish(ctx context.Context, accessToken string, _ *model.Credential, content model.PublishContent) (*model.PublishResult, error) {
	text := content.Text
	if content.Link != "" {
		text = strings.TrimSpace(text + " " + content.Link)
	}
	payload := map[string]interface{}{"text": text}
	var data struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := postJSON(ctx, t.Platform(), t.APIBase+"/tweets", accessToken, payload, &data); err != nil {
		return nil, err
	}
	return &model.PublishResult{
		PostID:  data.Data.ID,
		PostURL: fmt.Sprintf("https://twitter.com/i/web/status/%s", data.Data.ID),
	}, nil
}
