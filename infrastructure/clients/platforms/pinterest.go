package platforms

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-querystring/query"

	"social-publisher/domain/model"
	"social-publisher/infrastructure/configuration"
)

// Pinterest joins scopes with commas and authenticates the token endpoint
// with HTTP Basic. Every pin needs an image and a board.
type Pinterest struct {
	conf configuration.OAuthClient

	AuthBase string
	APIBase  string
}

func NewPinterest(conf configuration.OAuthClient) *Pinterest {
	if len(conf.Scopes) == 0 {
		conf.Scopes = []string{"boards:read", "pins:read", "pins:write", "user_accounts:read"}
	}
	return &Pinterest{
		conf:     conf,
		AuthBase: "https://www.pinterest.com/oauth/",
		APIBase:  "https://api.pinterest.com/v5",
	}
}

func (p *Pinterest) Platform() model.Platform { return model.PlatformPinterest }
func (p *Pinterest) Configured() bool         { return p.conf.ClientID != "" && p.conf.ClientSecret != "" }
func (p *Pinterest) UsesPKCE() bool           { return false }

type pinterestAuthParams struct {
	ResponseType string `url:"response_type"`
	ClientID     string `url:"client_id"`
	RedirectURI  string `url:"redirect_uri"`
	State        string `url:"state"`
	Scope        string `url:"scope"`
}

func (p *Pinterest) BuildAuthURL(state, _ string) (string, error) {
	v, err := query.Values(pinterestAuthParams{
		ResponseType: "code",
		ClientID:     p.conf.ClientID,
		RedirectURI:  p.conf.RedirectURI,
		State:        state,
		Scope:        strings.Join(p.conf.Scopes, ","),
	})
	if err != nil {
		return "", err
	}
	return p.AuthBase + "?" + v.Encode(), nil
}

func (p *Pinterest) Exchange(ctx context.Context, code, _ string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", p.conf.RedirectURI)
	var data struct {
		AccessToken           string `json:"access_token"`
		RefreshToken          string `json:"refresh_token"`
		ExpiresIn             int64  `json:"expires_in"`
		RefreshTokenExpiresIn int64  `json:"refresh_token_expires_in"`
		Scope                 string `json:"scope"`
	}
	if err := postForm(ctx, p.Platform(), p.APIBase+"/oauth/token", form, p.conf.ClientID, p.conf.ClientSecret, &data); err != nil {
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

func (p *Pinterest) FetchIdentity(ctx context.Context, accessToken string) (*Identity, error) {
	var data struct {
		Username    string `json:"username"`
		ID          string `json:"id"`
		AccountType string `json:"account_type"`
	}
	if err := getJSON(ctx, p.Platform(), p.APIBase+"/user_account", accessToken, &data); err != nil {
		return nil, err
	}
	id := data.ID
	if id == "" {
		id = data.Username
	}
	return &Identity{
		ID:       id,
		Name:     data.Username,
		Metadata: map[string]string{"account_type": data.AccountType},
	}, nil
}

func (p *Pinterest) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	var data struct {
		AccessToken           string `json:"access_token"`
		RefreshToken          string `json:"refresh_token"`
		ExpiresIn             int64  `json:"expires_in"`
		RefreshTokenExpiresIn int64  `json:"refresh_token_expires_in"`
	}
	if err := postForm(ctx, p.Platform(), p.APIBase+"/oauth/token", form, p.conf.ClientID, p.conf.ClientSecret, &data); err != nil {
		return nil, err
	}
	return &TokenResponse{
		AccessToken:      data.AccessToken,
		RefreshToken:     data.RefreshToken,
		ExpiresIn:        data.ExpiresIn,
		RefreshExpiresIn: data.RefreshTokenExpiresIn,
	}, nil
}

// Publish creates a pin on the board named by the payload metadata.
func (p *Pinterest) Publish(ctx context.Context, accessToken string, _ *model.Credential, content model.PublishContent) (*model.PublishResult, error) {
	if len(content.Media) == 0 {
		return nil, errors.New("pinterest: pin requires an image")
	}
	boardID := content.Metadata["board_id"]
	if boardID == "" {
		return nil, errors.New("pinterest: board_id missing from payload metadata")
	}
	payload := map[string]interface{}{
		"board_id":    boardID,
		"title":       content.Title,
		"description": content.Text,
		"media_source": map[string]string{
			"source_type": "image_url",
			"url":         content.Media[0].URL,
		},
	}
	if content.Link != "" {
		payload["link"] = content.Link
	}
	var data struct {
		ID string `json:"id"`
	}
	if err := postJSON(ctx, p.Platform(), p.APIBase+"/pins", accessToken, payload, &data); err != nil {
		return nil, err
	}
	return &model.PublishResult{
		PostID:  data.ID,
		PostURL: fmt.Sprintf("https://www.pinterest.com/pin/%s/", data.ID),
	}, nil
}
