package platforms

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-querystring/query"

	"social-publisher/domain/model"
	"social-publisher/infrastructure/configuration"
)

// Instagram goes through the Facebook Graph API. The code exchange is a
// two-step: short-lived user token, then the long-lived exchange. The
// long-lived token doubles as the refresh token since Graph has no separate
// refresh grant; refreshing re-runs the fb_exchange_token swap.
type Instagram struct {
	conf configuration.OAuthClient

	AuthBase  string
	GraphBase string
}

func NewInstagram(conf configuration.OAuthClient) *Instagram {
	if len(conf.Scopes) == 0 {
		conf.Scopes = []string{
			"instagram_basic", "instagram_content_publish",
			"pages_show_list", "pages_read_engagement",
		}
	}
	return &Instagram{
		conf:      conf,
		AuthBase:  "https://www.facebook.com/v19.0/dialog/oauth",
		GraphBase: "https://graph.facebook.com/v19.0",
	}
}

func (i *Instagram) Platform() model.Platform { return model.PlatformInstagram }
func (i *Instagram) Configured() bool         { return i.conf.ClientID != "" && i.conf.ClientSecret != "" }
func (i *Instagram) UsesPKCE() bool           { return false }

type instagramAuthParams struct {
	ClientID     string `url:"client_id"`
	RedirectURI  string `url:"redirect_uri"`
	State        string `url:"state"`
	ResponseType string `url:"response_type"`
	Scope        string `url:"scope"`
}

func (i *Instagram) BuildAuthURL(state, _ string) (string, error) {
	v, err := query.Values(instagramAuthParams{
		ClientID:     i.conf.ClientID,
		RedirectURI:  i.conf.RedirectURI,
		State:        state,
		ResponseType: "code",
		Scope:        strings.Join(i.conf.Scopes, ","),
	})
	if err != nil {
		return "", err
	}
	return i.AuthBase + "?" + v.Encode(), nil
}

type graphTokenData struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (i *Instagram) longLivedExchange(ctx context.Context, shortToken string) (*graphTokenData, error) {
	endpoint := fmt.Sprintf(
		"%s/oauth/access_token?grant_type=fb_exchange_token&client_id=%s&client_secret=%s&fb_exchange_token=%s",
		i.GraphBase, i.conf.ClientID, i.conf.ClientSecret, shortToken,
	)
	var data graphTokenData
	if err := getJSON(ctx, i.Platform(), endpoint, "", &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (i *Instagram) Exchange(ctx context.Context, code, _ string) (*TokenResponse, error) {
	endpoint := fmt.Sprintf(
		"%s/oauth/access_token?client_id=%s&client_secret=%s&redirect_uri=%s&code=%s",
		i.GraphBase, i.conf.ClientID, i.conf.ClientSecret, i.conf.RedirectURI, code,
	)
	var short graphTokenData
	if err := getJSON(ctx, i.Platform(), endpoint, "", &short); err != nil {
		return nil, err
	}
	long, err := i.longLivedExchange(ctx, short.AccessToken)
	if err != nil {
		return nil, err
	}
	return &TokenResponse{
		AccessToken:  long.AccessToken,
		RefreshToken: long.AccessToken,
		ExpiresIn:    long.ExpiresIn,
	}, nil
}

func (i *Instagram) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	long, err := i.longLivedExchange(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return &TokenResponse{
		AccessToken:  long.AccessToken,
		RefreshToken: long.AccessToken,
		ExpiresIn:    long.ExpiresIn,
	}, nil
}

// FetchIdentity walks the user's pages to the linked Instagram business
// account, which is the id all content calls address.
func (i *Instagram) FetchIdentity(ctx context.Context, accessToken string) (*Identity, error) {
	var pages struct {
		Data []struct {
			ID                       string `json:"id"`
			Name                     string `json:"name"`
			InstagramBusinessAccount *struct {
				ID string `json:"id"`
			} `json:"instagram_business_account"`
		} `json:"data"`
	}
	endpoint := i.GraphBase + "/me/accounts?fields=id,name,instagram_business_account"
	if err := getJSON(ctx, i.Platform(), endpoint, accessToken, &pages); err != nil {
		return nil, err
	}
	for _, page := range pages.Data {
		if page.InstagramBusinessAccount == nil {
			continue
		}
		igUserID := page.InstagramBusinessAccount.ID
		var account struct {
			Username string `json:"username"`
		}
		userEndpoint := fmt.Sprintf("%s/%s?fields=username", i.GraphBase, igUserID)
		if err := getJSON(ctx, i.Platform(), userEndpoint, accessToken, &account); err != nil {
			return nil, err
		}
		return &Identity{
			ID:   igUserID,
			Name: account.Username,
			Metadata: map[string]string{
				"page_id":  page.ID,
				"username": account.Username,
			},
		}, nil
	}
	return nil, errors.New("instagram: no business account linked to any page")
}

// CreateContainer submits the media container. Image posts carry image_url,
// video posts go through the REELS media type.
func (i *Instagram) CreateContainer(ctx context.Context, accessToken string, cred *model.Credential, content model.PublishContent) (string, error) {
	if len(content.Media) == 0 {
		return "", errors.New("instagram: post requires media")
	}
	media := content.Media[0]
	payload := map[string]interface{}{
		"caption": content.Text,
	}
	if media.Type == model.MediaTypeVideo {
		payload["media_type"] = "REELS"
		payload["video_url"] = media.URL
	} else {
		payload["image_url"] = media.URL
	}
	endpoint := fmt.Sprintf("%s/%s/media", i.GraphBase, cred.AccountID())
	var data struct {
		ID string `json:"id"`
	}
	if err := postJSON(ctx, i.Platform(), endpoint, accessToken, payload, &data); err != nil {
		return "", err
	}
	return data.ID, nil
}

func (i *Instagram) ContainerStatus(ctx context.Context, accessToken, containerID string) (ContainerState, string, error) {
	endpoint := fmt.Sprintf("%s/%s?fields=status_code,status", i.GraphBase, containerID)
	var data struct {
		StatusCode string `json:"status_code"`
		Status     string `json:"status"`
	}
	if err := getJSON(ctx, i.Platform(), endpoint, accessToken, &data); err != nil {
		return "", "", err
	}
	switch data.StatusCode {
	case "FINISHED":
		return ContainerFinished, "", nil
	case "PUBLISHED":
		return ContainerPublished, "", nil
	case "ERROR":
		return ContainerError, data.Status, nil
	case "EXPIRED":
		return ContainerExpired, data.Status, nil
	default:
		return ContainerInProgress, "", nil
	}
}

func (i *Instagram) PublishContainer(ctx context.Context, accessToken string, cred *model.Credential, containerID string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/media_publish", i.GraphBase, cred.AccountID())
	payload := map[string]string{"creation_id": containerID}
	var data struct {
		ID string `json:"id"`
	}
	if err := postJSON(ctx, i.Platform(), endpoint, accessToken, payload, &data); err != nil {
		return "", err
	}
	return data.ID, nil
}

func (i *Instagram) Permalink(ctx context.Context, accessToken, postID string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s?fields=permalink", i.GraphBase, postID)
	var data struct {
		Permalink string `json:"permalink"`
	}
	if err := getJSON(ctx, i.Platform(), endpoint, accessToken, &data); err != nil {
		return "", err
	}
	if data.Permalink == "" {
		return "", errors.New("instagram: permalink empty")
	}
	return data.Permalink, nil
}

func (i *Instagram) FallbackPermalink(cred *model.Credential, postID string) string {
	username := cred.Metadata["username"]
	if username == "" {
		return fmt.Sprintf("https://www.instagram.com/p/%s/", postID)
	}
	return fmt.Sprintf("https://www.instagram.com/%s/", username)
}
