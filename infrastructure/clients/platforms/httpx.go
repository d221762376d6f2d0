package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"social-publisher/domain/model"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// providerError wraps a non-2xx response with its raw body kept verbatim.
func providerError(platform model.Platform, resp *http.Response, body []byte) error {
	return &model.ProviderError{Platform: platform, StatusCode: resp.StatusCode, Body: string(body)}
}

// postForm sends a form-encoded POST and decodes the JSON response into out.
// basicUser/basicPass enable HTTP Basic client authentication when non-empty.
func postForm(ctx context.Context, platform model.Platform, endpoint string, form url.Values, basicUser, basicPass string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if basicUser != "" {
		req.SetBasicAuth(basicUser, basicPass)
	}
	return do(platform, req, out)
}

// postJSON sends a JSON POST with a bearer token and decodes the response.
func postJSON(ctx context.Context, platform model.Platform, endpoint, accessToken string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	return do(platform, req, out)
}

// getJSON sends a GET with a bearer token and decodes the response.
func getJSON(ctx context.Context, platform model.Platform, endpoint, accessToken string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	return do(platform, req, out)
}

func do(platform model.Platform, req *http.Request, out interface{}) error {
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", platform, err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return providerError(platform, resp, body)
	}
	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("%s response parse failed: %w", platform, err)
		}
	}
	return nil
}
