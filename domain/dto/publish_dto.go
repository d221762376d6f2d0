package dto

import "social-publisher/domain/model"

// PublishRequest is the inbound body for POST /api/publish/:platform.
type PublishRequest struct {
	Text     string            `json:"text"`
	Title    string            `json:"title,omitempty"`
	Link     string            `json:"link,omitempty"`
	Media    []MediaRequest    `json:"media,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type MediaRequest struct {
	URL  string `json:"url" binding:"required"`
	Type string `json:"type" binding:"required"`
}

// ToContent maps the request into the generic content model.
func (r *PublishRequest) ToContent() model.PublishContent {
	media := make([]model.MediaRef, 0, len(r.Media))
	for _, m := range r.Media {
		media = append(media, model.MediaRef{URL: m.URL, Type: m.Type})
	}
	return model.PublishContent{
		Text:     r.Text,
		Title:    r.Title,
		Link:     r.Link,
		Media:    media,
		Metadata: r.Metadata,
	}
}

// EnqueueResponse reports the outcome of an enqueue call. JobID is zero when
// validation failed synchronously; callers must check Status, not JobID.
type EnqueueResponse struct {
	JobID  int64  `json:"job_id,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// AuthURLResponse carries the provider consent URL for the frontend redirect.
type AuthURLResponse struct {
	AuthURL string `json:"auth_url"`
	State   string `json:"state"`
}

// ConnectionStatus describes one platform connection for the status endpoint.
type ConnectionStatus struct {
	Platform    string `json:"platform"`
	Connected   bool   `json:"connected"`
	AccountID   string `json:"account_id,omitempty"`
	AccountName string `json:"account_name,omitempty"`
	ExpiresAt   string `json:"expires_at,omitempty"`
}
