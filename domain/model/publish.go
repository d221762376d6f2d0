package model

import "time"

// Publish job statuses. Terminal states are never mutated again.
const (
	JobStatusQueued     = "queued"
	JobStatusInProgress = "in_progress"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// MediaType values accepted in publish payloads.
const (
	MediaTypeImage = "image"
	MediaTypeVideo = "video"
	MediaTypeGif   = "gif"
)

// MediaRef points at a media asset by URL; the platform downloads or ingests it.
type MediaRef struct {
	URL  string `json:"url"`
	Type string `json:"type"` // image | video | gif
}

// PublishContent is the platform-agnostic content model handed to the queue.
// Controller layers map platform-specific DTOs into this shape before enqueue.
type PublishContent struct {
	Text     string            `json:"text"`
	Title    string            `json:"title,omitempty"`
	Link     string            `json:"link,omitempty"`
	Media    []MediaRef        `json:"media,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// PublishResult carries the remote identity of a completed post.
type PublishResult struct {
	PostID  string `json:"post_id"`
	PostURL string `json:"post_url"`
}

// PublishJob is one unit of queued publish work, persisted per enqueue call.
type PublishJob struct {
	ID            int64          `json:"id"`
	UserID        string         `json:"user_id"`
	Platform      Platform       `json:"platform"`
	Payload       PublishContent `json:"payload"`
	Status        string         `json:"status"`
	Attempts      int            `json:"attempts"`
	PostID        *string        `json:"post_id,omitempty"`
	PostURL       *string        `json:"post_url,omitempty"`
	FailureReason *string        `json:"failure_reason,omitempty"`
	NextAttemptAt time.Time      `json:"next_attempt_at"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Terminal reports whether the job reached a final state.
func (j *PublishJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// PublishAudit is an append-only log entry of one publish attempt.
type PublishAudit struct {
	JobID         int64     `json:"job_id" bson:"job_id"`
	UserID        string    `json:"user_id" bson:"user_id"`
	Platform      Platform  `json:"platform" bson:"platform"`
	Attempt       int       `json:"attempt" bson:"attempt"`
	Status        string    `json:"status" bson:"status"`
	PostID        *string   `json:"post_id,omitempty" bson:"post_id,omitempty"`
	FailureReason *string   `json:"failure_reason,omitempty" bson:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
}
