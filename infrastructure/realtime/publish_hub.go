package realtime

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"social-publisher/domain/model"
)

// JobStatusEvent is the SSE payload for publish job status updates.
type JobStatusEvent struct {
	Type     string  `json:"type"`
	JobID    int64   `json:"job_id"`
	Platform string  `json:"platform"`
	Status   string  `json:"status"`
	PostURL  *string `json:"post_url,omitempty"`
	Error    *string `json:"error,omitempty"`
}

// Hub maintains per-user subscribers listening for job status events.
type Hub struct {
	mu    sync.RWMutex
	users map[string]map[chan JobStatusEvent]struct{}
}

func NewPublishHub() *Hub {
	return &Hub{users: make(map[string]map[chan JobStatusEvent]struct{})}
}

// Serve registers an SSE stream for the authenticated user (user_id set by middleware).
func (h *Hub) Serve(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.Status(http.StatusUnauthorized)
		return
	}
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // disable nginx buffering

	ch := make(chan JobStatusEvent, 8)
	h.addSubscriber(userID, ch)
	defer h.removeSubscriber(userID, ch)

	// Initial comment to keep connection open
	_, _ = c.Writer.Write([]byte(":ok\n\n"))
	c.Writer.Flush()

	for {
		select {
		case evt := <-ch:
			data, _ := json.Marshal(evt)
			_, _ = c.Writer.Write([]byte("event: publish_status\n"))
			_, _ = c.Writer.Write([]byte("data: "))
			_, _ = c.Writer.Write(data)
			_, _ = c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}

func (h *Hub) addSubscriber(userID string, ch chan JobStatusEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.users[userID] == nil {
		h.users[userID] = make(map[chan JobStatusEvent]struct{})
	}
	h.users[userID][ch] = struct{}{}
}

func (h *Hub) removeSubscriber(userID string, ch chan JobStatusEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs := h.users[userID]; subs != nil {
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(h.users, userID)
		}
	}
}

// BroadcastJobStatus broadcasts to all subscribers of the job's owner.
func (h *Hub) BroadcastJobStatus(job *model.PublishJob) {
	if job == nil {
		return
	}
	evt := JobStatusEvent{
		Type:     "publish_status",
		JobID:    job.ID,
		Platform: string(job.Platform),
		Status:   job.Status,
		PostURL:  job.PostURL,
		Error:    job.FailureReason,
	}
	h.mu.RLock()
	subs := h.users[job.UserID]
	for ch := range subs {
		select { // non-blocking
		case ch <- evt:
		default:
		}
	}
	h.mu.RUnlock()
}
