package events

import (
	"context"
	"encoding/json"
	"time"

	"social-publisher/domain/model"
	"social-publisher/infrastructure/logger"
	"social-publisher/infrastructure/pubsub"
	"social-publisher/infrastructure/realtime"
	"social-publisher/infrastructure/servicebus"
)

// JobEvent is the wire shape emitted on every job status transition.
type JobEvent struct {
	JobID    int64     `json:"job_id"`
	UserID   string    `json:"user_id"`
	Platform string    `json:"platform"`
	Status   string    `json:"status"`
	Attempt  int       `json:"attempt"`
	PostURL  string    `json:"post_url,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	At       time.Time `json:"at"`
}

type INotifier interface {
	JobTransition(ctx context.Context, job *model.PublishJob)
}

// Notifier fans job transitions out to the optional sinks. Any sink may be
// nil; a missing broker never blocks the publish pipeline, and sink failures
// are logged, not propagated.
type Notifier struct {
	hub        *realtime.Hub
	pubsub     pubsub.IJobEvents
	servicebus servicebus.IJobEvents
}

func NewNotifier(hub *realtime.Hub, ps pubsub.IJobEvents, sb servicebus.IJobEvents) *Notifier {
	return &Notifier{hub: hub, pubsub: ps, servicebus: sb}
}

func (n *Notifier) JobTransition(ctx context.Context, job *model.PublishJob) {
	if n == nil || job == nil {
		return
	}
	if n.hub != nil {
		n.hub.BroadcastJobStatus(job)
	}
	if n.pubsub == nil && n.servicebus == nil {
		return
	}

	event := JobEvent{
		JobID:    job.ID,
		UserID:   job.UserID,
		Platform: string(job.Platform),
		Status:   job.Status,
		Attempt:  job.Attempts,
		At:       time.Now().UTC(),
	}
	if job.PostURL != nil {
		event.PostURL = *job.PostURL
	}
	if job.FailureReason != nil {
		event.Reason = *job.FailureReason
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}

	if n.pubsub != nil {
		if _, err := n.pubsub.Publish(ctx, payload); err != nil {
			logger.GetLogger().WithField("job_id", job.ID).WithField("error", err.Error()).
				Warn("pubsub job event failed")
		}
	}
	if n.servicebus != nil {
		if err := n.servicebus.SendMessage(ctx, payload); err != nil {
			logger.GetLogger().WithField("job_id", job.ID).WithField("error", err.Error()).
				Warn("service bus job event failed")
		}
	}
}
