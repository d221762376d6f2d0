package pubsub

import (
	"context"

	"cloud.google.com/go/pubsub"

	"social-publisher/infrastructure/logger"
)

type IJobEvents interface {
	Publish(ctx context.Context, payload []byte) (string, error)
}

// JobEvents emits publish job lifecycle messages on a Pub/Sub topic.
type JobEvents struct {
	client *pubsub.Client
	topic  string
}

func NewJobEvents(client *pubsub.Client, topic string) IJobEvents {
	return &JobEvents{client: client, topic: topic}
}

func (j *JobEvents) Publish(ctx context.Context, payload []byte) (string, error) {
	topic := j.client.Topic(j.topic)

	// Create the topic if it doesn't exist.
	exists, err := topic.Exists(ctx)
	if err != nil {
		return "", err
	}
	if !exists {
		logger.GetLogger().WithField("topic", j.topic).Info("topic missing, creating it")
		if _, err = j.client.CreateTopic(ctx, j.topic); err != nil {
			return "", err
		}
	}

	serverID, err := topic.Publish(ctx, &pubsub.Message{Data: payload}).Get(ctx)
	if err != nil {
		return "", err
	}
	return serverID, nil
}
