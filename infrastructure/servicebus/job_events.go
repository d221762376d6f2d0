package servicebus

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"

	"social-publisher/infrastructure/logger"
)

type IJobEvents interface {
	SendMessage(ctx context.Context, message []byte) error
}

// JobEvents mirrors publish job lifecycle messages onto a Service Bus queue.
type JobEvents struct {
	client *azservicebus.Client
	queue  string
}

func NewJobEvents(client *azservicebus.Client, queue string) IJobEvents {
	return &JobEvents{client: client, queue: queue}
}

func (j *JobEvents) SendMessage(ctx context.Context, message []byte) error {
	sender, err := j.client.NewSender(j.queue, nil)
	if err != nil {
		logger.GetLogger().
			WithField("error", err).
			Error("Error while making new sender service bus.")
		return err
	}
	defer func() {
		if err := sender.Close(ctx); err != nil {
			logger.GetLogger().
				WithField("error", err).
				Error("Error while closing sender.")
		}
	}()

	if err := sender.SendMessage(ctx, &azservicebus.Message{Body: message}, nil); err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while sending message.")
		return err
	}
	return nil
}
