package usecase

import (
	"context"
	"fmt"
	"time"

	"social-publisher/domain/model"
	"social-publisher/infrastructure/clients/platforms"
	"social-publisher/infrastructure/logger"
)

// Polling cadence for container processing. Video takes longer per step and
// longer overall, so it polls slower with a higher ceiling.
const (
	imagePollInterval = 2 * time.Second
	imagePollAttempts = 30
	videoPollInterval = 5 * time.Second
	videoPollAttempts = 60
)

type pollPolicy struct {
	interval    time.Duration
	maxAttempts int
}

func pollPolicyFor(content model.PublishContent) pollPolicy {
	for _, media := range content.Media {
		if media.Type == model.MediaTypeVideo {
			return pollPolicy{interval: videoPollInterval, maxAttempts: videoPollAttempts}
		}
	}
	return pollPolicy{interval: imagePollInterval, maxAttempts: imagePollAttempts}
}

// publishViaContainer drives the three-phase async flow: create container,
// poll until ready, publish, resolve the permalink. It holds no state between
// calls; a retried job starts over with a brand-new container because the old
// one can expire server-side between attempts.
func publishViaContainer(ctx context.Context, pub platforms.AsyncPublisher, accessToken string, cred *model.Credential, content model.PublishContent, policy pollPolicy) (*model.PublishResult, error) {
	containerID, err := pub.CreateContainer(ctx, accessToken, cred, content)
	if err != nil {
		return nil, err
	}

	ready := false
	alreadyPublished := false
	for attempt := 0; attempt < policy.maxAttempts; attempt++ {
		state, reason, err := pub.ContainerStatus(ctx, accessToken, containerID)
		if err != nil {
			return nil, err
		}
		if state == platforms.ContainerFinished {
			ready = true
			break
		}
		if state == platforms.ContainerPublished {
			ready = true
			alreadyPublished = true
			break
		}
		if state == platforms.ContainerError || state == platforms.ContainerExpired {
			return nil, fmt.Errorf("container %s: %s", state, reason)
		}
		// Anything else keeps polling. The wait must suspend, not spin, so
		// sibling jobs on the same worker pool are not starved.
		if err := sleepCtx(ctx, policy.interval); err != nil {
			return nil, err
		}
	}
	if !ready {
		return nil, model.ErrPollTimeout
	}

	postID := containerID
	if !alreadyPublished {
		postID, err = pub.PublishContainer(ctx, accessToken, cred, containerID)
		if err != nil {
			return nil, err
		}
	}

	postURL, err := pub.Permalink(ctx, accessToken, postID)
	if err != nil || postURL == "" {
		if err != nil {
			logger.GetLogger().
				WithField("post_id", postID).
				WithField("error", err.Error()).
				Debug("permalink lookup failed, using fallback")
		}
		postURL = pub.FallbackPermalink(cred, postID)
	}
	return &model.PublishResult{PostID: postID, PostURL: postURL}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
