package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-publisher/domain/model"
	"social-publisher/infrastructure/clients/platforms"
)

// fakeAsyncPublisher replays a scripted sequence of container states.
type fakeAsyncPublisher struct {
	states       []platforms.ContainerState
	reason       string
	createCalls  int
	statusCalls  int
	publishCalls int
	permalinkErr error
	permalink    string
	createErr    error
	publishedID  string
}

func (f *fakeAsyncPublisher) CreateContainer(context.Context, string, *model.Credential, model.PublishContent) (string, error) {
	f.createCalls++
	if f.createErr != nil {
		return "", f.createErr
	}
	return "container-1", nil
}

func (f *fakeAsyncPublisher) ContainerStatus(context.Context, string, string) (platforms.ContainerState, string, error) {
	idx := f.statusCalls
	f.statusCalls++
	if idx >= len(f.states) {
		return platforms.ContainerInProgress, "", nil
	}
	return f.states[idx], f.reason, nil
}

func (f *fakeAsyncPublisher) PublishContainer(context.Context, string, *model.Credential, string) (string, error) {
	f.publishCalls++
	if f.publishedID != "" {
		return f.publishedID, nil
	}
	return "post-1", nil
}

func (f *fakeAsyncPublisher) Permalink(context.Context, string, string) (string, error) {
	if f.permalinkErr != nil {
		return "", f.permalinkErr
	}
	return f.permalink, nil
}

func (f *fakeAsyncPublisher) FallbackPermalink(*model.Credential, string) string {
	return "https://example.com/fallback"
}

var fastPolicy = pollPolicy{interval: time.Millisecond, maxAttempts: 30}

func TestPublishViaContainerProceedsAfterFinished(t *testing.T) {
	pub := &fakeAsyncPublisher{
		states:    []platforms.ContainerState{platforms.ContainerInProgress, platforms.ContainerInProgress, platforms.ContainerFinished},
		permalink: "https://example.com/p/post-1",
	}
	cred := &model.Credential{UserID: "user-1"}

	result, err := publishViaContainer(context.Background(), pub, "at", cred, model.PublishContent{}, fastPolicy)
	require.NoError(t, err)
	assert.Equal(t, "post-1", result.PostID)
	assert.Equal(t, "https://example.com/p/post-1", result.PostURL)
	assert.Equal(t, 3, pub.statusCalls)
	assert.Equal(t, 1, pub.publishCalls)
}

func TestPublishViaContainerAlreadyPublishedShortCircuits(t *testing.T) {
	pub := &fakeAsyncPublisher{
		states:    []platforms.ContainerState{platforms.ContainerPublished},
		permalink: "https://example.com/p/container-1",
	}

	result, err := publishViaContainer(context.Background(), pub, "at", &model.Credential{}, model.PublishContent{}, fastPolicy)
	require.NoError(t, err)
	assert.Equal(t, "container-1", result.PostID)
	assert.Zero(t, pub.publishCalls)
}

func TestPublishViaContainerFailsImmediatelyOnError(t *testing.T) {
	pub := &fakeAsyncPublisher{
		states: []platforms.ContainerState{platforms.ContainerInProgress, platforms.ContainerError},
		reason: "unsupported codec",
	}

	_, err := publishViaContainer(context.Background(), pub, "at", &model.Credential{}, model.PublishContent{}, fastPolicy)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported codec")
	assert.NotErrorIs(t, err, model.ErrPollTimeout)
	assert.Equal(t, 2, pub.statusCalls)
}

func TestPublishViaContainerExpiredFails(t *testing.T) {
	pub := &fakeAsyncPublisher{
		states: []platforms.ContainerState{platforms.ContainerExpired},
		reason: "container expired",
	}

	_, err := publishViaContainer(context.Background(), pub, "at", &model.Credential{}, model.PublishContent{}, fastPolicy)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestPublishViaContainerStuckYieldsTimeout(t *testing.T) {
	pub := &fakeAsyncPublisher{} // always in_progress
	policy := pollPolicy{interval: time.Millisecond, maxAttempts: 5}

	_, err := publishViaContainer(context.Background(), pub, "at", &model.Credential{}, model.PublishContent{}, policy)
	require.ErrorIs(t, err, model.ErrPollTimeout)
	assert.Equal(t, 5, pub.statusCalls)
	assert.Zero(t, pub.publishCalls)
}

func TestPublishViaContainerFallbackPermalink(t *testing.T) {
	pub := &fakeAsyncPublisher{
		states:       []platforms.ContainerState{platforms.ContainerFinished},
		permalinkErr: errors.New("permalink unsupported"),
	}

	result, err := publishViaContainer(context.Background(), pub, "at", &model.Credential{}, model.PublishContent{}, fastPolicy)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/fallback", result.PostURL)
}

func TestPublishViaContainerCancelledBetweenPolls(t *testing.T) {
	pub := &fakeAsyncPublisher{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := publishViaContainer(ctx, pub, "at", &model.Credential{}, model.PublishContent{}, fastPolicy)
	require.ErrorIs(t, err, context.Canceled)
}

func TestPollPolicyFor(t *testing.T) {
	video := model.PublishContent{Media: []model.MediaRef{{URL: "u", Type: model.MediaTypeVideo}}}
	image := model.PublishContent{Media: []model.MediaRef{{URL: "u", Type: model.MediaTypeImage}}}

	assert.Equal(t, pollPolicy{interval: videoPollInterval, maxAttempts: videoPollAttempts}, pollPolicyFor(video))
	assert.Equal(t, pollPolicy{interval: imagePollInterval, maxAttempts: imagePollAttempts}, pollPolicyFor(image))
	assert.Equal(t, pollPolicy{interval: imagePollInterval, maxAttempts: imagePollAttempts}, pollPolicyFor(model.PublishContent{}))
}
