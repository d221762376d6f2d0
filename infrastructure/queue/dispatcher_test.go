package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-publisher/domain/dto"
	"social-publisher/domain/model"
)

// stubExecutor returns scripted results per call.
type stubExecutor struct {
	mu     sync.Mutex
	errs   []error
	calls  int
	result model.PublishResult
}

func (s *stubExecutor) Execute(context.Context, *model.PublishJob) (*model.PublishResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.calls
	s.calls++
	if idx < len(s.errs) && s.errs[idx] != nil {
		return nil, s.errs[idx]
	}
	out := s.result
	return &out, nil
}

func (s *stubExecutor) Enqueue(context.Context, string, model.Platform, *dto.PublishRequest) (*dto.EnqueueResponse, error) {
	panic("not used")
}
func (s *stubExecutor) Status(context.Context, string, int64) (*model.PublishJob, error) {
	panic("not used")
}
func (s *stubExecutor) ListJobs(context.Context, string, int) ([]*model.PublishJob, error) {
	panic("not used")
}

// recordingJobRepo records settle calls.
type recordingJobRepo struct {
	rescheduledAt []time.Time
	reasons       []string
	completed     *model.PublishResult
	failedReason  *string
}

func (r *recordingJobRepo) Insert(context.Context, *model.PublishJob) error { return nil }
func (r *recordingJobRepo) GetByID(context.Context, int64) (*model.PublishJob, error) {
	return nil, errors.New("not used")
}
func (r *recordingJobRepo) ListByUser(context.Context, string, int) ([]*model.PublishJob, error) {
	return nil, nil
}
func (r *recordingJobRepo) FetchDue(context.Context, model.Platform, int) ([]*model.PublishJob, error) {
	return nil, nil
}
func (r *recordingJobRepo) Reschedule(_ context.Context, _ int64, nextAttemptAt time.Time, lastError string) error {
	r.rescheduledAt = append(r.rescheduledAt, nextAttemptAt)
	r.reasons = append(r.reasons, lastError)
	return nil
}
func (r *recordingJobRepo) MarkCompleted(_ context.Context, _ int64, result model.PublishResult) error {
	r.completed = &result
	return nil
}
func (r *recordingJobRepo) MarkFailed(_ context.Context, _ int64, reason string) error {
	r.failedReason = &reason
	return nil
}

type recordingAudit struct {
	entries []*model.PublishAudit
}

func (a *recordingAudit) Append(_ context.Context, entries []*model.PublishAudit) error {
	a.entries = append(a.entries, entries...)
	return nil
}

func fixedNow() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func newTestDispatcher(executor *stubExecutor, jobs *recordingJobRepo, audit *recordingAudit) *Dispatcher {
	d := NewDispatcher(jobs, audit, executor, nil, time.Second, 10)
	d.now = fixedNow
	return d
}

func TestPolicyFor(t *testing.T) {
	fast := PolicyFor(model.PlatformTwitter)
	assert.Equal(t, 3, fast.MaxAttempts)
	assert.Equal(t, 2*time.Second, fast.BaseDelay)
	assert.Zero(t, fast.HardTimeout)

	for _, platform := range []model.Platform{model.PlatformTikTok, model.PlatformYouTube} {
		video := PolicyFor(platform)
		assert.Equal(t, 2, video.MaxAttempts)
		assert.Equal(t, 5*time.Second, video.BaseDelay)
		assert.Equal(t, time.Hour, video.HardTimeout)
	}
}

func TestBackoffDelayDoubles(t *testing.T) {
	policy := BackoffPolicy{MaxAttempts: 3, BaseDelay: 2 * time.Second}
	assert.Equal(t, 2*time.Second, policy.Delay(1))
	assert.Equal(t, 4*time.Second, policy.Delay(2))
	assert.Equal(t, 8*time.Second, policy.Delay(3))
}

func TestProcessJobCompletes(t *testing.T) {
	executor := &stubExecutor{result: model.PublishResult{PostID: "p-1", PostURL: "https://example.com/p-1"}}
	jobs := &recordingJobRepo{}
	audit := &recordingAudit{}
	dispatcher := newTestDispatcher(executor, jobs, audit)

	job := &model.PublishJob{ID: 1, UserID: "user-1", Platform: model.PlatformTwitter, Attempts: 1}
	dispatcher.ProcessJob(context.Background(), job)

	require.NotNil(t, jobs.completed)
	assert.Equal(t, "p-1", jobs.completed.PostID)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, model.JobStatusCompleted, audit.entries[0].Status)
}

func TestProcessJobReschedulesRetryableFailure(t *testing.T) {
	executor := &stubExecutor{errs: []error{errors.New("provider hiccup")}}
	jobs := &recordingJobRepo{}
	dispatcher := newTestDispatcher(executor, jobs, &recordingAudit{})

	job := &model.PublishJob{ID: 2, Platform: model.PlatformTwitter, Attempts: 1}
	dispatcher.ProcessJob(context.Background(), job)

	require.Len(t, jobs.rescheduledAt, 1)
	assert.Equal(t, fixedNow().Add(2*time.Second), jobs.rescheduledAt[0])
	assert.Equal(t, "provider hiccup", jobs.reasons[0])
	assert.Nil(t, jobs.failedReason)
}

func TestProcessJobSecondFailureDoublesBackoff(t *testing.T) {
	executor := &stubExecutor{errs: []error{errors.New("still down")}}
	jobs := &recordingJobRepo{}
	dispatcher := newTestDispatcher(executor, jobs, &recordingAudit{})

	job := &model.PublishJob{ID: 3, Platform: model.PlatformTwitter, Attempts: 2}
	dispatcher.ProcessJob(context.Background(), job)

	require.Len(t, jobs.rescheduledAt, 1)
	assert.Equal(t, fixedNow().Add(4*time.Second), jobs.rescheduledAt[0])
}

func TestProcessJobExhaustedAttemptsFailsTerminally(t *testing.T) {
	executor := &stubExecutor{errs: []error{errors.New("last straw")}}
	jobs := &recordingJobRepo{}
	audit := &recordingAudit{}
	dispatcher := newTestDispatcher(executor, jobs, audit)

	job := &model.PublishJob{ID: 4, Platform: model.PlatformTwitter, Attempts: 3}
	dispatcher.ProcessJob(context.Background(), job)

	require.NotNil(t, jobs.failedReason)
	assert.Equal(t, "last straw", *jobs.failedReason)
	assert.Empty(t, jobs.rescheduledAt)
	assert.Equal(t, model.JobStatusFailed, job.Status)
}

func TestProcessJobTokenFailureNeverRetried(t *testing.T) {
	executor := &stubExecutor{errs: []error{model.ErrRefreshExpired}}
	jobs := &recordingJobRepo{}
	dispatcher := newTestDispatcher(executor, jobs, &recordingAudit{})

	// First attempt, retry budget untouched, yet the failure is terminal.
	job := &model.PublishJob{ID: 5, Platform: model.PlatformTwitter, Attempts: 1}
	dispatcher.ProcessJob(context.Background(), job)

	require.NotNil(t, jobs.failedReason)
	assert.Equal(t, model.ErrRefreshExpired.Error(), *jobs.failedReason)
	assert.Empty(t, jobs.rescheduledAt)
}

func TestProcessJobRefreshProviderFailureNeverRetried(t *testing.T) {
	refreshErr := &model.RefreshFailedError{
		Err: &model.ProviderError{Platform: model.PlatformTwitter, StatusCode: 503, Body: "upstream down"},
	}
	executor := &stubExecutor{errs: []error{refreshErr}}
	jobs := &recordingJobRepo{}
	dispatcher := newTestDispatcher(executor, jobs, &recordingAudit{})

	job := &model.PublishJob{ID: 9, Platform: model.PlatformTwitter, Attempts: 1}
	dispatcher.ProcessJob(context.Background(), job)

	// A provider error on the refresh path is the credential's problem, not the
	// post's; the job fails immediately with the refresh error as its reason.
	require.NotNil(t, jobs.failedReason)
	assert.Equal(t, refreshErr.Error(), *jobs.failedReason)
	assert.Empty(t, jobs.rescheduledAt)
}

func TestProcessJobVideoPlatformCapsAtTwoAttempts(t *testing.T) {
	executor := &stubExecutor{errs: []error{errors.New("transcode stalled")}}
	jobs := &recordingJobRepo{}
	dispatcher := newTestDispatcher(executor, jobs, &recordingAudit{})

	job := &model.PublishJob{ID: 6, Platform: model.PlatformTikTok, Attempts: 2}
	dispatcher.ProcessJob(context.Background(), job)

	require.NotNil(t, jobs.failedReason)
	assert.Empty(t, jobs.rescheduledAt)
}

func TestProcessJobPollTimeoutReasonIsDistinct(t *testing.T) {
	executor := &stubExecutor{errs: []error{model.ErrPollTimeout, model.ErrPollTimeout}}
	jobs := &recordingJobRepo{}
	dispatcher := newTestDispatcher(executor, jobs, &recordingAudit{})

	job := &model.PublishJob{ID: 7, Platform: model.PlatformTikTok, Attempts: 2}
	dispatcher.ProcessJob(context.Background(), job)

	require.NotNil(t, jobs.failedReason)
	assert.Equal(t, model.ErrPollTimeout.Error(), *jobs.failedReason)
}
