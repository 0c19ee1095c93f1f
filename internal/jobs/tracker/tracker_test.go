package tracker

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amankumarsingh77/transcodebot/internal/config"
	"github.com/amankumarsingh77/transcodebot/internal/jobs"
	"github.com/amankumarsingh77/transcodebot/internal/models"
	"github.com/amankumarsingh77/transcodebot/pkg/logger"
)

func newTestTracker(t *testing.T, repo jobs.RecordRepository) jobs.Tracker {
	t.Helper()
	cfg := &config.Config{}
	log := logger.NewApiLogger(cfg)
	log.InitLogger()
	return NewTracker(log, repo)
}

func newTestJob(id string) *models.Job {
	return &models.Job{
		JobID:        id,
		Requester:    "user-1",
		Conversation: "chat-1",
		Source:       models.Source{Kind: models.SourceLocal, Path: "/tmp/in.mp4"},
		Operation:    models.Operation{Kind: models.OpConvert},
	}
}

func TestTracker_CreateAndGet(t *testing.T) {
	tr := newTestTracker(t, nil)

	require.NoError(t, tr.Create(newTestJob("a")))

	got, err := tr.Get("a")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusQueued, got.Status)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = tr.Get("missing")
	assert.ErrorIs(t, err, jobs.ErrNotFound)
}

func TestTracker_HappyPathTransitions(t *testing.T) {
	tr := newTestTracker(t, nil)
	require.NoError(t, tr.Create(newTestJob("a")))

	require.NoError(t, tr.MarkRunning("a"))
	got, _ := tr.Get("a")
	assert.Equal(t, models.JobStatusRunning, got.Status)
	assert.Equal(t, 1, got.Attempt)
	assert.False(t, got.StartedAt.Before(got.CreatedAt))

	require.NoError(t, tr.Complete("a", &models.Result{OutputPath: "/tmp/out.mp4"}, nil))
	got, _ = tr.Get("a")
	assert.Equal(t, models.JobStatusSucceeded, got.Status)
	require.NotNil(t, got.Result)
	assert.False(t, got.FinishedAt.Before(got.StartedAt))
}

func TestTracker_IllegalTransitions(t *testing.T) {
	tr := newTestTracker(t, nil)
	require.NoError(t, tr.Create(newTestJob("a")))

	// Success straight from Queued is not a thing.
	err := tr.Complete("a", &models.Result{}, nil)
	assert.ErrorIs(t, err, jobs.ErrIllegalTransition)

	_, err = tr.NextAttempt("a")
	assert.ErrorIs(t, err, jobs.ErrIllegalTransition)

	require.NoError(t, tr.MarkRunning("a"))
	assert.ErrorIs(t, tr.MarkRunning("a"), jobs.ErrIllegalTransition)

	require.NoError(t, tr.Complete("a", nil, &models.Failure{Kind: models.FailTimeout}))
	assert.ErrorIs(t, tr.Complete("a", &models.Result{}, nil), jobs.ErrIllegalTransition)
}

func TestTracker_FailedFromQueued(t *testing.T) {
	tr := newTestTracker(t, nil)
	require.NoError(t, tr.Create(newTestJob("a")))

	// Workspace exhaustion sinks jobs before they ever dispatch.
	require.NoError(t, tr.Complete("a", nil, &models.Failure{Kind: models.FailResourceExhausted}))

	got, _ := tr.Get("a")
	assert.Equal(t, models.JobStatusFailed, got.Status)
}

func TestTracker_CancelFromQueuedAndRunning(t *testing.T) {
	tr := newTestTracker(t, nil)

	require.NoError(t, tr.Create(newTestJob("a")))
	require.NoError(t, tr.Cancel("a"))
	got, _ := tr.Get("a")
	assert.Equal(t, models.JobStatusCancelled, got.Status)

	// Cancelling a terminal job is a no-op, not an error.
	require.NoError(t, tr.Cancel("a"))

	require.NoError(t, tr.Create(newTestJob("b")))
	require.NoError(t, tr.MarkRunning("b"))
	require.NoError(t, tr.Cancel("b"))
	got, _ = tr.Get("b")
	assert.Equal(t, models.JobStatusCancelled, got.Status)
}

func TestTracker_OnTerminalBeforeTerminality(t *testing.T) {
	tr := newTestTracker(t, nil)
	require.NoError(t, tr.Create(newTestJob("a")))

	var mu sync.Mutex
	var seen []models.JobStatus
	require.NoError(t, tr.OnTerminal("a", func(j models.Job) {
		mu.Lock()
		seen = append(seen, j.Status)
		mu.Unlock()
	}))

	require.NoError(t, tr.MarkRunning("a"))
	require.NoError(t, tr.Complete("a", nil, &models.Failure{Kind: models.FailTimeout}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 1)
	assert.Equal(t, models.JobStatusFailed, seen[0])
}

func TestTracker_OnTerminalAfterTerminalityFiresImmediately(t *testing.T) {
	tr := newTestTracker(t, nil)
	require.NoError(t, tr.Create(newTestJob("a")))
	require.NoError(t, tr.Cancel("a"))

	fired := false
	require.NoError(t, tr.OnTerminal("a", func(j models.Job) {
		fired = true
		assert.Equal(t, models.JobStatusCancelled, j.Status)
	}))
	assert.True(t, fired, "callback must fire synchronously for terminal jobs")
}

func TestTracker_GetReturnsSnapshot(t *testing.T) {
	tr := newTestTracker(t, nil)
	require.NoError(t, tr.Create(newTestJob("a")))

	got, _ := tr.Get("a")
	got.Status = models.JobStatusSucceeded

	again, _ := tr.Get("a")
	assert.Equal(t, models.JobStatusQueued, again.Status)
}

func TestTracker_Evict(t *testing.T) {
	tr := newTestTracker(t, nil)
	require.NoError(t, tr.Create(newTestJob("a")))
	require.NoError(t, tr.Cancel("a"))

	tr.Evict("a")
	_, err := tr.Get("a")
	assert.ErrorIs(t, err, jobs.ErrNotFound)
}

type recordingRepo struct {
	mu    sync.Mutex
	saved []string
}

func (r *recordingRepo) SaveTerminal(_ context.Context, job models.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, job.JobID)
	return nil
}

func (r *recordingRepo) MarkDelivered(_ context.Context, _ string) (bool, error) {
	return true, nil
}

func (r *recordingRepo) GetStatus(_ context.Context, _ string) (models.JobStatus, error) {
	return "", jobs.ErrNotFound
}

func TestTracker_PersistsBeforeNotify(t *testing.T) {
	repo := &recordingRepo{}
	tr := newTestTracker(t, repo)
	require.NoError(t, tr.Create(newTestJob("a")))

	require.NoError(t, tr.OnTerminal("a", func(j models.Job) {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		assert.Contains(t, repo.saved, "a", "record must be persisted before the callback fires")
	}))

	require.NoError(t, tr.MarkRunning("a"))
	require.NoError(t, tr.Complete("a", &models.Result{OutputPath: "/tmp/out"}, nil))
}
