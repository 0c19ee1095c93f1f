package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/amankumarsingh77/transcodebot/internal/jobs"
	"github.com/amankumarsingh77/transcodebot/internal/models"
	"github.com/amankumarsingh77/transcodebot/pkg/logger"
)

const persistTimeout = 5 * time.Second

type record struct {
	job       *models.Job
	callbacks []func(models.Job)
}

type jobTracker struct {
	logger logger.Logger
	repo   jobs.RecordRepository

	mu   sync.Mutex
	jobs map[string]*record
}

// NewTracker builds the in-memory lifecycle tracker. repo may be nil, in
// which case terminal records are not persisted.
func NewTracker(logger logger.Logger, repo jobs.RecordRepository) jobs.Tracker {
	return &jobTracker{
		logger: logger,
		repo:   repo,
		jobs:   make(map[string]*record),
	}
}

func (t *jobTracker) Create(job *models.Job) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.jobs[job.JobID]; ok {
		return errors.Errorf("job %s already tracked", job.JobID)
	}
	job.Status = models.JobStatusQueued
	job.CreatedAt = time.Now()
	// Own copy: the caller keeps its pointer, the tracker never shares writes.
	owned := *job
	t.jobs[job.JobID] = &record{job: &owned}
	return nil
}

func (t *jobTracker) MarkRunning(jobID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, err := t.get(jobID)
	if err != nil {
		return err
	}
	if rec.job.Status != models.JobStatusQueued {
		return errors.Wrapf(jobs.ErrIllegalTransition, "%s -> %s", rec.job.Status, models.JobStatusRunning)
	}
	rec.job.Status = models.JobStatusRunning
	rec.job.StartedAt = time.Now()
	rec.job.Attempt = 1
	return nil
}

func (t *jobTracker) NextAttempt(jobID string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, err := t.get(jobID)
	if err != nil {
		return 0, err
	}
	if rec.job.Status != models.JobStatusRunning {
		return 0, errors.Wrapf(jobs.ErrIllegalTransition, "attempt bump while %s", rec.job.Status)
	}
	rec.job.Attempt++
	return rec.job.Attempt, nil
}

func (t *jobTracker) Complete(jobID string, result *models.Result, failure *models.Failure) error {
	t.mu.Lock()
	rec, err := t.get(jobID)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	if rec.job.Status.Terminal() {
		t.mu.Unlock()
		return errors.Wrapf(jobs.ErrIllegalTransition, "%s is already terminal", rec.job.Status)
	}
	switch {
	case result != nil:
		if rec.job.Status != models.JobStatusRunning {
			t.mu.Unlock()
			return errors.Wrapf(jobs.ErrIllegalTransition, "%s -> %s", rec.job.Status, models.JobStatusSucceeded)
		}
		rec.job.Status = models.JobStatusSucceeded
		rec.job.Result = result
	case failure != nil:
		// Failed is reachable from Queued as well: workspace allocation can
		// sink a job before it ever dispatches.
		rec.job.Status = models.JobStatusFailed
		rec.job.Failure = failure
	default:
		t.mu.Unlock()
		return errors.New("complete requires a result or a failure")
	}
	t.finishLocked(rec)
	snapshot, callbacks := t.takeTerminalLocked(rec)
	t.mu.Unlock()

	t.notify(snapshot, callbacks)
	return nil
}

func (t *jobTracker) Cancel(jobID string) error {
	t.mu.Lock()
	rec, err := t.get(jobID)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	if rec.job.Status.Terminal() {
		// Cancelling a terminal job is a no-op.
		t.mu.Unlock()
		return nil
	}
	rec.job.Status = models.JobStatusCancelled
	t.finishLocked(rec)
	snapshot, callbacks := t.takeTerminalLocked(rec)
	t.mu.Unlock()

	t.notify(snapshot, callbacks)
	return nil
}

func (t *jobTracker) Get(jobID string) (models.Job, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, err := t.get(jobID)
	if err != nil {
		return models.Job{}, err
	}
	return *rec.job, nil
}

func (t *jobTracker) OnTerminal(jobID string, fn func(models.Job)) error {
	t.mu.Lock()
	rec, err := t.get(jobID)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	if !rec.job.Status.Terminal() {
		rec.callbacks = append(rec.callbacks, fn)
		t.mu.Unlock()
		return nil
	}
	snapshot := *rec.job
	t.mu.Unlock()

	fn(snapshot)
	return nil
}

func (t *jobTracker) Evict(jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.jobs, jobID)
}

func (t *jobTracker) get(jobID string) (*record, error) {
	rec, ok := t.jobs[jobID]
	if !ok {
		return nil, errors.Wrap(jobs.ErrNotFound, jobID)
	}
	return rec, nil
}

func (t *jobTracker) finishLocked(rec *record) {
	rec.job.FinishedAt = time.Now()
}

func (t *jobTracker) takeTerminalLocked(rec *record) (models.Job, []func(models.Job)) {
	callbacks := rec.callbacks
	rec.callbacks = nil
	return *rec.job, callbacks
}

// notify persists the terminal record before any subscriber hears about it,
// then fires each callback exactly once.
func (t *jobTracker) notify(snapshot models.Job, callbacks []func(models.Job)) {
	if t.repo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := t.repo.SaveTerminal(ctx, snapshot); err != nil {
			t.logger.Errorf("tracker: persist terminal record for %s: %v", snapshot.JobID, err)
		}
	}
	for _, fn := range callbacks {
		fn(snapshot)
	}
}
