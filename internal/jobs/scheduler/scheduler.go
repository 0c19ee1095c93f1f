package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/amankumarsingh77/transcodebot/internal/config"
	"github.com/amankumarsingh77/transcodebot/internal/jobs"
	"github.com/amankumarsingh77/transcodebot/internal/models"
	"github.com/amankumarsingh77/transcodebot/internal/transcoder"
	"github.com/amankumarsingh77/transcodebot/internal/workspace"
	"github.com/amankumarsingh77/transcodebot/pkg/logger"
	"github.com/amankumarsingh77/transcodebot/pkg/utils"
)

const cpuCheckInterval = 10 * time.Second

// scheduler serializes every admission and dispatch decision behind one
// mutex; counters are never touched anywhere else.
type scheduler struct {
	cfg        *config.Config
	logger     logger.Logger
	tracker    jobs.Tracker
	adapter    transcoder.Adapter
	workspaces *workspace.Manager
	onTerminal func(models.Job)

	mu            sync.Mutex
	queue         []*models.Job
	running       int
	inflightTotal int
	runningByUser map[string]int
	cancels       map[string]context.CancelFunc
	stopped       bool

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup
}

// NewScheduler wires the queue to the transcoder adapter. onTerminal is
// registered for every admitted job before it can reach a terminal state;
// the delivery dispatcher hangs off it.
func NewScheduler(
	cfg *config.Config,
	logger logger.Logger,
	tracker jobs.Tracker,
	adapter transcoder.Adapter,
	workspaces *workspace.Manager,
	onTerminal func(models.Job),
) jobs.Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &scheduler{
		cfg:           cfg,
		logger:        logger,
		tracker:       tracker,
		adapter:       adapter,
		workspaces:    workspaces,
		onTerminal:    onTerminal,
		runningByUser: make(map[string]int),
		cancels:       make(map[string]context.CancelFunc),
		baseCtx:       ctx,
		baseCancel:    cancel,
	}
}

func (s *scheduler) Submit(ctx context.Context, req *models.JobRequest) (string, error) {
	if err := utils.ValidateStruct(ctx, req); err != nil {
		return "", errors.Wrap(jobs.ErrInvalidRequest, err.Error())
	}

	job := &models.Job{
		JobID:        uuid.New().String(),
		Requester:    req.Requester,
		Conversation: req.Conversation,
		Source:       req.Source,
		Operation:    req.Operation,
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return "", errors.Wrap(jobs.ErrOverloaded, "scheduler stopped")
	}
	if s.runningByUser[req.Requester] >= s.cfg.Pipeline.MaxPerUser {
		s.mu.Unlock()
		return "", errors.Wrapf(jobs.ErrOverloaded, "requester %s at concurrency limit", req.Requester)
	}
	if s.inflightTotal >= s.cfg.Pipeline.MaxConcurrent+s.cfg.Pipeline.MaxQueueDepth {
		s.mu.Unlock()
		return "", errors.Wrap(jobs.ErrOverloaded, "queue full")
	}

	if err := s.tracker.Create(job); err != nil {
		s.mu.Unlock()
		return "", err
	}
	if s.onTerminal != nil {
		// Subscribed while still Queued, so terminality can never be missed.
		if err := s.tracker.OnTerminal(job.JobID, func(j models.Job) { go s.onTerminal(j) }); err != nil {
			s.logger.Errorf("scheduler: subscribe terminal for %s: %v", job.JobID, err)
		}
	}

	if _, err := s.workspaces.Allocate(job.JobID); err != nil {
		s.mu.Unlock()
		s.logger.Errorf("scheduler: workspace for %s: %v", job.JobID, err)
		ferr := s.tracker.Complete(job.JobID, nil, &models.Failure{
			Kind:    models.FailResourceExhausted,
			Message: err.Error(),
		})
		if ferr != nil {
			s.logger.Errorf("scheduler: sink %s: %v", job.JobID, ferr)
		}
		return job.JobID, nil
	}

	s.inflightTotal++
	s.queue = append(s.queue, job)
	s.dispatchLocked()
	s.mu.Unlock()

	s.logger.Infof("job %s admitted for %s (%s)", job.JobID, job.Requester, job.Operation.Kind)
	return job.JobID, nil
}

// dispatchLocked promotes eligible queued jobs into free Running slots.
// Eligibility skips requesters already at their Running ceiling without
// letting them block anyone behind them.
func (s *scheduler) dispatchLocked() {
	for s.running < s.cfg.Pipeline.MaxConcurrent {
		if max := s.cfg.Pipeline.MaxCPUPercent; max > 0 {
			if ok, usage := utils.CheckCPUUsage(max); !ok {
				s.logger.Warnf("scheduler: cpu usage %.1f%% too high, delaying dispatch", usage)
				time.AfterFunc(cpuCheckInterval, s.kick)
				return
			}
		}

		idx := -1
		for i, job := range s.queue {
			if s.runningByUser[job.Requester] < s.cfg.Pipeline.MaxPerUser {
				idx = i
				break
			}
		}
		if idx < 0 {
			return
		}

		job := s.queue[idx]
		s.queue = append(s.queue[:idx], s.queue[idx+1:]...)

		if err := s.tracker.MarkRunning(job.JobID); err != nil {
			s.logger.Errorf("scheduler: mark running %s: %v", job.JobID, err)
			continue
		}
		job.Attempt = 1
		s.running++
		s.runningByUser[job.Requester]++

		runCtx, cancel := context.WithCancel(s.baseCtx)
		s.cancels[job.JobID] = cancel
		s.wg.Add(1)
		go s.run(runCtx, job)
	}
}

func (s *scheduler) kick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		s.dispatchLocked()
	}
}

// run owns the job for its whole Running phase. Retryable failures re-run in
// the same slot with a bumped attempt counter, so the job never leaves
// Running and the concurrency ceiling holds.
func (s *scheduler) run(ctx context.Context, job *models.Job) {
	defer s.wg.Done()

	ws, err := s.workspaces.Allocate(job.JobID)
	if err != nil {
		s.completeJob(job, transcoder.Outcome{Failure: &models.Failure{
			Kind:    models.FailResourceExhausted,
			Message: err.Error(),
		}})
		return
	}

	outcome := s.adapter.Execute(ctx, job, ws.Path())
	for outcome.Failure != nil && outcome.Failure.Kind.Retryable() && job.Attempt < s.cfg.Pipeline.MaxAttempts {
		attempt, aerr := s.tracker.NextAttempt(job.JobID)
		if aerr != nil {
			s.logger.Errorf("scheduler: bump attempt for %s: %v", job.JobID, aerr)
			break
		}
		job.Attempt = attempt
		s.logger.Infof("job %s retrying, attempt %d after %s", job.JobID, attempt, outcome.Failure.Kind)
		outcome = s.adapter.Execute(ctx, job, ws.Path())
	}

	s.completeJob(job, outcome)
}

func (s *scheduler) completeJob(job *models.Job, outcome transcoder.Outcome) {
	var err error
	switch {
	case outcome.Cancelled:
		err = s.tracker.Cancel(job.JobID)
	case outcome.Result != nil:
		err = s.tracker.Complete(job.JobID, outcome.Result, nil)
	default:
		failure := outcome.Failure
		if failure == nil {
			failure = &models.Failure{Kind: models.FailInternal, Message: "adapter returned empty outcome"}
		}
		err = s.tracker.Complete(job.JobID, nil, failure)
	}
	if err != nil {
		s.logger.Errorf("scheduler: complete %s: %v", job.JobID, err)
	}

	s.mu.Lock()
	s.running--
	s.decUserLocked(s.runningByUser, job.Requester)
	s.inflightTotal--
	delete(s.cancels, job.JobID)
	if !s.stopped {
		s.dispatchLocked()
	}
	s.mu.Unlock()
}

func (s *scheduler) Cancel(jobID string) error {
	s.mu.Lock()
	for i, job := range s.queue {
		if job.JobID == jobID {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			s.inflightTotal--
			s.mu.Unlock()
			// Queued cancel is immediate; no subprocess was ever spawned.
			return s.tracker.Cancel(jobID)
		}
	}
	cancel, ok := s.cancels[jobID]
	s.mu.Unlock()

	if ok {
		// Cooperative: the adapter observes the context and tears down the
		// subprocess; the worker records Cancelled on its way out.
		cancel()
		return nil
	}
	if _, err := s.tracker.Get(jobID); err != nil {
		return err
	}
	return nil
}

func (s *scheduler) Stats() jobs.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return jobs.Stats{
		Queued:  len(s.queue),
		Running: s.running,
	}
}

func (s *scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.baseCancel()
	s.wg.Wait()
}

func (s *scheduler) decUserLocked(m map[string]int, requester string) {
	m[requester]--
	if m[requester] <= 0 {
		delete(m, requester)
	}
}
