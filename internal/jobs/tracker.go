package jobs

import "github.com/amankumarsingh77/transcodebot/internal/models"

// Tracker owns every job record and is the only component allowed to mutate
// job status. All reads come back as value snapshots.
type Tracker interface {
	Create(job *models.Job) error
	MarkRunning(jobID string) error
	NextAttempt(jobID string) (int, error)
	Complete(jobID string, result *models.Result, failure *models.Failure) error
	Cancel(jobID string) error
	Get(jobID string) (models.Job, error)
	// OnTerminal registers fn for the job's terminal snapshot. If the job is
	// already terminal the callback fires synchronously before OnTerminal
	// returns; otherwise it fires exactly once on the terminal transition.
	OnTerminal(jobID string, fn func(models.Job)) error
	Evict(jobID string)
}
