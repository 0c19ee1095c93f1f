package jobs

import (
	"context"

	"github.com/amankumarsingh77/transcodebot/internal/models"
)

// RecordRepository persists terminal job records so that a restart mid-flight
// cannot double-deliver. Records expire after a configured TTL.
type RecordRepository interface {
	SaveTerminal(ctx context.Context, job models.Job) error
	// MarkDelivered claims the single delivery attempt for the job. It
	// returns false when another process already claimed it.
	MarkDelivered(ctx context.Context, jobID string) (bool, error)
	GetStatus(ctx context.Context, jobID string) (models.JobStatus, error)
}
