package jobs

import (
	"context"

	"github.com/amankumarsingh77/transcodebot/internal/models"
)

// Stats is a point-in-time view of the pipeline, exposed on the health
// endpoint.
type Stats struct {
	Queued  int `json:"queued"`
	Running int `json:"running"`
}

// Scheduler admits requests, enforces the concurrency ceilings and dispatches
// queued jobs FIFO as slots free up.
type Scheduler interface {
	Submit(ctx context.Context, req *models.JobRequest) (string, error)
	Cancel(jobID string) error
	Stats() Stats
	Stop()
}
