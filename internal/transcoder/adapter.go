package transcoder

import (
	"context"

	"github.com/pkg/errors"

	"github.com/amankumarsingh77/transcodebot/internal/models"
)

var (
	ErrInputTooLarge = errors.New("transcoder: input too large")
	ErrUnsupported   = errors.New("transcoder: unsupported operation")
)

// Outcome is the terminal result of one Execute call. Exactly one of Result,
// Failure or Cancelled is set.
type Outcome struct {
	Result    *models.Result
	Failure   *models.Failure
	Cancelled bool
}

// Adapter runs one transcode attempt inside the job's workspace. Exactly one
// subprocess is spawned per call; concurrent calls for distinct jobs are
// independent. The ctx carries the job's cancellation signal.
type Adapter interface {
	Execute(ctx context.Context, job *models.Job, dir string) Outcome
}

func failure(kind models.FailureKind, msg string) Outcome {
	return Outcome{Failure: &models.Failure{Kind: kind, Message: msg}}
}
