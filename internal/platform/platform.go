package platform

import (
	"context"

	"github.com/pkg/errors"

	"github.com/amankumarsingh77/transcodebot/internal/models"
)

// ErrConversationGone marks a permanent delivery failure: the destination no
// longer exists and retrying cannot help.
var ErrConversationGone = errors.New("platform: conversation gone")

// Error wraps a platform failure with its retry classification.
type Error struct {
	Op        string
	Temporary bool
	Err       error
}

func (e *Error) Error() string {
	return "platform: " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTemporary reports whether the delivery dispatcher should retry.
func IsTemporary(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Temporary
	}
	return false
}

// Client is the seam to the messaging platform. The real long-poll/webhook
// frontend lives outside this service; the pipeline only needs these three
// primitives.
type Client interface {
	// Requests returns a lazy stream of inbound job requests. The stream
	// survives transient transport failures and closes when ctx is done.
	Requests(ctx context.Context) (<-chan models.JobRequest, error)
	SendMedia(ctx context.Context, conversation string, result models.Result, caption string) error
	SendStatus(ctx context.Context, conversation string, text string) error
}
