//go:build !linux

package transcoder

import (
	"github.com/amankumarsingh77/transcodebot/internal/config"
)

// cgroup confinement is linux-only; elsewhere the limiter is inert.
type limiter struct{}

func newLimiter(_ *config.Config) (*limiter, error) {
	return nil, nil
}

func (l *limiter) Attach(_ int) error { return nil }

func (l *limiter) Close() {}
