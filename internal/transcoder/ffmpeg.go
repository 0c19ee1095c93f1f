package transcoder

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"

	"github.com/amankumarsingh77/transcodebot/internal/config"
	"github.com/amankumarsingh77/transcodebot/internal/models"
	"github.com/amankumarsingh77/transcodebot/pkg/logger"
)

const stderrTailBytes = 4 << 10

type ffmpegAdapter struct {
	cfg     *config.Config
	logger  logger.Logger
	fetcher *Fetcher
	limits  *limiter
}

// NewFFmpegAdapter builds the production adapter around the ffmpeg binary
// named in the config. s3Client may be nil when no s3 sources are expected.
func NewFFmpegAdapter(cfg *config.Config, logger logger.Logger, s3Client *s3.Client) Adapter {
	lim, err := newLimiter(cfg)
	if err != nil {
		logger.Warnf("transcoder: cgroup limits unavailable: %v", err)
	}
	return &ffmpegAdapter{
		cfg:     cfg,
		logger:  logger,
		fetcher: NewFetcher(cfg.Transcoder.MaxInputBytes, s3Client),
		limits:  lim,
	}
}

func (f *ffmpegAdapter) Execute(ctx context.Context, job *models.Job, dir string) Outcome {
	outName, err := outputName(job.Operation)
	if err != nil {
		return failure(models.FailUnsupportedOperation, fmt.Sprintf("operation %q not supported", job.Operation.Kind))
	}
	outputPath := filepath.Join(dir, outName)

	inputPath, err := f.fetcher.Fetch(ctx, job.Source, dir)
	if err != nil {
		return f.fetchFailure(ctx, err)
	}

	if max := f.cfg.Transcoder.MaxInputSeconds; max > 0 {
		if duration, perr := probeDuration(ctx, f.cfg.Transcoder.FFprobeBin, inputPath); perr == nil && duration > max {
			return failure(models.FailInputTooLarge, fmt.Sprintf("input duration %.0fs exceeds limit %.0fs", duration, max))
		}
	}

	args, err := buildArgs(job.Operation, inputPath, outputPath)
	if err != nil {
		return failure(models.FailUnsupportedOperation, fmt.Sprintf("operation %q not supported", job.Operation.Kind))
	}

	if ctx.Err() != nil {
		// Cancel observed before the subprocess is spawned.
		return Outcome{Cancelled: true}
	}

	runCtx, cancel := context.WithTimeout(ctx, f.cfg.Transcoder.SubprocessTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, f.cfg.Transcoder.FFmpegBin, args...)
	cmd.Dir = dir
	tail := newTailWriter(stderrTailBytes)
	cmd.Stderr = tail
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = f.cfg.Transcoder.KillGracePeriod

	if err := cmd.Start(); err != nil {
		return failure(models.FailInternal, fmt.Sprintf("start %s: %v", f.cfg.Transcoder.FFmpegBin, err))
	}
	if err := f.limits.Attach(cmd.Process.Pid); err != nil {
		f.logger.Warnf("transcoder: attach pid %d to cgroup: %v", cmd.Process.Pid, err)
	}

	err = cmd.Wait()
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{Cancelled: true}
		}
		if runCtx.Err() == context.DeadlineExceeded {
			return failure(models.FailTimeout, fmt.Sprintf("transcode exceeded %s", f.cfg.Transcoder.SubprocessTimeout))
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Outcome{Failure: &models.Failure{
				Kind:       models.FailTranscodeFailed,
				Message:    fmt.Sprintf("%s exited with code %d", f.cfg.Transcoder.FFmpegBin, exitErr.ExitCode()),
				ExitCode:   exitErr.ExitCode(),
				StderrTail: tail.String(),
			}}
		}
		return failure(models.FailInternal, err.Error())
	}

	info, err := os.Stat(outputPath)
	if err != nil || info.Size() == 0 {
		// Exit 0 with no usable output is a known failure mode of external
		// tools, never a success.
		return Outcome{Failure: &models.Failure{
			Kind:       models.FailCorruptOutput,
			Message:    "transcoder exited cleanly but produced no output",
			StderrTail: tail.String(),
		}}
	}

	result := &models.Result{
		OutputPath: outputPath,
		SizeBytes:  info.Size(),
	}
	if duration, perr := probeDuration(ctx, f.cfg.Transcoder.FFprobeBin, outputPath); perr == nil {
		result.DurationSeconds = duration
	}
	if format, perr := probeFormat(ctx, f.cfg.Transcoder.FFprobeBin, outputPath); perr == nil {
		result.Format = format
	}
	return Outcome{Result: result}
}

func (f *ffmpegAdapter) fetchFailure(ctx context.Context, err error) Outcome {
	switch {
	case ctx.Err() == context.Canceled:
		return Outcome{Cancelled: true}
	case errors.Is(err, ErrInputTooLarge):
		return failure(models.FailInputTooLarge, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return failure(models.FailTimeout, err.Error())
	}
	return failure(models.FailInternal, err.Error())
}

// tailWriter keeps the last max bytes written to it.
type tailWriter struct {
	max int
	buf []byte
}

func newTailWriter(max int) *tailWriter {
	return &tailWriter{max: max}
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	if len(w.buf) > w.max {
		w.buf = w.buf[len(w.buf)-w.max:]
	}
	return len(p), nil
}

func (w *tailWriter) String() string {
	return string(w.buf)
}
