//go:build linux || darwin

package transcoder

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amankumarsingh77/transcodebot/internal/config"
	"github.com/amankumarsingh77/transcodebot/internal/models"
	"github.com/amankumarsingh77/transcodebot/pkg/logger"
)

// writeScript drops an executable shell stub standing in for ffmpeg or
// ffprobe so subprocess handling can be tested without real binaries.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func newTestAdapter(t *testing.T, mutate func(*config.Config)) (*ffmpegAdapter, string) {
	t.Helper()
	binDir := t.TempDir()
	cfg := &config.Config{}
	cfg.Transcoder.FFmpegBin = filepath.Join(binDir, "ffmpeg")
	cfg.Transcoder.FFprobeBin = filepath.Join(binDir, "ffprobe")
	cfg.Transcoder.SubprocessTimeout = 10 * time.Second
	cfg.Transcoder.KillGracePeriod = time.Second
	cfg.Transcoder.MaxInputBytes = 1 << 20
	if mutate != nil {
		mutate(cfg)
	}

	log := logger.NewApiLogger(cfg)
	log.InitLogger()
	return NewFFmpegAdapter(cfg, log, nil).(*ffmpegAdapter), binDir
}

func testJob(t *testing.T, dir string, op models.Operation) *models.Job {
	t.Helper()
	input := filepath.Join(dir, "source.mp4")
	require.NoError(t, os.WriteFile(input, bytes.Repeat([]byte("x"), 64), 0o644))
	return &models.Job{
		JobID:     "job-1",
		Source:    models.Source{Kind: models.SourceLocal, Path: input},
		Operation: op,
	}
}

func TestFFmpegAdapter_Success(t *testing.T) {
	adapter, binDir := newTestAdapter(t, nil)
	writeScript(t, binDir, "ffmpeg", `for a; do out=$a; done
echo encoded > "$out"
`)
	writeScript(t, binDir, "ffprobe", `case "$*" in
  *format=duration*) echo 12.5 ;;
  *format_name*) echo mov,mp4,m4a ;;
esac
`)

	dir := t.TempDir()
	job := testJob(t, dir, models.Operation{Kind: models.OpConvert, TargetFormat: "mp4"})

	out := adapter.Execute(context.Background(), job, dir)
	require.Nil(t, out.Failure, "unexpected failure: %+v", out.Failure)
	require.False(t, out.Cancelled)
	require.NotNil(t, out.Result)
	assert.Equal(t, filepath.Join(dir, "output.mp4"), out.Result.OutputPath)
	assert.Greater(t, out.Result.SizeBytes, int64(0))
	assert.Equal(t, 12.5, out.Result.DurationSeconds)
	assert.Equal(t, "mov", out.Result.Format)
}

func TestFFmpegAdapter_NonZeroExit(t *testing.T) {
	adapter, binDir := newTestAdapter(t, nil)
	writeScript(t, binDir, "ffmpeg", `echo "Invalid data found when processing input" >&2
exit 3
`)

	dir := t.TempDir()
	job := testJob(t, dir, models.Operation{Kind: models.OpConvert})

	out := adapter.Execute(context.Background(), job, dir)
	require.NotNil(t, out.Failure)
	assert.Equal(t, models.FailTranscodeFailed, out.Failure.Kind)
	assert.Equal(t, 3, out.Failure.ExitCode)
	assert.Contains(t, out.Failure.StderrTail, "Invalid data found")
}

func TestFFmpegAdapter_CleanExitNoOutput(t *testing.T) {
	adapter, binDir := newTestAdapter(t, nil)
	writeScript(t, binDir, "ffmpeg", "exit 0\n")

	dir := t.TempDir()
	job := testJob(t, dir, models.Operation{Kind: models.OpConvert})

	out := adapter.Execute(context.Background(), job, dir)
	require.NotNil(t, out.Failure)
	assert.Equal(t, models.FailCorruptOutput, out.Failure.Kind)
}

func TestFFmpegAdapter_Timeout(t *testing.T) {
	adapter, binDir := newTestAdapter(t, func(cfg *config.Config) {
		cfg.Transcoder.SubprocessTimeout = 100 * time.Millisecond
	})
	writeScript(t, binDir, "ffmpeg", "exec sleep 5\n")

	dir := t.TempDir()
	job := testJob(t, dir, models.Operation{Kind: models.OpConvert})

	start := time.Now()
	out := adapter.Execute(context.Background(), job, dir)
	require.NotNil(t, out.Failure)
	assert.Equal(t, models.FailTimeout, out.Failure.Kind)
	assert.Less(t, time.Since(start), 3*time.Second, "subprocess was not torn down promptly")
}

func TestFFmpegAdapter_CancelBeforeSpawn(t *testing.T) {
	adapter, binDir := newTestAdapter(t, nil)
	marker := filepath.Join(binDir, "ran")
	writeScript(t, binDir, "ffmpeg", "touch "+marker+"\n")

	dir := t.TempDir()
	job := testJob(t, dir, models.Operation{Kind: models.OpConvert})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := adapter.Execute(ctx, job, dir)
	assert.True(t, out.Cancelled)
	assert.Nil(t, out.Failure)
	_, err := os.Stat(marker)
	assert.True(t, os.IsNotExist(err), "subprocess spawned after cancel")
}

func TestFFmpegAdapter_CancelMidRun(t *testing.T) {
	adapter, binDir := newTestAdapter(t, nil)
	writeScript(t, binDir, "ffmpeg", "exec sleep 5\n")

	dir := t.TempDir()
	job := testJob(t, dir, models.Operation{Kind: models.OpConvert})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	out := adapter.Execute(ctx, job, dir)
	assert.True(t, out.Cancelled)
	assert.Nil(t, out.Failure)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestFFmpegAdapter_InputTooLarge(t *testing.T) {
	adapter, binDir := newTestAdapter(t, func(cfg *config.Config) {
		cfg.Transcoder.MaxInputBytes = 16
	})
	marker := filepath.Join(binDir, "ran")
	writeScript(t, binDir, "ffmpeg", "touch "+marker+"\n")

	dir := t.TempDir()
	job := testJob(t, dir, models.Operation{Kind: models.OpConvert})

	out := adapter.Execute(context.Background(), job, dir)
	require.NotNil(t, out.Failure)
	assert.Equal(t, models.FailInputTooLarge, out.Failure.Kind)
	_, err := os.Stat(marker)
	assert.True(t, os.IsNotExist(err), "ffmpeg ran despite oversize input")
}

func TestFFmpegAdapter_DurationCap(t *testing.T) {
	adapter, binDir := newTestAdapter(t, func(cfg *config.Config) {
		cfg.Transcoder.MaxInputSeconds = 60
	})
	marker := filepath.Join(binDir, "ran")
	writeScript(t, binDir, "ffmpeg", "touch "+marker+"\n")
	writeScript(t, binDir, "ffprobe", "echo 3600.0\n")

	dir := t.TempDir()
	job := testJob(t, dir, models.Operation{Kind: models.OpConvert})

	out := adapter.Execute(context.Background(), job, dir)
	require.NotNil(t, out.Failure)
	assert.Equal(t, models.FailInputTooLarge, out.Failure.Kind)
	assert.Contains(t, out.Failure.Message, "duration")
	_, err := os.Stat(marker)
	assert.True(t, os.IsNotExist(err), "ffmpeg ran despite over-long input")
}

func TestFFmpegAdapter_UnsupportedOperation(t *testing.T) {
	adapter, binDir := newTestAdapter(t, nil)
	marker := filepath.Join(binDir, "ran")
	writeScript(t, binDir, "ffmpeg", "touch "+marker+"\n")

	dir := t.TempDir()
	job := testJob(t, dir, models.Operation{Kind: "rotate"})

	out := adapter.Execute(context.Background(), job, dir)
	require.NotNil(t, out.Failure)
	assert.Equal(t, models.FailUnsupportedOperation, out.Failure.Kind)
	_, err := os.Stat(marker)
	assert.True(t, os.IsNotExist(err))
}

func TestTailWriter_KeepsTail(t *testing.T) {
	w := newTailWriter(8)
	w.Write([]byte("0123456789abcdef"))
	assert.Equal(t, "89abcdef", w.String())

	w.Write([]byte("XY"))
	assert.Equal(t, "abcdefXY", w.String())
}
