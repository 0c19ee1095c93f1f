package transcoder

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// probeDuration reads the container duration in seconds via ffprobe.
func probeDuration(ctx context.Context, ffprobeBin, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, ffprobeBin, "-v", "error",
		"-show_entries", "format=duration", "-of", "csv=p=0", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration error: %v output: %v", err, string(output))
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %v", err)
	}
	return duration, nil
}

// probeFormat reads the container format name via ffprobe. Multi-valued
// names like "mov,mp4,m4a" collapse to the first entry.
func probeFormat(ctx context.Context, ffprobeBin, path string) (string, error) {
	cmd := exec.CommandContext(ctx, ffprobeBin, "-v", "error",
		"-show_entries", "format=format_name", "-of", "csv=p=0", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("ffprobe format error: %v output: %v", err, string(output))
	}
	name := strings.TrimSpace(string(output))
	if idx := strings.IndexByte(name, ','); idx >= 0 {
		name = name[:idx]
	}
	if name == "" {
		return "", fmt.Errorf("unexpected ffprobe output: %s", string(output))
	}
	return name, nil
}
