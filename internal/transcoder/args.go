package transcoder

import (
	"fmt"

	"github.com/amankumarsingh77/transcodebot/internal/models"
)

// outputName picks the output filename for the operation. The extension
// doubles as the format selector for buildArgs.
func outputName(op models.Operation) (string, error) {
	format := op.TargetFormat
	switch op.Kind {
	case models.OpConvert:
		if format == "" {
			format = "mp4"
		}
	case models.OpClip:
		if format == "" {
			format = "mp4"
		}
	case models.OpExtractAudio:
		if format == "" {
			format = "opus"
		}
		if format != "opus" && format != "mp3" {
			return "", ErrUnsupported
		}
	default:
		return "", ErrUnsupported
	}
	return "output." + format, nil
}

// buildArgs derives the fixed ffmpeg argument template for the operation.
func buildArgs(op models.Operation, inputPath, outputPath string) ([]string, error) {
	var args []string

	switch op.Kind {
	case models.OpClip:
		// Seek before the input so ffmpeg skips decoding the head.
		args = append(args,
			"-ss", fmt.Sprintf("%.3f", op.ClipStart),
			"-t", fmt.Sprintf("%.3f", op.ClipDuration),
		)
	case models.OpConvert, models.OpExtractAudio:
	default:
		return nil, ErrUnsupported
	}

	args = append(args, "-i", inputPath)

	if op.Kind == models.OpClip && op.TargetFormat == "" {
		args = append(args, "-c", "copy", "-movflags", "+faststart")
	} else {
		codec, err := codecArgs(op)
		if err != nil {
			return nil, err
		}
		args = append(args, codec...)
	}

	args = append(args, "-y", outputPath)
	return args, nil
}

func codecArgs(op models.Operation) ([]string, error) {
	format := op.TargetFormat
	if format == "" {
		format = "mp4"
	}
	if op.Kind == models.OpExtractAudio && op.TargetFormat == "" {
		format = "opus"
	}

	switch format {
	case "mp4":
		return []string{
			"-c:v", "libx264",
			"-crf", "23",
			"-preset", "medium",
			"-c:a", "aac",
			"-b:a", "128k",
			"-movflags", "+faststart",
		}, nil
	case "webm":
		return []string{
			"-c:v", "libaom-av1",
			"-crf", "30",
			"-b:v", "0",
			"-cpu-used", "4",
			"-row-mt", "1",
			"-c:a", "libopus",
			"-b:a", "128k",
		}, nil
	case "opus":
		return []string{
			"-vn",
			"-c:a", "libopus",
			"-b:a", "128k",
		}, nil
	case "mp3":
		return []string{
			"-vn",
			"-c:a", "libmp3lame",
			"-q:a", "2",
		}, nil
	}
	return nil, ErrUnsupported
}
