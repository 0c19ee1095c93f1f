package models

import (
	"time"
)

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further status transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed || s == JobStatusCancelled
}

type OperationKind string

const (
	OpConvert      OperationKind = "convert"
	OpClip         OperationKind = "clip"
	OpExtractAudio OperationKind = "extract_audio"
)

// Operation describes the requested transformation. TargetFormat selects the
// container/codec template; ClipStart/ClipDuration are seconds and only
// meaningful for OpClip.
type Operation struct {
	Kind         OperationKind `json:"kind" redis:"kind" validate:"required,oneof=convert clip extract_audio"`
	TargetFormat string        `json:"target_format,omitempty" redis:"target_format" validate:"omitempty,oneof=mp4 webm opus mp3"`
	ClipStart    float64       `json:"clip_start,omitempty" redis:"clip_start" validate:"omitempty,gte=0"`
	ClipDuration float64       `json:"clip_duration,omitempty" redis:"clip_duration" validate:"omitempty,gt=0"`
}

type SourceKind string

const (
	SourceLocal SourceKind = "local"
	SourceHTTP  SourceKind = "http"
	SourceS3    SourceKind = "s3"
)

// Source references the input media, either a path already on disk or a
// remote locator the adapter fetches before transcoding.
type Source struct {
	Kind   SourceKind `json:"kind" redis:"kind" validate:"required,oneof=local http s3"`
	Path   string     `json:"path,omitempty" redis:"path" validate:"required_if=Kind local"`
	URL    string     `json:"url,omitempty" redis:"url" validate:"required_if=Kind http,omitempty,url"`
	Bucket string     `json:"bucket,omitempty" redis:"bucket" validate:"required_if=Kind s3"`
	Key    string     `json:"key,omitempty" redis:"key" validate:"required_if=Kind s3"`
}

// Result is present only on succeeded jobs.
type Result struct {
	OutputPath      string  `json:"output_path" redis:"output_path"`
	SizeBytes       int64   `json:"size_bytes" redis:"size_bytes"`
	DurationSeconds float64 `json:"duration_seconds" redis:"duration_seconds"`
	Format          string  `json:"format" redis:"format"`
}

type FailureKind string

const (
	FailInvalidRequest       FailureKind = "invalid_request"
	FailOverloaded           FailureKind = "overloaded"
	FailResourceExhausted    FailureKind = "resource_exhausted"
	FailInputTooLarge        FailureKind = "input_too_large"
	FailUnsupportedOperation FailureKind = "unsupported_operation"
	FailTimeout              FailureKind = "timeout"
	FailTranscodeFailed      FailureKind = "transcode_failed"
	FailCorruptOutput        FailureKind = "corrupt_output"
	FailInternal             FailureKind = "internal"
)

// Retryable reports whether the scheduler may re-run the job for this kind.
func (k FailureKind) Retryable() bool {
	switch k {
	case FailTimeout, FailTranscodeFailed, FailCorruptOutput:
		return true
	}
	return false
}

// Failure is present only on failed jobs.
type Failure struct {
	Kind       FailureKind `json:"kind" redis:"kind"`
	Message    string      `json:"message" redis:"message"`
	ExitCode   int         `json:"exit_code,omitempty" redis:"exit_code"`
	StderrTail string      `json:"stderr_tail,omitempty" redis:"stderr_tail"`
}

// Job is the unit of work tracked through the pipeline. Mutation goes through
// the lifecycle tracker; everything outside receives value snapshots.
type Job struct {
	JobID        string    `json:"job_id" redis:"job_id"`
	Requester    string    `json:"requester" redis:"requester"`
	Conversation string    `json:"conversation" redis:"conversation"`
	Source       Source    `json:"source" redis:"source"`
	Operation    Operation `json:"operation" redis:"operation"`
	Status       JobStatus `json:"status" redis:"status"`
	Attempt      int       `json:"attempt" redis:"attempt"`
	CreatedAt    time.Time `json:"created_at" redis:"created_at"`
	StartedAt    time.Time `json:"started_at,omitempty" redis:"started_at"`
	FinishedAt   time.Time `json:"finished_at,omitempty" redis:"finished_at"`
	Result       *Result   `json:"result,omitempty" redis:"result"`
	Failure      *Failure  `json:"failure,omitempty" redis:"failure"`
}
