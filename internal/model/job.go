package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle stage of a transcription job.
type JobStatus string

const (
	StatusReceived     JobStatus = "received"
	StatusFetching     JobStatus = "fetching"
	StatusStaged       JobStatus = "staged"
	StatusTranscribing JobStatus = "transcribing"
	StatusCompleted    JobStatus = "completed"
	StatusFailed       JobStatus = "failed"
)

// next lists the forward transition out of each non-terminal status.
var next = map[JobStatus]JobStatus{
	StatusReceived:     StatusFetching,
	StatusFetching:     StatusStaged,
	StatusStaged:       StatusTranscribing,
	StatusTranscribing: StatusCompleted,
}

// IsTerminal reports whether no further transition is possible.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is one in-flight transcription request. It lives only for the
// duration of the HTTP request that created it.
type Job struct {
	ID           uuid.UUID `json:"id"`
	AudioURL     string    `json:"audio_url"`
	StagedPath   string    `json:"staged_path,omitempty"`
	AudioFormat  string    `json:"audio_format,omitempty"`
	DeclaredType string    `json:"declared_type,omitempty"`
	AudioSize    int64     `json:"audio_size_bytes,omitempty"`
	ArtifactPath string    `json:"artifact_path,omitempty"`
	Status       JobStatus `json:"status"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`

	// Artifact holds the MIDI bytes once the job completed.
	Artifact []byte `json:"-"`

	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewJob creates a job in the received state.
func NewJob(audioURL string, now time.Time) *Job {
	return &Job{
		ID:        uuid.New(),
		AudioURL:  audioURL,
		Status:    StatusReceived,
		CreatedAt: now,
	}
}

// Advance moves the job to status. Only the single forward step is allowed.
func (j *Job) Advance(status JobStatus, now time.Time) error {
	if to, ok := next[j.Status]; !ok || to != status {
		return fmt.Errorf("illegal job transition %s -> %s", j.Status, status)
	}
	j.Status = status
	if status.IsTerminal() {
		j.FinishedAt = &now
	}
	return nil
}

// Fail moves a non-terminal job to failed and records why.
func (j *Job) Fail(kind, message string, now time.Time) error {
	if j.Status.IsTerminal() {
		return fmt.Errorf("illegal job transition %s -> %s", j.Status, StatusFailed)
	}
	j.Status = StatusFailed
	j.ErrorKind = kind
	j.ErrorMessage = message
	j.FinishedAt = &now
	return nil
}

// Elapsed returns the job's wall-clock duration so far.
func (j *Job) Elapsed(now time.Time) time.Duration {
	if j.FinishedAt != nil {
		return j.FinishedAt.Sub(j.CreatedAt)
	}
	return now.Sub(j.CreatedAt)
}
