// Package interview holds the interview record, its status state machine,
// and the record store implementations.
package interview

import (
	"context"
	"errors"
	"time"
)

// Status is the pipeline position of an interview record.
type Status string

const (
	StatusUploaded       Status = "uploaded"
	StatusAudioExtracted Status = "audio_extracted"
	StatusTranscribed    Status = "transcribed"
	StatusFeedbackReady  Status = "feedback_ready"
	StatusFailed         Status = "failed"
)

// ValidTransition enforces the allowed status edges. Status never moves
// backward; failed stages leave the status where it was, so the only edges
// are forward steps plus failure from any non-terminal state.
func ValidTransition(from, to Status) bool {
	switch from {
	case StatusUploaded:
		return to == StatusAudioExtracted || to == StatusFailed
	case StatusAudioExtracted:
		return to == StatusTranscribed || to == StatusFailed
	case StatusTranscribed:
		return to == StatusFeedbackReady || to == StatusFailed
	case StatusFeedbackReady:
		// Feedback is recomputable on demand; the status stays put.
		return to == StatusFeedbackReady
	default:
		return false
	}
}

// Record is the persisted state of one interview. It is owned by the
// pipeline; every field write happens only after a stage fully succeeds.
type Record struct {
	ID              string    `json:"id"`
	JobTitle        string    `json:"job_title"`
	Status          Status    `json:"status"`
	RawFileRef      string    `json:"raw_file_ref,omitempty"`
	AudioRef        string    `json:"audio_ref,omitempty"`
	Transcript      string    `json:"transcript,omitempty"` // rendered form, one utterance per line
	DurationSeconds float64   `json:"duration_seconds,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// ErrNotFound is returned for unknown interview ids.
var ErrNotFound = errors.New("interview: not found")

// Store persists interview records.
type Store interface {
	Create(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	Save(ctx context.Context, rec *Record) error
	List(ctx context.Context) ([]*Record, error) // newest first
	Delete(ctx context.Context, id string) error
}
