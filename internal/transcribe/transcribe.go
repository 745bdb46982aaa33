package transcribe

import (
	"context"
	"errors"
	"fmt"
)

// Word is a single recognized word with the speaker tag assigned by the
// recognition service. Order in the slice is recognition order.
type Word struct {
	Text       string
	SpeakerTag int
}

// Recognizer submits a normalized audio reference to a speech recognition
// service and returns the full ordered word stream once the job completes.
type Recognizer interface {
	Recognize(ctx context.Context, audioURI string) ([]Word, error)
}

// ErrTimeout is returned when the recognition job does not complete within
// the configured deadline. The caller must not advance any record state.
var ErrTimeout = errors.New("transcribe: recognition timed out")

// ServiceError is a structured non-2xx response from the recognition service.
type ServiceError struct {
	Status int
	Body   string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("transcribe: service status=%d: %s", e.Status, e.Body)
}
