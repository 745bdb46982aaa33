// Package pipeline sequences the interview processing stages and enforces
// the record status state machine. Record writes happen only after a stage
// fully succeeds, so any failed stage leaves the interview retryable at its
// last good state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prepdeck/interview-coach/internal/blob"
	"github.com/prepdeck/interview-coach/internal/events"
	"github.com/prepdeck/interview-coach/internal/feedback"
	"github.com/prepdeck/interview-coach/internal/interview"
	"github.com/prepdeck/interview-coach/internal/media"
	"github.com/prepdeck/interview-coach/internal/metrics"
	"github.com/prepdeck/interview-coach/internal/transcribe"
	"github.com/prepdeck/interview-coach/internal/transcript"
)

var (
	// ErrInvalidState is returned when a stage is invoked while the record
	// is not in that stage's precondition state. No work is performed.
	ErrInvalidState = errors.New("pipeline: interview is not in the required state")
	// ErrEmptyUpload is returned for an upload with no payload bytes.
	ErrEmptyUpload = errors.New("pipeline: uploaded payload is empty")
)

// Config bounds the long-running stages.
type Config struct {
	TranscribeTimeout time.Duration // hard bound including recognition polling
	FeedbackTimeout   time.Duration
}

// Pipeline owns interview records and drives them through
// upload -> transcribe -> feedback.
type Pipeline struct {
	records    interview.Store
	blobs      blob.Store
	normalizer media.Normalizer
	recognizer transcribe.Recognizer
	generator  *feedback.Generator
	locks      Locker
	hub        *events.Hub
	stats      *metrics.Pipeline

	transcribeTimeout time.Duration
	feedbackTimeout   time.Duration
}

func New(
	records interview.Store,
	blobs blob.Store,
	normalizer media.Normalizer,
	recognizer transcribe.Recognizer,
	generator *feedback.Generator,
	locks Locker,
	hub *events.Hub,
	stats *metrics.Pipeline,
	cfg Config,
) *Pipeline {
	if cfg.TranscribeTimeout <= 0 {
		cfg.TranscribeTimeout = 30 * time.Minute
	}
	if cfg.FeedbackTimeout <= 0 {
		cfg.FeedbackTimeout = 60 * time.Second
	}
	return &Pipeline{
		records:           records,
		blobs:             blobs,
		normalizer:        normalizer,
		recognizer:        recognizer,
		generator:         generator,
		locks:             locks,
		hub:               hub,
		stats:             stats,
		transcribeTimeout: cfg.TranscribeTimeout,
		feedbackTimeout:   cfg.FeedbackTimeout,
	}
}

// Create registers a new interview in the Uploaded state.
func (p *Pipeline) Create(ctx context.Context, jobTitle string) (*interview.Record, error) {
	rec := &interview.Record{
		ID:        uuid.NewString(),
		JobTitle:  jobTitle,
		Status:    interview.StatusUploaded,
		CreatedAt: time.Now().UTC(),
	}
	if err := p.records.Create(ctx, rec); err != nil {
		return nil, err
	}
	log.Printf("Interview %s created (%s)", rec.ID, rec.JobTitle)
	return rec, nil
}

// Upload normalizes the payload to mono WAV, stores raw and derived blobs,
// and advances the record to AudioExtracted. A normalization failure leaves
// the record Uploaded and retryable.
func (p *Pipeline) Upload(ctx context.Context, id, filename string, payload []byte) (*interview.Record, error) {
	release, err := p.locks.Acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	rec, err := p.records.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != interview.StatusUploaded {
		return nil, fmt.Errorf("%w: upload requires status %s, have %s",
			ErrInvalidState, interview.StatusUploaded, rec.Status)
	}
	if len(payload) == 0 {
		return nil, ErrEmptyUpload
	}

	finish := p.stageStarted(id, "upload")
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")

	wav, err := p.normalizer.Normalize(ctx, payload, ext)
	if err != nil {
		return nil, finish(fmt.Errorf("normalize %q: %w", filename, err))
	}
	duration, err := media.Duration(wav)
	if err != nil {
		return nil, finish(fmt.Errorf("measure normalized audio: %w", err))
	}

	rawName := fmt.Sprintf("interviews/%s/raw-%s", id, filepath.Base(filename))
	rawRef, err := p.blobs.Put(ctx, rawName, payload)
	if err != nil {
		return nil, finish(fmt.Errorf("store raw upload: %w", err))
	}
	audioRef, err := p.blobs.Put(ctx, fmt.Sprintf("interviews/%s/interview.wav", id), wav)
	if err != nil {
		return nil, finish(fmt.Errorf("store normalized audio: %w", err))
	}

	rec.RawFileRef = rawRef
	rec.AudioRef = audioRef
	rec.DurationSeconds = duration
	rec.Status = interview.StatusAudioExtracted
	if err := p.records.Save(ctx, rec); err != nil {
		return nil, finish(fmt.Errorf("save record: %w", err))
	}

	finish(nil)
	return rec, nil
}

// Transcribe submits the normalized audio for two-speaker recognition,
// segments the word stream, and advances the record to Transcribed. On any
// failure, including a recognition timeout, status and transcript are
// untouched.
func (p *Pipeline) Transcribe(ctx context.Context, id string) (transcript.Transcript, error) {
	release, err := p.locks.Acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	rec, err := p.records.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != interview.StatusAudioExtracted || rec.AudioRef == "" {
		return nil, fmt.Errorf("%w: transcribe requires extracted audio, status is %s",
			ErrInvalidState, rec.Status)
	}

	finish := p.stageStarted(id, "transcribe")

	ctx, cancel := context.WithTimeout(ctx, p.transcribeTimeout)
	defer cancel()

	words, err := p.recognizer.Recognize(ctx, p.blobs.URI(rec.AudioRef))
	if err != nil {
		return nil, finish(fmt.Errorf("recognize: %w", err))
	}

	tr := transcript.Segment(words)
	rec.Transcript = tr.Render()
	rec.Status = interview.StatusTranscribed
	if err := p.records.Save(ctx, rec); err != nil {
		return nil, finish(fmt.Errorf("save record: %w", err))
	}

	finish(nil)
	return tr, nil
}

// Feedback generates coaching text from the stored transcript. The text is
// never persisted; the stage is re-invocable and recomputes on demand.
func (p *Pipeline) Feedback(ctx context.Context, id string) (string, error) {
	release, err := p.locks.Acquire(ctx, id)
	if err != nil {
		return "", err
	}
	defer release()

	rec, err := p.records.Get(ctx, id)
	if err != nil {
		return "", err
	}
	switch rec.Status {
	case interview.StatusTranscribed, interview.StatusFeedbackReady:
	default:
		return "", fmt.Errorf("%w: feedback requires a transcript, status is %s",
			ErrInvalidState, rec.Status)
	}

	finish := p.stageStarted(id, "feedback")

	ctx, cancel := context.WithTimeout(ctx, p.feedbackTimeout)
	defer cancel()

	text, err := p.generator.Generate(ctx, rec.JobTitle, transcript.Parse(rec.Transcript))
	if err != nil {
		return "", finish(err)
	}

	if rec.Status != interview.StatusFeedbackReady {
		rec.Status = interview.StatusFeedbackReady
		if err := p.records.Save(ctx, rec); err != nil {
			return "", finish(fmt.Errorf("save record: %w", err))
		}
	}

	finish(nil)
	return text, nil
}

// Abandon marks an interview Failed. This is an operator decision; the
// pipeline itself never gives up on a retryable record.
func (p *Pipeline) Abandon(ctx context.Context, id, reason string) (*interview.Record, error) {
	release, err := p.locks.Acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	rec, err := p.records.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !interview.ValidTransition(rec.Status, interview.StatusFailed) {
		return nil, fmt.Errorf("%w: cannot abandon from status %s", ErrInvalidState, rec.Status)
	}

	rec.Status = interview.StatusFailed
	if err := p.records.Save(ctx, rec); err != nil {
		return nil, err
	}
	log.Printf("Interview %s abandoned: %s", id, reason)
	p.publish(events.Event{
		InterviewID: id,
		Type:        events.TypeError,
		Status:      interview.StatusFailed,
		Message:     reason,
	})
	return rec, nil
}

// stageStarted records and announces a stage execution. The returned finish
// func is called exactly once with the stage outcome and passes the error
// through for convenient wrapping at call sites.
func (p *Pipeline) stageStarted(id, stage string) func(error) error {
	start := time.Now()
	if p.stats != nil {
		p.stats.StageStarted(stage)
	}
	log.Printf("Interview %s: %s started", id, stage)
	p.publish(events.Event{InterviewID: id, Type: events.TypeStatus, Stage: stage, Message: "started"})

	return func(err error) error {
		elapsed := time.Since(start)
		if p.stats != nil {
			p.stats.StageFinished(stage, elapsed, err)
		}
		if err != nil {
			log.Printf("Interview %s: %s failed after %v: %v", id, stage, elapsed, err)
			p.publish(events.Event{
				InterviewID: id,
				Type:        events.TypeError,
				Stage:       stage,
				Message:     err.Error(),
			})
			return err
		}
		log.Printf("Interview %s: %s succeeded in %v", id, stage, elapsed)
		p.publish(events.Event{InterviewID: id, Type: events.TypeStatus, Stage: stage, Message: "succeeded"})
		return nil
	}
}

func (p *Pipeline) publish(event events.Event) {
	if p.hub != nil {
		p.hub.Publish(event)
	}
}
