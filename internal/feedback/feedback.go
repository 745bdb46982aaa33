// Package feedback turns a finished interview transcript into coaching text
// via an external completion service.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prepdeck/interview-coach/internal/transcript"
)

// ErrEmptyTranscript is returned when there is nothing to coach on. An empty
// prompt is never sent to the completion service.
var ErrEmptyTranscript = errors.New("feedback: transcript is empty")

// Completer is the narrow surface of a text completion service.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

const promptTemplate = `You are an expert interview coach.
The candidate applied for: %s
Here is the interview transcript:

%s

Provide:
1. Feedback on candidate responses.
2. Improved answers for questions the candidate missed or answered poorly.
Format the response clearly with bullets or paragraphs.`

// Generator renders the coach prompt and calls the completion service. It does
// not retry; a failed call surfaces to the caller unchanged.
type Generator struct {
	completer Completer
	maxTokens int
}

func NewGenerator(completer Completer, maxTokens int) *Generator {
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	return &Generator{completer: completer, maxTokens: maxTokens}
}

// Generate produces coaching feedback for the given role and transcript.
func (g *Generator) Generate(ctx context.Context, jobTitle string, tr transcript.Transcript) (string, error) {
	rendered := tr.Render()
	if strings.TrimSpace(rendered) == "" {
		return "", ErrEmptyTranscript
	}

	prompt := fmt.Sprintf(promptTemplate, jobTitle, rendered)
	text, err := g.completer.Complete(ctx, prompt, g.maxTokens)
	if err != nil {
		return "", fmt.Errorf("feedback: completion failed: %w", err)
	}
	return strings.TrimSpace(text), nil
}
