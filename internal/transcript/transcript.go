// Package transcript turns the flat diarized word stream from the
// recognition service into a structured two-party interview transcript.
package transcript

import (
	"strings"

	"github.com/prepdeck/interview-coach/internal/transcribe"
)

// Role labels one side of the interview.
type Role string

const (
	RoleInterviewer Role = "Interviewer"
	RoleCandidate   Role = "Candidate"
)

// Utterance is a contiguous run of words from one speaker.
type Utterance struct {
	Speaker Role   `json:"speaker"`
	Text    string `json:"text"`
}

// Transcript is the ordered utterance sequence for one interview.
type Transcript []Utterance

// roleForTag maps a diarization speaker tag to a role. The mapping is
// positional: the service numbers speakers by order of appearance, and tag 1
// is assumed to be the interviewer. Nothing verifies that the interviewer
// actually speaks first.
func roleForTag(tag int) Role {
	if tag == 1 {
		return RoleInterviewer
	}
	return RoleCandidate
}

// Segment groups contiguous same-speaker words into utterances. It is pure
// and deterministic; an empty word stream yields an empty transcript, and no
// emitted utterance has empty trimmed text.
func Segment(words []transcribe.Word) Transcript {
	var (
		result  Transcript
		buffer  strings.Builder
		current int
	)

	flush := func(tag int) {
		text := strings.TrimSpace(buffer.String())
		if text != "" {
			result = append(result, Utterance{Speaker: roleForTag(tag), Text: text})
		}
		buffer.Reset()
	}

	for i, word := range words {
		if i == 0 {
			current = word.SpeakerTag
		}
		if word.SpeakerTag != current {
			flush(current)
			current = word.SpeakerTag
		}
		if buffer.Len() > 0 {
			buffer.WriteString(" ")
		}
		buffer.WriteString(word.Text)
	}
	flush(current)

	return result
}

// Render formats the transcript as "{role}: {text}" lines. This is the form
// persisted on the interview record and embedded in the feedback prompt.
func (t Transcript) Render() string {
	lines := make([]string, 0, len(t))
	for _, u := range t {
		lines = append(lines, string(u.Speaker)+": "+u.Text)
	}
	return strings.Join(lines, "\n")
}

// Parse is the inverse of Render for transcripts loaded off a record. Lines
// without a recognized role prefix are folded into the preceding utterance.
func Parse(s string) Transcript {
	var result Transcript
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		role, text, ok := splitLine(line)
		if !ok {
			if len(result) > 0 {
				result[len(result)-1].Text += " " + line
			}
			continue
		}
		result = append(result, Utterance{Speaker: role, Text: text})
	}
	return result
}

func splitLine(line string) (Role, string, bool) {
	for _, role := range []Role{RoleInterviewer, RoleCandidate} {
		prefix := string(role) + ":"
		if strings.HasPrefix(line, prefix) {
			return role, strings.TrimSpace(strings.TrimPrefix(line, prefix)), true
		}
	}
	return "", "", false
}
