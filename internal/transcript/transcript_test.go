package transcript

import (
	"strings"
	"testing"

	"github.com/prepdeck/interview-coach/internal/transcribe"
)

func words(pairs ...interface{}) []transcribe.Word {
	out := make([]transcribe.Word, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, transcribe.Word{
			Text:       pairs[i].(string),
			SpeakerTag: pairs[i+1].(int),
		})
	}
	return out
}

func TestSegment(t *testing.T) {
	testCases := []struct {
		description string
		input       []transcribe.Word
		expected    Transcript
	}{
		{
			description: "speaker change closes each run",
			input:       words("a", 1, "b", 1, "c", 2, "d", 2, "e", 1),
			expected: Transcript{
				{Speaker: RoleInterviewer, Text: "a b"},
				{Speaker: RoleCandidate, Text: "c d"},
				{Speaker: RoleInterviewer, Text: "e"},
			},
		},
		{
			description: "single speaker yields one utterance",
			input:       words("one", 1, "two", 1, "three", 1, "four", 1),
			expected: Transcript{
				{Speaker: RoleInterviewer, Text: "one two three four"},
			},
		},
		{
			description: "non-1 tags map to candidate",
			input:       words("hello", 2, "there", 3),
			expected: Transcript{
				{Speaker: RoleCandidate, Text: "hello"},
				{Speaker: RoleCandidate, Text: "there"},
			},
		},
		{
			description: "empty input yields empty transcript",
			input:       nil,
			expected:    nil,
		},
		{
			description: "end to end sample",
			input:       words("I", 1, "am", 1, "ready", 1, "Tell", 2, "me", 2),
			expected: Transcript{
				{Speaker: RoleInterviewer, Text: "I am ready"},
				{Speaker: RoleCandidate, Text: "Tell me"},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			got := Segment(tc.input)
			if len(got) != len(tc.expected) {
				t.Fatalf("Expected %d utterances, got %d: %+v", len(tc.expected), len(got), got)
			}
			for i := range got {
				if got[i] != tc.expected[i] {
					t.Errorf("Utterance %d: expected %+v, got %+v", i, tc.expected[i], got[i])
				}
			}
		})
	}
}

func TestSegmentNeverEmitsEmptyUtterance(t *testing.T) {
	inputs := [][]transcribe.Word{
		words("a", 1, "b", 2, "c", 1, "d", 2),
		words(" ", 1, "x", 2),
		words("only", 2),
	}
	for _, input := range inputs {
		for _, u := range Segment(input) {
			if strings.TrimSpace(u.Text) == "" {
				t.Errorf("Empty utterance emitted for input %+v", input)
			}
		}
	}
}

func TestSegmentAlternatesRolesOnBoundaries(t *testing.T) {
	tr := Segment(words("a", 1, "b", 2, "c", 1, "d", 1, "e", 2))
	for i := 1; i < len(tr); i++ {
		if tr[i].Speaker == tr[i-1].Speaker {
			t.Errorf("Consecutive utterances %d and %d share speaker %s", i-1, i, tr[i].Speaker)
		}
	}
}

func TestRenderAndParse(t *testing.T) {
	tr := Transcript{
		{Speaker: RoleInterviewer, Text: "Tell me about yourself."},
		{Speaker: RoleCandidate, Text: "I am a backend engineer."},
	}

	rendered := tr.Render()
	expected := "Interviewer: Tell me about yourself.\nCandidate: I am a backend engineer."
	if rendered != expected {
		t.Errorf("Expected rendered transcript %q, got %q", expected, rendered)
	}

	parsed := Parse(rendered)
	if len(parsed) != len(tr) {
		t.Fatalf("Expected %d utterances after parse, got %d", len(tr), len(parsed))
	}
	for i := range parsed {
		if parsed[i] != tr[i] {
			t.Errorf("Utterance %d: expected %+v, got %+v", i, tr[i], parsed[i])
		}
	}
}

func TestParseFoldsContinuationLines(t *testing.T) {
	parsed := Parse("Interviewer: first line\ncontinued thought\nCandidate: reply")
	if len(parsed) != 2 {
		t.Fatalf("Expected 2 utterances, got %d", len(parsed))
	}
	if parsed[0].Text != "first line continued thought" {
		t.Errorf("Continuation not folded, got %q", parsed[0].Text)
	}
}

func TestParseEmpty(t *testing.T) {
	if got := Parse(""); len(got) != 0 {
		t.Errorf("Expected empty transcript, got %+v", got)
	}
}
