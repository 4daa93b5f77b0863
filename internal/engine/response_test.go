package engine

import (
	"reflect"
	"testing"
)

func TestParseResponseWellFormed(t *testing.T) {
	got := ParseResponse(cannedReply)
	want := ParsedResponse{
		Answer: "Max altitude was 120 m.",
		Suggestions: []string{
			"What was the average groundspeed?",
			"How long was the flight?",
			"Were there GPS dropouts?",
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected parse %+v", got)
	}
}

func TestParseResponseNoTags(t *testing.T) {
	got := ParseResponse("  just text\n")
	if got.Answer != "just text" {
		t.Fatalf("expected raw text answer, got %q", got.Answer)
	}
	if got.Suggestions == nil || len(got.Suggestions) != 0 {
		t.Fatalf("expected empty suggestions, got %v", got.Suggestions)
	}
}

func TestParseResponseBulletsAndCap(t *testing.T) {
	raw := "<answer>ok</answer><suggested_questions>\n- one\n\n• two\n3.three\n4. four\n</suggested_questions>"
	got := ParseResponse(raw)
	want := []string{"one", "two", "three"}
	if !reflect.DeepEqual(got.Suggestions, want) {
		t.Fatalf("expected %v, got %v", want, got.Suggestions)
	}
}

func TestParseResponseUnclosedAnswer(t *testing.T) {
	raw := "<answer>dangling"
	if got := ParseResponse(raw); got.Answer != raw {
		t.Fatalf("expected whole text for unclosed block, got %q", got.Answer)
	}
}
