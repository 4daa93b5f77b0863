package engine

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/miradorstack/uavlog-analyst/internal/models"
)

func TestJSONShortKeepsHeadAndTail(t *testing.T) {
	long := make([]int, 400)
	for i := range long {
		long[i] = i
	}
	out := jsonShort(long, 100)
	if !strings.Contains(out, truncationMarker) {
		t.Fatalf("expected truncation marker")
	}
	if !strings.HasPrefix(out, "[\n  0,") || !strings.HasSuffix(out, "399\n]") {
		t.Fatalf("expected head and tail preserved:\n%s", out)
	}
	if n := utf8.RuneCountInString(out); n != 100+utf8.RuneCountInString(truncationMarker) {
		t.Fatalf("unexpected length %d", n)
	}

	short := jsonShort(map[string]float64{"a": 1}, 100)
	if short != "{\n  \"a\": 1\n}" {
		t.Fatalf("unexpected short rendering %q", short)
	}
}

func TestBuildPromptsEndWithQuestion(t *testing.T) {
	metrics := models.MetricRecord{"altitude_max": 120}
	prompts := []string{
		BuildMetricPrompt("max alt?", map[string]any{"x": 1}, metrics),
		BuildAnomalyPrompt("max alt?", map[string]any{}, metrics, nil, nil),
		BuildGeneralPrompt("max alt?"),
	}
	for i, p := range prompts {
		if !strings.HasSuffix(p, "User question: max alt?") {
			t.Fatalf("prompt %d does not end with the question", i)
		}
		if !strings.Contains(p, "<suggested_questions>") {
			t.Fatalf("prompt %d lacks the output format", i)
		}
	}
	if !strings.Contains(prompts[1], "## Primitive anomaly flags (hints)\nNone") {
		t.Fatalf("expected None placeholder without flags")
	}
}

func TestInjectHistory(t *testing.T) {
	turns := []models.Turn{
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: "hello"},
	}
	got := InjectHistory("intro\n\nUser question: next", turns)
	want := "intro\n\n## Recent conversation (last 3 turns):\nUser: hi\nAssistant: hello\n\nUser question: next"
	if got != want {
		t.Fatalf("unexpected prompt:\n%q", got)
	}
	if InjectHistory("p", nil) != "p" {
		t.Fatalf("expected unchanged prompt without history")
	}
}
