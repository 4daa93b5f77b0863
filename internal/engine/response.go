package engine

import (
	"regexp"
	"strings"
)

const (
	answerOpen       = "<answer>"
	answerClose      = "</answer>"
	suggestionsOpen  = "<suggested_questions>"
	suggestionsClose = "</suggested_questions>"
	maxSuggestions   = 3
)

var listPrefix = regexp.MustCompile(`^(\d+\.|[-•])\s*`)

// ParsedResponse is a model reply split into its answer and follow-ups.
type ParsedResponse struct {
	Answer      string
	Suggestions []string
}

// ParseResponse splits raw model output on the answer and
// suggested_questions blocks. Without an answer block the trimmed raw text
// is the answer; without a suggestions block the list is empty.
func ParseResponse(raw string) ParsedResponse {
	out := ParsedResponse{Suggestions: []string{}}

	if block, ok := between(raw, answerOpen, answerClose); ok {
		out.Answer = strings.TrimSpace(block)
	}
	if out.Answer == "" {
		out.Answer = strings.TrimSpace(raw)
	}

	block, ok := between(raw, suggestionsOpen, suggestionsClose)
	if !ok {
		return out
	}
	for _, line := range strings.Split(strings.TrimSpace(block), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.TrimSpace(listPrefix.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}
		out.Suggestions = append(out.Suggestions, line)
		if len(out.Suggestions) == maxSuggestions {
			break
		}
	}
	return out
}

func between(s, open, close string) (string, bool) {
	start := strings.Index(s, open)
	if start < 0 {
		return "", false
	}
	rest := s[start+len(open):]
	end := strings.Index(rest, close)
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}
