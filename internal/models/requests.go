package models

// ChatRequest is a single user question, optionally about an attached flight log.
type ChatRequest struct {
	Question  string         `json:"question"`
	Telemetry map[string]any `json:"telemetry,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
}

// AnalysisRequest asks for metrics and a relevant field sample without a chat turn.
type AnalysisRequest struct {
	Telemetry map[string]any `json:"telemetry"`
	Hint      string         `json:"hint,omitempty"`
}

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
