package domain

import "time"

// ErrorPlaceholder is the bot text appended when the chat endpoint cannot be reached.
const ErrorPlaceholder = "Error communicating with the assistant"

// ChatMessage is one entry of the chat widget.
type ChatMessage struct {
	Text   string    `json:"text"`
	IsBot  bool      `json:"isBot"`
	SentAt time.Time `json:"sentAt"`
}

// Exchange is the transcript record of one prompt and its reply.
type Exchange struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	Prompt      string    `json:"prompt"`
	Reply       string    `json:"reply"`
	Failed      bool      `json:"failed"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Duration returns how long the exchange took.
func (e Exchange) Duration() time.Duration {
	if e.FinishedAt.Before(e.StartedAt) {
		return 0
	}
	return e.FinishedAt.Sub(e.StartedAt)
}
