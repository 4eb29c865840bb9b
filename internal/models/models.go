package models

import "context"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat is the persisted form of a conversation, written to the
// conversations directory when a session ends.
type Chat struct {
	ID       string    `json:"id"`
	Messages []Message `json:"messages"`
}

// Conversation is the append-only dialogue log for one session. Turns
// are never reordered or removed; index order is chronological order.
type Conversation struct {
	messages []Message
}

func (c *Conversation) Append(msg Message) {
	c.messages = append(c.messages, msg)
}

// Messages returns a copy of the log, so that callers can't mutate
// the conversation behind the session's back.
func (c *Conversation) Messages() []Message {
	snapshot := make([]Message, len(c.messages))
	copy(snapshot, c.messages)
	return snapshot
}

func (c *Conversation) Len() int {
	return len(c.messages)
}

// Sender posts one encoded completion request and returns the raw
// response body. Implemented by gemini.Client, mocked in tests.
type Sender interface {
	Send(ctx context.Context, url string, body []byte) ([]byte, error)
}
