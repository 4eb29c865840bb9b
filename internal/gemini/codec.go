package gemini

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/klints/gmcli/internal/models"
)

// Behold, a multi-billion dollar company API request/response schema
type Part struct {
	Text *string `json:"text,omitempty"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type GenerateRequest struct {
	Contents []Content `json:"contents"`
}

type Candidate struct {
	Content *Content `json:"content"`
}

type GenerateResponse struct {
	// Pointer so that a response missing the candidates field entirely
	// can be told apart from one with an empty candidate list.
	Candidates *[]Candidate `json:"candidates"`
}

var (
	// ErrMalformed means the response body did not match the expected
	// candidates -> content -> parts -> text structure.
	ErrMalformed = errors.New("malformed completion response")
	// ErrEmptyCandidates means the response was well-formed but held no
	// usable candidate, e.g. when content got filtered.
	ErrEmptyCandidates = errors.New("completion response has no candidates")
)

// The wire protocol tags assistant turns as 'model'.
const roleModel = "model"

func wireRole(role string) (string, error) {
	switch role {
	case models.RoleUser:
		return models.RoleUser, nil
	case models.RoleAssistant:
		return roleModel, nil
	default:
		return "", fmt.Errorf("unknown message role: '%v'", role)
	}
}

// EncodeRequest serializes the conversation into the provider's request
// shape: one content block per message, each holding a single text
// part, in conversation order. Same input always yields identical
// bytes.
func EncodeRequest(msgs []models.Message) ([]byte, error) {
	contents := make([]Content, 0, len(msgs))
	for _, msg := range msgs {
		role, err := wireRole(msg.Role)
		if err != nil {
			return nil, fmt.Errorf("failed to encode conversation: %w", err)
		}
		text := msg.Content
		contents = append(contents, Content{
			Role:  role,
			Parts: []Part{{Text: &text}},
		})
	}
	b, err := json.Marshal(GenerateRequest{Contents: contents})
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return b, nil
}

// DecodeResponse extracts the first candidate's first text part. Any
// missing or wrongly shaped field on that path fails with ErrMalformed
// rather than silently yielding an empty reply.
func DecodeResponse(b []byte) (string, error) {
	var resp GenerateResponse
	if err := json.Unmarshal(b, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if resp.Candidates == nil {
		return "", fmt.Errorf("%w: missing candidates field", ErrMalformed)
	}
	candidates := *resp.Candidates
	if len(candidates) == 0 {
		return "", ErrEmptyCandidates
	}
	first := candidates[0]
	if first.Content == nil {
		return "", fmt.Errorf("%w: candidate without content", ErrMalformed)
	}
	if len(first.Content.Parts) == 0 {
		return "", fmt.Errorf("%w: content without parts", ErrMalformed)
	}
	text := first.Content.Parts[0].Text
	if text == nil {
		return "", fmt.Errorf("%w: part without text", ErrMalformed)
	}
	return *text, nil
}
