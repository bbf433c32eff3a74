package llm

import (
	"context"
	"fmt"
	"strings"
)

// ChatMessage is one turn of a conversation on the wire to a provider.
type ChatMessage struct {
	Role    string `json:"role"` // system | user | assistant
	Content string `json:"content"`
}

// Streamer produces the assistant reply for a conversation as a stream of
// tokens. Implementations wrap a concrete LLM provider.
type Streamer interface {
	StreamChat(ctx context.Context, history []ChatMessage, emit func(token string) error) error
	Model() string
}

// New returns the streamer for a configured provider name.
func New(provider string) (Streamer, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "echo":
		return &Echo{}, nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %q", provider)
	}
}
