package llm

import (
	"context"
	"strings"
)

// Echo is a development provider: it streams back the last user message one
// word at a time. Useful for local runs and tests without provider keys.
type Echo struct{}

func (e *Echo) Model() string { return "echo" }

func (e *Echo) StreamChat(ctx context.Context, history []ChatMessage, emit func(token string) error) error {
	var last string
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "user" {
			last = history[i].Content
			break
		}
	}
	if last == "" {
		return emit("...")
	}

	words := strings.Fields(last)
	for i, w := range words {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		token := w
		if i < len(words)-1 {
			token += " "
		}
		if err := emit(token); err != nil {
			return err
		}
	}
	return nil
}
