package llm

import "context"

type CompletionOptions struct {
	MaxTokens   int
	Temperature float64
}

// Provider sends a prompt to a chat-completion model and returns the raw text
// of the first choice. The text may wrap JSON in prose.
type Provider interface {
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)
}
