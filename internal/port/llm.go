package port

import "context"

// CompletionParams tune a single provider call.
type CompletionParams struct {
	MaxTokens   int
	Temperature float32
}

// Provider represents one external language-model service.
type Provider interface {
	// Complete generates text for the prompt. The system prompt may be empty.
	Complete(ctx context.Context, systemPrompt, userPrompt string, params CompletionParams) (string, error)

	// Name returns the configured provider name (used in attribution).
	Name() string
}
