package repo

import "context"

// CompletionRepo is the natural-language completion capability.
// A nil CompletionRepo means the provider is not configured.
type CompletionRepo interface {
	// Complete sends a prompt and returns the completion text
	Complete(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, error)

	// GenerateImage generates an image for the prompt and returns its URL
	GenerateImage(ctx context.Context, prompt string) (string, error)
}
