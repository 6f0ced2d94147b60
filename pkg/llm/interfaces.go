// Package llm abstracts the chat completion providers used for SQL
// generation.
package llm

import "context"

// Client is a minimal chat completion interface. Implementations send
// one system prompt and one user message and return the model's text.
type Client interface {
	// Complete sends the prompt pair and returns the raw completion text.
	Complete(ctx context.Context, system, user string) (string, error)

	// Model returns the configured model identifier, for logging and
	// history records.
	Model() string
}
