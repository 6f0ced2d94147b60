package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	anthropic "github.com/liushuangls/go-anthropic/v2"
)

// maxCompletionTokens bounds generated SQL length. A statement longer
// than this is not something we want to run anyway.
const maxCompletionTokens = 1024

// AnthropicClient generates completions via the Anthropic messages API.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

var _ Client = (*AnthropicClient)(nil)

// NewAnthropicClient builds a client for the given model. baseURL is
// optional and overrides the API endpoint when set. timeout bounds each
// completion call at the HTTP layer; zero leaves it unbounded.
func NewAnthropicClient(apiKey, model, baseURL string, timeout time.Duration) *AnthropicClient {
	var opts []anthropic.ClientOption
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		opts = append(opts, anthropic.WithHTTPClient(&http.Client{Timeout: timeout}))
	}
	return &AnthropicClient{
		client: anthropic.NewClient(apiKey, opts...),
		model:  model,
	}
}

// Complete implements Client.
func (c *AnthropicClient) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxCompletionTokens,
		System:    system,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(user),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic completion failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			sb.WriteString(*block.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", errors.New("anthropic returned an empty completion")
	}
	return text, nil
}

// Model implements Client.
func (c *AnthropicClient) Model() string {
	return c.model
}
