package service

import (
	"context"
)

// AIClient is the interface for chat-completion providers
type AIClient interface {
	// ChatCompletion performs a single non-streaming completion
	ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error)

	// IsEnabled returns whether the AI client is configured and ready
	IsEnabled() bool
}

// Ensure OpenAIClient implements AIClient
var _ AIClient = (*OpenAIClient)(nil)

func aiAvailable(c AIClient) bool {
	return c != nil && c.IsEnabled()
}
