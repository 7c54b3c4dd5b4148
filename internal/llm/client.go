// Package llm provides completion-client interfaces and implementations.
package llm

import (
	"context"
)

// ChatMessage is one message of a provider-agnostic completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is a provider-agnostic completion request.
type CompletionRequest struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
}

// CompletionResponse is a provider-agnostic completion response.
type CompletionResponse struct {
	Content   string
	Model     string
	TokensIn  int
	TokensOut int
	LatencyMs int64
}

// Client is the capability interface every provider implements.
type Client interface {
	// Chat sends a completion request. An empty response content is not an
	// error at this level; callers decide how to surface it.
	Chat(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Ping warms up or health-checks the provider endpoint.
	Ping(ctx context.Context) error

	// Models lists the models the provider exposes. A nil slice means
	// listing is unsupported.
	Models(ctx context.Context) ([]string, error)

	// Name returns the provider name.
	Name() string
}
