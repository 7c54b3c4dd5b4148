package llm

import (
	"context"
)

// MockClient echoes the last message back. It backs the "mock" provider for
// local development and doubles as a test fixture.
type MockClient struct {
	// Response overrides the echo reply when set.
	Response string
	// Empty forces an empty-content response.
	Empty bool
	// Err is returned from Chat when set.
	Err error

	// Requests records every completion request received.
	Requests []*CompletionRequest
}

// NewMockClient creates a mock client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Name returns the provider name.
func (c *MockClient) Name() string {
	return "mock"
}

// Models reports listing as unsupported.
func (c *MockClient) Models(ctx context.Context) ([]string, error) {
	return nil, nil
}

// Ping is a no-op.
func (c *MockClient) Ping(ctx context.Context) error {
	return nil
}

// Chat echoes the last message of the request.
func (c *MockClient) Chat(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	c.Requests = append(c.Requests, req)
	if c.Err != nil {
		return nil, c.Err
	}
	if c.Empty {
		return &CompletionResponse{Model: "mock"}, nil
	}
	content := c.Response
	if content == "" && len(req.Messages) > 0 {
		content = "I have received the following chat: " + req.Messages[len(req.Messages)-1].Content
	}
	return &CompletionResponse{Content: content, Model: "mock"}, nil
}
