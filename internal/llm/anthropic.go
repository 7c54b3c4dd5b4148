package llm

import (
	"context"
	"errors"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicConfig configures the Anthropic client.
type AnthropicConfig struct {
	APIKey       string
	DefaultModel string
	MaxTokens    int
}

// AnthropicClient is the Anthropic completion client.
type AnthropicClient struct {
	client       *anthropic.Client
	name         string
	defaultModel string
	maxTokens    int
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(name string, cfg AnthropicConfig) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}

	defaultModel := cfg.DefaultModel
	if defaultModel == "" {
		defaultModel = "claude-3-5-sonnet-20241022"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	return &AnthropicClient{
		client:       anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		name:         name,
		defaultModel: defaultModel,
		maxTokens:    maxTokens,
	}, nil
}

// Name returns the provider name.
func (c *AnthropicClient) Name() string {
	return c.name
}

// Models returns the available models.
func (c *AnthropicClient) Models(ctx context.Context) ([]string, error) {
	return []string{
		"claude-3-5-sonnet-20241022",
		"claude-3-5-haiku-20241022",
		"claude-3-opus-20240229",
		"claude-3-haiku-20240307",
	}, nil
}

// Ping is a no-op; the hosted API needs no warm-up.
func (c *AnthropicClient) Ping(ctx context.Context) error {
	return nil
}

// Chat sends a completion request. System-role messages are folded into the
// request's system field, as the Messages API rejects them in the transcript.
func (c *AnthropicClient) Chat(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	var system []anthropic.TextBlockParam
	var messages []anthropic.MessageParam
	for _, msg := range req.Messages {
		if msg.Role == "system" {
			system = append(system, anthropic.TextBlockParam{
				Type: anthropic.F(anthropic.TextBlockParamTypeText),
				Text: anthropic.F(msg.Content),
			})
			continue
		}
		messages = append(messages, anthropic.MessageParam{
			Role: anthropic.F(anthropic.MessageParamRole(msg.Role)),
			Content: anthropic.F([]anthropic.ContentBlockParamUnion{
				anthropic.TextBlockParam{
					Type: anthropic.F(anthropic.TextBlockParamTypeText),
					Text: anthropic.F(msg.Content),
				},
			}),
		})
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.F(model),
		MaxTokens: anthropic.F(int64(maxTokens)),
		Messages:  anthropic.F(messages),
	}
	if len(system) > 0 {
		params.System = anthropic.F(system)
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, err
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			content += block.Text
		}
	}

	return &CompletionResponse{
		Content:   content,
		Model:     resp.Model,
		TokensIn:  int(resp.Usage.InputTokens),
		TokensOut: int(resp.Usage.OutputTokens),
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}
