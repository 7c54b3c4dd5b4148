package llm

import (
	"context"
	"errors"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures an OpenAI or OpenAI-compatible client. A non-empty
// BaseURL points the client at a self-hosted endpoint; ModelList supplies the
// model catalog for endpoints without a listing API.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxTokens    int
	ModelList    []string
}

// OpenAIClient talks to OpenAI or any OpenAI-compatible chat endpoint.
type OpenAIClient struct {
	client       *openai.Client
	name         string
	baseURL      string
	defaultModel string
	maxTokens    int
	models       []string
}

// NewOpenAIClient creates a client for the OpenAI API or a compatible
// self-hosted endpoint.
func NewOpenAIClient(name string, cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	defaultModel := cfg.DefaultModel
	if defaultModel == "" {
		defaultModel = openai.GPT4o
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	return &OpenAIClient{
		client:       openai.NewClientWithConfig(clientCfg),
		name:         name,
		baseURL:      cfg.BaseURL,
		defaultModel: defaultModel,
		maxTokens:    maxTokens,
		models:       cfg.ModelList,
	}, nil
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string {
	return c.name
}

// Models returns the configured model catalog, or nil when listing is
// unsupported for this endpoint.
func (c *OpenAIClient) Models(ctx context.Context) ([]string, error) {
	return c.models, nil
}

// Ping warms up the endpoint. Hosted OpenAI needs no warm-up; self-hosted
// endpoints get a minimal completion to load the model.
func (c *OpenAIClient) Ping(ctx context.Context) error {
	if c.baseURL == "" {
		return nil
	}
	_, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.defaultModel,
		MaxTokens: 1,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "ping"},
		},
	})
	return err
}

// Chat sends a completion request.
func (c *OpenAIClient) Chat(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		return nil, err
	}

	var content string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	return &CompletionResponse{
		Content:   content,
		Model:     resp.Model,
		TokensIn:  resp.Usage.PromptTokens,
		TokensOut: resp.Usage.CompletionTokens,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}
