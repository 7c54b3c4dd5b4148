// Package telegram delivers outbound messages to the chat platform.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/session-relay/pkg/logger"
	"github.com/capitalize-ai/session-relay/pkg/metrics"
)

const defaultBaseURL = "https://api.telegram.org"

// DefaultMaxTextLength is the outbound chunk size limit. The platform caps
// messages at 4096 characters; 4000 leaves headroom for markup expansion.
const DefaultMaxTextLength = 4000

// Bot holds the per-namespace credentials for the platform API.
type Bot struct {
	Token         string
	WebhookURL    string
	WebhookSecret string
}

// Client sends messages through the platform's bot API. Replies longer than
// the length limit are chunked and sent strictly in order; the platform
// renders messages in receipt order, so the chunks are never sent in
// parallel.
type Client struct {
	http    *http.Client
	baseURL string
	bots    map[string]Bot
	maxLen  int
	logger  *logger.Logger
}

// NewClient creates a delivery client for the configured namespaces.
func NewClient(bots map[string]Bot, maxLen int, log *logger.Logger) *Client {
	if maxLen <= 0 {
		maxLen = DefaultMaxTextLength
	}
	return &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: defaultBaseURL,
		bots:    bots,
		maxLen:  maxLen,
		logger:  log,
	}
}

// WithBaseURL overrides the API base URL, used by tests.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = url
	return c
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendMessage delivers text to a conversation, chunked and in order. A text
// that trims to nothing is skipped without an API call.
func (c *Client) SendMessage(ctx context.Context, namespace string, chatID int64, text string) error {
	bot, ok := c.bots[namespace]
	if !ok {
		return fmt.Errorf("unknown bot namespace %q", namespace)
	}

	chunks := Chunk(text, c.maxLen)
	if len(chunks) == 0 {
		c.logger.Debug("skipped delivery of empty message", zap.String("namespace", namespace))
		return nil
	}

	for _, chunk := range chunks {
		if err := c.post(ctx, bot, "sendMessage", map[string]any{
			"chat_id": chatID,
			"text":    chunk,
		}); err != nil {
			return err
		}
		metrics.DeliveryChunksTotal.WithLabelValues(namespace).Inc()
	}
	return nil
}

// RegisterWebhooks points every configured bot at its webhook URL.
func (c *Client) RegisterWebhooks(ctx context.Context) error {
	for namespace, bot := range c.bots {
		if bot.WebhookURL == "" {
			continue
		}
		if err := c.post(ctx, bot, "setWebhook", map[string]any{
			"url":          bot.WebhookURL,
			"secret_token": bot.WebhookSecret,
		}); err != nil {
			return fmt.Errorf("failed to register webhook for %s: %w", namespace, err)
		}
		c.logger.Info("webhook registered", zap.String("namespace", namespace))
	}
	return nil
}

func (c *Client) post(ctx context.Context, bot Bot, method string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, bot.Token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	var result apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if !result.OK {
		return fmt.Errorf("%s rejected: %s", method, result.Description)
	}
	return nil
}
