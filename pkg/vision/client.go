// Package vision provides the Anthropic vision-model client used to extract
// fixture inventories from blueprint images.
package vision

import (
	"context"
	"fmt"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

// Image is one base64-encoded image payload with its media type.
type Image struct {
	MediaType string
	Data      string
}

// Client defines the vision-provider call. Use this interface for dependency
// injection to enable mocking in tests.
type Client interface {
	// AnalyzeImage submits one image plus an instruction prompt and
	// returns the provider's free-text response.
	AnalyzeImage(ctx context.Context, image Image, prompt string) (string, error)

	// Model returns the configured model name.
	Model() string
}

// Config holds configuration for creating a vision client.
type Config struct {
	APIKey    string // Anthropic API key
	Model     string // Model name, e.g. "claude-3-5-sonnet-20241022"
	MaxTokens int    // Response token budget
}

// AnthropicClient calls the Anthropic Messages API with image content.
type AnthropicClient struct {
	client    *anthropic.Client
	model     string
	maxTokens int
	logger    *zap.Logger
}

// Ensure AnthropicClient implements Client at compile time.
var _ Client = (*AnthropicClient)(nil)

// NewClient creates a new Anthropic vision client.
func NewClient(cfg *Config, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &AnthropicClient{
		client:    anthropic.NewClient(cfg.APIKey),
		model:     cfg.Model,
		maxTokens: maxTokens,
		logger:    logger.Named("vision"),
	}, nil
}

// AnalyzeImage submits the image and prompt as a single user message and
// returns the first text block of the response.
func (c *AnthropicClient) AnalyzeImage(ctx context.Context, image Image, prompt string) (string, error) {
	c.logger.Debug("vision request",
		zap.String("model", c.model),
		zap.String("media_type", image.MediaType),
		zap.Int("payload_len", len(image.Data)))

	start := time.Now()

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{
					Type: anthropic.MessagesContentTypeImage,
					Source: &anthropic.MessageContentSource{
						Type:      anthropic.MessagesContentSourceTypeBase64,
						MediaType: image.MediaType,
						Data:      image.Data,
					},
				},
				{Type: anthropic.MessagesContentTypeText, Text: &prompt},
			}},
		},
	})
	if err != nil {
		c.logger.Error("vision request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", fmt.Errorf("create messages: %w", err)
	}

	text := ""
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			text = *block.Text
			break
		}
	}
	if text == "" {
		return "", fmt.Errorf("no text content in response")
	}

	c.logger.Info("vision request completed",
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
		zap.Int("response_len", len(text)),
		zap.Duration("elapsed", time.Since(start)))

	return text, nil
}

// Model returns the configured model name.
func (c *AnthropicClient) Model() string {
	return c.model
}
