// Package openai implements llm.ChatModel on the official OpenAI Go SDK.
// Any OpenAI-compatible endpoint (e.g. DeepSeek) works through WithBaseURL.
package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/shared"

	"github.com/gallery-ai/critic/internal/llm"
)

const defaultModel = "gpt-4o-mini"

// Client calls the chat completions API.
type Client struct {
	sdk   openaisdk.Client
	model string
}

type clientConfig struct {
	model   string
	options []option.RequestOption
}

// ClientOption configures the Client.
type ClientOption func(*clientConfig)

// WithModel sets the chat model name. Empty uses the default.
func WithModel(model string) ClientOption {
	return func(c *clientConfig) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *clientConfig) {
		if baseURL != "" {
			c.options = append(c.options, option.WithBaseURL(baseURL))
		}
	}
}

// WithRequestOptions passes raw SDK options, e.g. option.WithMaxRetries.
func WithRequestOptions(opts ...option.RequestOption) ClientOption {
	return func(c *clientConfig) {
		c.options = append(c.options, opts...)
	}
}

// NewClient creates a chat client using the official SDK.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	cfg := &clientConfig{model: defaultModel}
	for _, opt := range opts {
		opt(cfg)
	}

	sdkOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, cfg.options...)

	return &Client{
		sdk:   openaisdk.NewClient(sdkOpts...),
		model: cfg.model,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Complete sends the request as a system message plus one multimodal user message.
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(c.model),
		Messages: buildMessages(req),
	}

	if req.MaxTokens > 0 {
		params.MaxTokens = param.NewOpt(int64(req.MaxTokens))
	}

	if req.JSON {
		params.ResponseFormat = openaisdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := c.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", llm.ErrEmptyResponse
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", llm.ErrEmptyResponse
	}

	return content, nil
}

func buildMessages(req llm.Request) []openaisdk.ChatCompletionMessageParamUnion {
	var messages []openaisdk.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openaisdk.SystemMessage(req.System))
	}

	// Text-only requests go as a plain string for endpoints without vision support.
	if req.ImageCount() == 0 {
		var texts []string
		for _, p := range req.Parts {
			texts = append(texts, p.Text)
		}

		return append(messages, openaisdk.UserMessage(strings.Join(texts, "\n\n")))
	}

	parts := make([]openaisdk.ChatCompletionContentPartUnionParam, 0, len(req.Parts))
	for _, p := range req.Parts {
		if p.Image != nil {
			parts = append(parts, openaisdk.ImageContentPart(openaisdk.ChatCompletionContentPartImageImageURLParam{
				URL: dataURL(p.Image),
			}))

			continue
		}

		parts = append(parts, openaisdk.TextContentPart(p.Text))
	}

	return append(messages, openaisdk.UserMessage(parts))
}

func dataURL(img *llm.Image) string {
	return "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

var _ llm.ChatModel = (*Client)(nil)
