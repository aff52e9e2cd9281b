// Package googleai implements llm.ChatModel on the Google Gen AI SDK (Gemini API).
package googleai

import (
	"context"
	"fmt"
	"math"
	"strings"

	"google.golang.org/genai"

	"github.com/gallery-ai/critic/internal/llm"
)

const defaultModel = "gemini-2.5-flash"

// Client calls Gemini GenerateContent.
type Client struct {
	client *genai.Client
	model  string
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithModel sets the model name. Empty uses the default.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// NewClient creates a Gemini chat client.
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("googleai client: %w", err)
	}

	client := &Client{
		client: genaiClient,
		model:  defaultModel,
	}
	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Complete sends the parts as one user turn with inline image bytes.
func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, buildContents(req), buildConfig(req))
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", llm.ErrEmptyResponse
	}

	return text, nil
}

func buildContents(req llm.Request) []*genai.Content {
	parts := make([]*genai.Part, 0, len(req.Parts))
	for _, p := range req.Parts {
		if p.Image != nil {
			parts = append(parts, genai.NewPartFromBytes(p.Image.Data, p.Image.MIMEType))

			continue
		}

		parts = append(parts, genai.NewPartFromText(p.Text))
	}

	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

func buildConfig(req llm.Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}

	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	if req.MaxTokens > 0 && req.MaxTokens <= math.MaxInt32 {
		cfg.MaxOutputTokens = int32(req.MaxTokens) //nolint:gosec // bounded above
	}

	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	return cfg
}

var _ llm.ChatModel = (*Client)(nil)
