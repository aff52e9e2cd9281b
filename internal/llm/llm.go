// Package llm defines the provider-neutral boundary to generative chat models.
package llm

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrEmptyRequest is returned when a request carries no parts.
	ErrEmptyRequest = errors.New("llm: request has no content")
	// ErrEmptyResponse is returned when the model produced no text.
	ErrEmptyResponse = errors.New("llm: empty response")
)

// Image is inline image data attached to a request.
type Image struct {
	MIMEType string
	Data     []byte
}

// Part is one element of a multimodal user message: text or an image.
type Part struct {
	Text  string
	Image *Image
}

// TextPart returns a text part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// ImagePart returns an inline image part.
func ImagePart(mimeType string, data []byte) Part {
	return Part{Image: &Image{MIMEType: mimeType, Data: data}}
}

// Request is a single-turn completion request. Parts are sent in order as
// one user message.
type Request struct {
	System    string
	Parts     []Part
	MaxTokens int
	// JSON asks the provider for a JSON object response where supported.
	JSON bool
}

// Validate reports whether the request has anything to send.
func (r Request) Validate() error {
	for _, p := range r.Parts {
		if p.Image != nil || strings.TrimSpace(p.Text) != "" {
			return nil
		}
	}

	return ErrEmptyRequest
}

// ImageCount returns the number of image parts.
func (r Request) ImageCount() int {
	n := 0

	for _, p := range r.Parts {
		if p.Image != nil {
			n++
		}
	}

	return n
}

// ChatModel produces a text completion for a request.
type ChatModel interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ChatModelFunc adapts a function to ChatModel.
type ChatModelFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f.
func (f ChatModelFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
