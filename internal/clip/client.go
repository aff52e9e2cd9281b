// Package clip talks to the CLIP image-embedding inference service.
package clip

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/gallery-ai/critic/internal/critiqueerrors"
)

const embedImagePath = "/embed/image"

// Model produces an embedding for a preprocessed image.
type Model interface {
	EmbedImage(ctx context.Context, img image.Image) ([]float32, error)
}

// ClientOptions configures the inference service client.
type ClientOptions struct {
	// BaseURL of the inference service, e.g. http://localhost:8000.
	BaseURL string
	// RetryMax is the maximum number of retries (default: 3).
	RetryMax int
	// RetryWaitMin and RetryWaitMax bound the backoff between retries.
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// Timeout is the per-attempt HTTP timeout (default: 30 seconds).
	Timeout time.Duration
}

// Client calls the inference service over HTTP. The service receives the
// preprocessed image as PNG and returns the raw image features.
type Client struct {
	baseURL    string
	httpClient *retryablehttp.Client
}

// NewClient creates a Client with retrying, instrumented transport.
func NewClient(opts ClientOptions) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	if opts.RetryMax == 0 {
		opts.RetryMax = 3
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	if opts.RetryWaitMin > 0 {
		retryClient.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		retryClient.RetryWaitMax = opts.RetryWaitMax
	}
	retryClient.HTTPClient.Timeout = opts.Timeout
	retryClient.HTTPClient.Transport = otelhttp.NewTransport(retryClient.HTTPClient.Transport)
	retryClient.Logger = nil

	return &Client{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		httpClient: retryClient,
	}
}

// embeddingResponse accepts both {"embedding": [...]} and the
// OpenAI-style {"data": [{"embedding": [...]}]} shapes.
type embeddingResponse struct {
	Embedding []float32 `json:"embedding"`
	Data      []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// EmbedImage returns the raw (unnormalized) image features.
// All failures are reported as ModelInferenceError.
func (c *Client) EmbedImage(ctx context.Context, img image.Image) ([]float32, error) {
	var body bytes.Buffer
	if err := png.Encode(&body, img); err != nil {
		return nil, critiqueerrors.NewModelInferenceError("encode model input", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+embedImagePath, body.Bytes())
	if err != nil {
		return nil, critiqueerrors.NewModelInferenceError("create request", err)
	}
	req.Header.Set("Content-Type", "image/png")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, critiqueerrors.NewModelInferenceError("request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		return nil, critiqueerrors.NewModelInferenceError("",
			fmt.Errorf("inference service returned %d: %s", resp.StatusCode, string(bodyBytes)))
	}

	var result embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, critiqueerrors.NewModelInferenceError("decode response", err)
	}

	vector := result.Embedding
	if len(vector) == 0 && len(result.Data) > 0 {
		vector = result.Data[0].Embedding
	}

	if len(vector) == 0 {
		return nil, critiqueerrors.NewModelInferenceError("decode response", errors.New("response carries no embedding"))
	}

	return vector, nil
}

var _ Model = (*Client)(nil)
