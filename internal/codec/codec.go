// Package codec turns raw image bytes into unit-length CLIP embeddings.
package codec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gallery-ai/critic/internal/clip"
	"github.com/gallery-ai/critic/internal/critiqueerrors"
	"github.com/gallery-ai/critic/internal/imaging"
	"github.com/gallery-ai/critic/pkg/embeddings"
)

const (
	// DefaultDimensions is the embedding width of CLIP ViT-B/32.
	DefaultDimensions = 512
	// DefaultInputSize is the square model input resolution.
	DefaultInputSize = 224
)

// VectorCodec encodes images with an embedding model and normalizes the result.
type VectorCodec struct {
	model      clip.Model
	dimensions int
	inputSize  int
	logger     *slog.Logger
}

// Option configures a VectorCodec.
type Option func(*VectorCodec)

// WithDimensions overrides the expected embedding width.
func WithDimensions(dimensions int) Option {
	return func(c *VectorCodec) {
		if dimensions > 0 {
			c.dimensions = dimensions
		}
	}
}

// WithInputSize overrides the model input resolution.
func WithInputSize(size int) Option {
	return func(c *VectorCodec) {
		if size > 0 {
			c.inputSize = size
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *VectorCodec) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a VectorCodec backed by model.
func New(model clip.Model, opts ...Option) *VectorCodec {
	c := &VectorCodec{
		model:      model,
		dimensions: DefaultDimensions,
		inputSize:  DefaultInputSize,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Dimensions returns the embedding width this codec produces.
func (c *VectorCodec) Dimensions() int {
	return c.dimensions
}

// Encode decodes the image, preprocesses it for the model and returns an
// L2-normalized embedding of exactly Dimensions() components.
//
// Errors are ImageDecodeError, ModelInferenceError or DegenerateVectorError.
func (c *VectorCodec) Encode(ctx context.Context, data []byte) ([]float32, error) {
	img, format, err := imaging.Decode(data)
	if err != nil {
		return nil, err
	}

	input := imaging.ResizeAndCenterCrop(imaging.Flatten(img), c.inputSize)

	vector, err := c.model.EmbedImage(ctx, input)
	if err != nil {
		if errors.Is(err, critiqueerrors.ErrModelInference) {
			return nil, err
		}

		return nil, critiqueerrors.NewModelInferenceError("embed image", err)
	}

	if len(vector) != c.dimensions {
		return nil, critiqueerrors.NewModelInferenceError("",
			fmt.Errorf("model returned %d dimensions, expected %d", len(vector), c.dimensions))
	}

	if err := embeddings.NormalizeL2(vector); err != nil {
		return nil, critiqueerrors.NewDegenerateVectorError(err.Error())
	}

	c.logger.Debug("image encoded", "format", format, "dimensions", len(vector))

	return vector, nil
}
