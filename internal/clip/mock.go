package clip

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"image"
	"image/color"
)

// MockModel implements Model for tests. It derives a deterministic vector
// from the image pixels, so identical images always embed identically.
type MockModel struct {
	dimensions int
}

// NewMockModel creates a mock model. Default dimensions is 512 to match ViT-B/32.
func NewMockModel() *MockModel {
	return &MockModel{dimensions: 512}
}

// NewMockModelWithDimensions creates a mock model with custom dimensions.
func NewMockModelWithDimensions(dimensions int) *MockModel {
	return &MockModel{dimensions: dimensions}
}

// EmbedImage hashes the pixels and spreads the digest across the vector.
// The output is not normalized, like real image features.
func (m *MockModel) EmbedImage(ctx context.Context, img image.Image) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h := sha256.New()
	bounds := img.Bounds()
	buf := make([]byte, 4)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			buf[0], buf[1], buf[2], buf[3] = c.R, c.G, c.B, c.A
			h.Write(buf)
		}
	}

	seed := h.Sum(nil)
	vector := make([]float32, m.dimensions)

	for i := range vector {
		// Re-hash per block of 8 components so long vectors don't repeat.
		if i%8 == 0 {
			var idx [4]byte
			binary.BigEndian.PutUint32(idx[:], uint32(i))
			block := sha256.Sum256(append(seed, idx[:]...))
			seed = block[:]
		}

		b := binary.BigEndian.Uint16(seed[(i%8)*2:])
		vector[i] = float32(b)/32767.5 - 1.0
	}

	return vector, nil
}

var _ Model = (*MockModel)(nil)
