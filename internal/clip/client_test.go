package clip

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gallery-ai/critic/internal/critiqueerrors"
)

func testImage(c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := range 4 {
		for x := range 4 {
			img.Set(x, y, c)
		}
	}

	return img
}

func newTestClient(url string) *Client {
	return NewClient(ClientOptions{
		BaseURL:      url,
		RetryMax:     1,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: time.Millisecond,
	})
}

func TestClient_EmbedImage(t *testing.T) {
	t.Run("returns embedding from flat response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, embedImagePath, r.URL.Path)
			assert.Equal(t, "image/png", r.Header.Get("Content-Type"))

			_, err := png.Decode(r.Body)
			assert.NoError(t, err)

			_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{0.1, 0.2, 0.3}})
		}))
		defer server.Close()

		vec, err := newTestClient(server.URL).EmbedImage(context.Background(), testImage(color.White))
		require.NoError(t, err)
		assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	})

	t.Run("returns embedding from data response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"data":[{"embedding":[1,2]}]}`))
		}))
		defer server.Close()

		vec, err := newTestClient(server.URL + "/").EmbedImage(context.Background(), testImage(color.White))
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 2}, vec)
	})

	t.Run("non-2xx is a model inference error", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).EmbedImage(context.Background(), testImage(color.White))
		require.ErrorIs(t, err, critiqueerrors.ErrModelInference)
		assert.Equal(t, int32(2), calls.Load(), "one retry expected")
	})

	t.Run("bad request is not retried", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			http.Error(w, "bad image", http.StatusBadRequest)
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).EmbedImage(context.Background(), testImage(color.White))
		require.ErrorIs(t, err, critiqueerrors.ErrModelInference)
		assert.Contains(t, err.Error(), "400")
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("empty embedding is a model inference error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"embedding":[]}`))
		}))
		defer server.Close()

		_, err := newTestClient(server.URL).EmbedImage(context.Background(), testImage(color.White))
		require.ErrorIs(t, err, critiqueerrors.ErrModelInference)
	})

	t.Run("unreachable service", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		_, err := newTestClient(url).EmbedImage(context.Background(), testImage(color.White))
		require.ErrorIs(t, err, critiqueerrors.ErrModelInference)
	})
}

func TestMockModel(t *testing.T) {
	m := NewMockModel()

	a1, err := m.EmbedImage(context.Background(), testImage(color.White))
	require.NoError(t, err)
	a2, err := m.EmbedImage(context.Background(), testImage(color.White))
	require.NoError(t, err)
	b, err := m.EmbedImage(context.Background(), testImage(color.Black))
	require.NoError(t, err)

	assert.Len(t, a1, 512)
	assert.Equal(t, a1, a2)
	assert.NotEqual(t, a1, b)
	assert.Len(t, NewMockModelWithDimensions(8).mustEmbed(t), 8)
}

func (m *MockModel) mustEmbed(t *testing.T) []float32 {
	t.Helper()

	v, err := m.EmbedImage(context.Background(), testImage(color.Gray{Y: 10}))
	require.NoError(t, err)

	return v
}
