package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gallery-ai/critic/internal/llm"
)

const completionResponse = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o-mini",
  "choices": [{"index": 0, "message": {"role": "assistant", "content": "  A fine study.  "}, "finish_reason": "stop"}]
}`

func newTestServer(t *testing.T, inspect func(body map[string]any)) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)

		var body map[string]any
		assert.NoError(t, json.Unmarshal(raw, &body))
		inspect(body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionResponse))
	}))
}

func TestClient_Complete(t *testing.T) {
	t.Run("multimodal request keeps part order", func(t *testing.T) {
		server := newTestServer(t, func(body map[string]any) {
			assert.Equal(t, "critic-model", body["model"])
			assert.InDelta(t, 400, body["max_tokens"], 0)

			messages := body["messages"].([]any)
			require.Len(t, messages, 2)
			assert.Equal(t, "system", messages[0].(map[string]any)["role"])

			content := messages[1].(map[string]any)["content"].([]any)
			require.Len(t, content, 3)
			assert.Equal(t, "image_url", content[0].(map[string]any)["type"])
			url := content[0].(map[string]any)["image_url"].(map[string]any)["url"].(string)
			assert.Equal(t, "data:image/jpeg;base64,AQID", url)
			assert.Equal(t, "image_url", content[1].(map[string]any)["type"])
			assert.Equal(t, "text", content[2].(map[string]any)["type"])
		})
		defer server.Close()

		client := NewClient("test-key", WithModel("critic-model"), WithBaseURL(server.URL),
			WithRequestOptions(option.WithMaxRetries(0)))

		out, err := client.Complete(context.Background(), llm.Request{
			System: "be kind",
			Parts: []llm.Part{
				llm.ImagePart("image/jpeg", []byte{1, 2, 3}),
				llm.ImagePart("image/jpeg", []byte{4}),
				llm.TextPart("critique these"),
			},
			MaxTokens: 400,
		})
		require.NoError(t, err)
		assert.Equal(t, "A fine study.", out)
	})

	t.Run("text request with json mode", func(t *testing.T) {
		server := newTestServer(t, func(body map[string]any) {
			messages := body["messages"].([]any)
			require.Len(t, messages, 1)
			assert.Equal(t, "first\n\nsecond", messages[0].(map[string]any)["content"])

			format := body["response_format"].(map[string]any)
			assert.Equal(t, "json_object", format["type"])
		})
		defer server.Close()

		client := NewClient("test-key", WithBaseURL(server.URL), WithRequestOptions(option.WithMaxRetries(0)))
		assert.Equal(t, defaultModel, client.Model())

		_, err := client.Complete(context.Background(), llm.Request{
			Parts: []llm.Part{llm.TextPart("first"), llm.TextPart("second")},
			JSON:  true,
		})
		require.NoError(t, err)
	})

	t.Run("empty request is rejected before calling the API", func(t *testing.T) {
		client := NewClient("test-key", WithBaseURL("http://127.0.0.1:1"))

		_, err := client.Complete(context.Background(), llm.Request{})
		require.ErrorIs(t, err, llm.ErrEmptyRequest)
	})

	t.Run("api error is wrapped", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"bad","type":"invalid_request_error"}}`))
		}))
		defer server.Close()

		client := NewClient("test-key", WithBaseURL(server.URL), WithRequestOptions(option.WithMaxRetries(0)))

		_, err := client.Complete(context.Background(), llm.Request{Parts: []llm.Part{llm.TextPart("x")}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "openai chat completion")
	})
}
