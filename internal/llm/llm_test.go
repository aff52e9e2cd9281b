package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_Validate(t *testing.T) {
	assert.ErrorIs(t, Request{}.Validate(), ErrEmptyRequest)
	assert.ErrorIs(t, Request{Parts: []Part{TextPart("   ")}}.Validate(), ErrEmptyRequest)
	assert.NoError(t, Request{Parts: []Part{TextPart("hi")}}.Validate())
	assert.NoError(t, Request{Parts: []Part{ImagePart("image/jpeg", []byte{1})}}.Validate())
}

func TestRequest_ImageCount(t *testing.T) {
	req := Request{Parts: []Part{
		ImagePart("image/jpeg", []byte{1}),
		ImagePart("image/jpeg", []byte{2}),
		TextPart("prompt"),
	}}
	assert.Equal(t, 2, req.ImageCount())
}

func TestChatModelFunc(t *testing.T) {
	var m ChatModel = ChatModelFunc(func(_ context.Context, req Request) (string, error) {
		return req.Parts[0].Text + "!", nil
	})

	out, err := m.Complete(context.Background(), Request{Parts: []Part{TextPart("hello")}})
	require.NoError(t, err)
	assert.Equal(t, "hello!", out)
}
