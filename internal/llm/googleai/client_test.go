package googleai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gallery-ai/critic/internal/llm"
)

func TestBuildContents(t *testing.T) {
	contents := buildContents(llm.Request{Parts: []llm.Part{
		llm.ImagePart("image/jpeg", []byte{1, 2}),
		llm.TextPart("critique"),
	}})

	require.Len(t, contents, 1)
	assert.Equal(t, "user", contents[0].Role)
	require.Len(t, contents[0].Parts, 2)

	require.NotNil(t, contents[0].Parts[0].InlineData)
	assert.Equal(t, "image/jpeg", contents[0].Parts[0].InlineData.MIMEType)
	assert.Equal(t, []byte{1, 2}, contents[0].Parts[0].InlineData.Data)
	assert.Equal(t, "critique", contents[0].Parts[1].Text)
}

func TestBuildConfig(t *testing.T) {
	cfg := buildConfig(llm.Request{System: "be terse", MaxTokens: 400, JSON: true})

	require.NotNil(t, cfg.SystemInstruction)
	assert.Equal(t, "be terse", cfg.SystemInstruction.Parts[0].Text)
	assert.Equal(t, int32(400), cfg.MaxOutputTokens)
	assert.Equal(t, "application/json", cfg.ResponseMIMEType)

	empty := buildConfig(llm.Request{})
	assert.Nil(t, empty.SystemInstruction)
	assert.Zero(t, empty.MaxOutputTokens)
}
