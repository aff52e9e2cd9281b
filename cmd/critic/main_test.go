package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/gallery-ai/critic/internal/models"
	"github.com/gallery-ai/critic/internal/service"
)

func sampleCritique() *service.Critique {
	return &service.Critique{
		RequestID:  "req-1",
		Text:       "Strong composition.",
		References: []string{"ref.jpg"},
		Evidence: models.EvidenceBundle{Records: []models.EvidenceRecord{
			{Filename: "ref.jpg", Dimension: models.DimensionColor, Level: "Good", Reason: "warm palette"},
		}},
		Notes: []string{"Reference evaluations were unavailable for the similar artworks"},
	}
}

func TestWriteCritique(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeCritique(&buf, "text", sampleCritique()))
		assert.Equal(t, "Strong composition.\n\nReferences: ref.jpg\n"+
			"Note: Reference evaluations were unavailable for the similar artworks\n", buf.String())
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeCritique(&buf, "json", sampleCritique()))

		var out critiqueOutput
		require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
		assert.Equal(t, "req-1", out.RequestID)
		assert.Len(t, out.Evidence, 1)
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeCritique(&buf, "yaml", sampleCritique()))

		var out map[string]any
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &out))
		assert.Equal(t, "Strong composition.", out["critique"])
		assert.Equal(t, []any{"ref.jpg"}, out["references"])
	})
}

func TestCritiqueCommandFlags(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"critique", "--image", "x.jpg", "--output", "xml"})
	root.SetOut(&bytes.Buffer{})

	require.ErrorIs(t, root.Execute(), errUnknownOutput)
}
