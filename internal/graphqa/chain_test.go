package graphqa

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gallery-ai/critic/internal/llm"
	"github.com/gallery-ai/critic/internal/models"
)

type mockExecutor struct {
	describeFunc func(ctx context.Context) (string, error)
	runFunc      func(ctx context.Context, query string, limit int) ([]map[string]any, error)
}

func (m *mockExecutor) DescribeSchema(ctx context.Context) (string, error) {
	if m.describeFunc != nil {
		return m.describeFunc(ctx)
	}

	return "artworks(id text, filename text)\nhas_level(artwork_id text, dimension text, level text, reason text)\n", nil
}

func (m *mockExecutor) RunReadOnlyQuery(ctx context.Context, query string, limit int) ([]map[string]any, error) {
	return m.runFunc(ctx, query, limit)
}

// scriptedModel answers query-generation requests with sql and answer requests with answer.
func scriptedModel(sql, answer string, seen *[]llm.Request) llm.ChatModel {
	return llm.ChatModelFunc(func(_ context.Context, req llm.Request) (string, error) {
		if seen != nil {
			*seen = append(*seen, req)
		}

		if strings.Contains(req.Parts[0].Text, "Schema:") {
			return sql, nil
		}

		return answer, nil
	})
}

func TestChain_Ask(t *testing.T) {
	t.Run("generates, executes and answers", func(t *testing.T) {
		var seen []llm.Request
		var gotQuery string
		var gotLimit int

		exec := &mockExecutor{runFunc: func(_ context.Context, query string, limit int) ([]map[string]any, error) {
			gotQuery, gotLimit = query, limit
			return []map[string]any{{"filename": "a.jpg", "level": "Good"}}, nil
		}}

		chain := NewChain(ChainParams{
			Model:    scriptedModel("```sql\nSELECT filename FROM artworks\n```", "a.jpg is rated Good.", &seen),
			Executor: exec,
		})

		answer, err := chain.Ask(context.Background(), "Which artworks have good color?")
		require.NoError(t, err)
		assert.Equal(t, "a.jpg is rated Good.", answer)
		assert.Equal(t, "SELECT filename FROM artworks", gotQuery)
		assert.Equal(t, DefaultTopK, gotLimit)

		require.Len(t, seen, 2)
		assert.Contains(t, seen[0].System, "Below Average")
		assert.Contains(t, seen[0].Parts[0].Text, "has_level(")
		assert.Contains(t, seen[1].Parts[0].Text, `"filename":"a.jpg"`)
		assert.Contains(t, seen[1].Parts[0].Text, "Which artworks have good color?")
	})

	t.Run("empty rows still produce an answer", func(t *testing.T) {
		var seen []llm.Request
		exec := &mockExecutor{runFunc: func(context.Context, string, int) ([]map[string]any, error) {
			return nil, nil
		}}

		chain := NewChain(ChainParams{Model: scriptedModel("SELECT 1", "I don't know.", &seen), Executor: exec})

		answer, err := chain.Ask(context.Background(), "anything?")
		require.NoError(t, err)
		assert.Equal(t, "I don't know.", answer)
		assert.Contains(t, seen[1].Parts[0].Text, "Information:\n[]")
	})

	t.Run("blank question", func(t *testing.T) {
		chain := NewChain(ChainParams{Model: scriptedModel("", "", nil), Executor: &mockExecutor{}})

		_, err := chain.Ask(context.Background(), "  ")
		require.ErrorIs(t, err, ErrEmptyQuestion)
	})

	t.Run("executor failure propagates", func(t *testing.T) {
		storeErr := errors.New("store down")
		exec := &mockExecutor{runFunc: func(context.Context, string, int) ([]map[string]any, error) {
			return nil, storeErr
		}}

		chain := NewChain(ChainParams{Model: scriptedModel("SELECT 1", "", nil), Executor: exec})

		_, err := chain.Ask(context.Background(), "q")
		require.ErrorIs(t, err, storeErr)
	})

	t.Run("schema failure propagates", func(t *testing.T) {
		exec := &mockExecutor{describeFunc: func(context.Context) (string, error) {
			return "", errors.New("no schema")
		}}

		chain := NewChain(ChainParams{Model: scriptedModel("", "", nil), Executor: exec})

		_, err := chain.Ask(context.Background(), "q")
		require.ErrorContains(t, err, "describe schema")
	})
}

func TestChain_QueryAnnotations(t *testing.T) {
	var seen []llm.Request
	var gotLimit int

	exec := &mockExecutor{runFunc: func(_ context.Context, _ string, limit int) ([]map[string]any, error) {
		gotLimit = limit
		return []map[string]any{{"filename": "a.jpg"}}, nil
	}}

	chain := NewChain(ChainParams{
		Model:          scriptedModel("SELECT 1", `[{"filename":"a.jpg"}]`, &seen),
		Executor:       exec,
		AnnotationTopK: 7,
	})

	payload, err := chain.QueryAnnotations(context.Background(), AnnotationRequest{Filenames: []string{"a.jpg", "b.jpg"}})
	require.NoError(t, err)
	assert.Equal(t, `[{"filename":"a.jpg"}]`, payload)
	assert.Equal(t, 7, gotLimit)
	assert.Contains(t, seen[0].Parts[0].Text, "a.jpg, b.jpg")
}

func TestAnnotationQuestion(t *testing.T) {
	plain := AnnotationQuestion(AnnotationRequest{Filenames: []string{"a.jpg"}})
	assert.Contains(t, plain, "relevant works I want to query: a.jpg.")
	assert.Contains(t, plain, "You must only return JSON")
	assert.NotContains(t, plain, "Only these dimension values are valid")

	narrowed := AnnotationQuestion(AnnotationRequest{Filenames: []string{"a.jpg"}, Narrowed: true})
	assert.Contains(t, narrowed, "Only these dimension values are valid: theme_and_logic, creativity")
	assert.Contains(t, narrowed, "mood.")

	subset := AnnotationQuestion(AnnotationRequest{
		Filenames:  []string{"a.jpg"},
		Dimensions: []models.Dimension{models.DimensionColor},
		Narrowed:   true,
	})
	assert.Contains(t, subset, "valid: color.")
}

func TestExtractQuery(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare", "  SELECT 1  ", "SELECT 1"},
		{"fenced with tag", "```sql\nSELECT 1\n```", "SELECT 1"},
		{"fenced without tag", "```\nSELECT 1\n```", "SELECT 1"},
		{"fenced multiline select", "```\nSELECT\n  filename\nFROM artworks\n```", "SELECT\n  filename\nFROM artworks"},
		{"prose around fence", "Here you go:\n```postgresql\nWITH x AS (SELECT 1) SELECT * FROM x\n```\nEnjoy", "WITH x AS (SELECT 1) SELECT * FROM x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractQuery(tt.in))
		})
	}
}
