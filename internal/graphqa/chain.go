// Package graphqa answers questions over the artwork rating graph.
//
// Chain is the language-model driven path: it generates one read-only SQL
// statement from the question and the live schema, runs it with a row cap,
// and phrases the answer from the returned rows. Direct answers the
// structured annotation request without a model.
package graphqa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gallery-ai/critic/internal/llm"
	"github.com/gallery-ai/critic/internal/models"
)

const (
	// DefaultTopK caps rows returned for free-form questions.
	DefaultTopK = 10
	// DefaultAnnotationTopK caps rows returned for annotation requests.
	DefaultAnnotationTopK = 20
)

// ErrEmptyQuestion is returned when Ask is called with a blank question.
var ErrEmptyQuestion = errors.New("graphqa: question is empty")

// AnnotationRequest asks for the HAS_LEVEL edges of a set of artworks.
// Narrowed requests restate the dimension whitelist and insist on bare JSON.
type AnnotationRequest struct {
	Filenames  []string
	Dimensions []models.Dimension
	Narrowed   bool
}

// Executor runs generated queries against the graph store.
type Executor interface {
	DescribeSchema(ctx context.Context) (string, error)
	RunReadOnlyQuery(ctx context.Context, query string, limit int) ([]map[string]any, error)
}

// ChainParams holds dependencies for NewChain.
type ChainParams struct {
	Model          llm.ChatModel
	Executor       Executor
	TopK           int
	AnnotationTopK int
	Logger         *slog.Logger
}

// Chain is the generate-execute-answer pipeline.
type Chain struct {
	model          llm.ChatModel
	executor       Executor
	topK           int
	annotationTopK int
	logger         *slog.Logger
}

// NewChain creates a Chain.
func NewChain(params ChainParams) *Chain {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}

	topK := params.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	annotationTopK := params.AnnotationTopK
	if annotationTopK <= 0 {
		annotationTopK = DefaultAnnotationTopK
	}

	return &Chain{
		model:          params.Model,
		executor:       params.Executor,
		topK:           topK,
		annotationTopK: annotationTopK,
		logger:         logger,
	}
}

// Ask answers a free-form question about the rated corpus.
func (c *Chain) Ask(ctx context.Context, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", ErrEmptyQuestion
	}

	return c.run(ctx, question, c.topK)
}

// QueryAnnotations renders the annotation request as a question and returns
// the model's answer, which is expected to be a JSON array.
func (c *Chain) QueryAnnotations(ctx context.Context, req AnnotationRequest) (string, error) {
	return c.run(ctx, AnnotationQuestion(req), c.annotationTopK)
}

func (c *Chain) run(ctx context.Context, question string, limit int) (string, error) {
	schema, err := c.executor.DescribeSchema(ctx)
	if err != nil {
		return "", fmt.Errorf("describe schema: %w", err)
	}

	generated, err := c.model.Complete(ctx, llm.Request{
		System: fmt.Sprintf(queryGenerationSystem, levelNames()),
		Parts:  []llm.Part{llm.TextPart(fmt.Sprintf(queryGenerationTemplate, schema, question))},
	})
	if err != nil {
		return "", fmt.Errorf("generate query: %w", err)
	}

	query := extractQuery(generated)
	c.logger.Debug("generated graph query", "query", query)

	rows, err := c.executor.RunReadOnlyQuery(ctx, query, limit)
	if err != nil {
		return "", fmt.Errorf("run graph query: %w", err)
	}

	information, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("marshal graph rows: %w", err)
	}

	if len(rows) == 0 {
		information = []byte("[]")
	}

	c.logger.Debug("graph query returned rows", "rows", len(rows))

	answer, err := c.model.Complete(ctx, llm.Request{
		System: answerSystem,
		Parts:  []llm.Part{llm.TextPart(fmt.Sprintf(answerTemplate, information, question))},
	})
	if err != nil {
		return "", fmt.Errorf("answer from graph rows: %w", err)
	}

	return answer, nil
}

// extractQuery strips Markdown fences and a leading language tag from generated SQL.
func extractQuery(text string) string {
	q := strings.TrimSpace(text)

	if start := strings.Index(q, "```"); start >= 0 {
		rest := q[start+3:]
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}

		q = strings.TrimSpace(rest)

		// Drop a language tag such as "sql" on the fence line.
		if nl := strings.IndexByte(q, '\n'); nl >= 0 {
			first := strings.TrimSpace(q[:nl])
			if first != "" && !strings.ContainsAny(first, " \t(") &&
				!strings.EqualFold(first, "select") && !strings.EqualFold(first, "with") {
				q = strings.TrimSpace(q[nl+1:])
			}
		}
	}

	return q
}
