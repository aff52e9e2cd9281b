// Package enrich extracts per-dimension rating reasons from free-text comments
// and writes them back into the dataset with resumable checkpoints.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/gallery-ai/critic/internal/llm"
	"github.com/gallery-ai/critic/internal/models"
)

const systemPrompt = "You are a helpful assistant that always responds with valid JSON."

const promptTemplate = `Comment: %s

Please extract short sentences and phrases from the comments that reflect the reasons for the score of a specific aesthetic attribute.

Return the result in the following JSON format:
%s

Note:
- If no reasons for a certain dimension can be found in the comment, fill in an empty string
- Do not fabricate information
- Only use phrases directly from the comment

Here are 10 aesthetic attributes and their interpretations:
%s

example:
the comment is "Each side of the picture is good, making it a great landscape painting. The brushstrokes are skilled, and the visual effect is realistic"
the answer should be:
%s`

// Reasons holds the extracted reason per dimension. Dimensions without a
// reason are absent.
type Reasons map[models.Dimension]string

// Extractor asks a chat model for the reasons behind each dimension's score.
type Extractor struct {
	model   llm.ChatModel
	limiter *rate.Limiter
}

// NewExtractor creates an Extractor. limiter may be nil (no rate limit).
func NewExtractor(model llm.ChatModel, limiter *rate.Limiter) *Extractor {
	return &Extractor{model: model, limiter: limiter}
}

// Extract returns the reasons found in comment. A blank comment yields no
// reasons without calling the model. A response that is not JSON also yields
// no reasons; only a failed model call is an error.
func (e *Extractor) Extract(ctx context.Context, comment string) (Reasons, error) {
	if strings.TrimSpace(comment) == "" {
		return Reasons{}, nil
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	content, err := e.model.Complete(ctx, llm.Request{
		System: systemPrompt,
		Parts:  []llm.Part{llm.TextPart(BuildPrompt(comment))},
		JSON:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("extract reasons: %w", err)
	}

	return ParseReasons(content), nil
}

// BuildPrompt renders the extraction prompt for one comment.
func BuildPrompt(comment string) string {
	var definitions strings.Builder

	for i, d := range models.Dimensions {
		if i > 0 {
			definitions.WriteByte('\n')
		}

		fmt.Fprintf(&definitions, "- %s: %s", d.Title(), d.Definition())
	}

	example := map[models.Dimension]string{
		models.DimensionLayoutAndComposition: "Each side of the picture is good",
		models.DimensionDetailsAndTexture:    "The brushstrokes are skilled",
		models.DimensionOverall:              "making it a great landscape painting",
	}

	return fmt.Sprintf(promptTemplate, comment, reasonObject(nil), definitions.String(), reasonObject(example))
}

// reasonObject renders a JSON object with every reason field in canonical order.
func reasonObject(values map[models.Dimension]string) string {
	var b strings.Builder

	b.WriteString("{\n")

	for i, d := range models.Dimensions {
		value, _ := json.Marshal(values[d])
		fmt.Fprintf(&b, "    %q: %s", d.ReasonColumn(), value)

		if i < len(models.Dimensions)-1 {
			b.WriteByte(',')
		}

		b.WriteByte('\n')
	}

	b.WriteString("}")

	return b.String()
}

// ParseReasons decodes the model output, falling back to the outermost
// {...} when the object is wrapped in prose. Non-string and blank values are dropped.
func ParseReasons(content string) Reasons {
	reasons := Reasons{}

	var raw map[string]any
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		start, end := strings.IndexByte(content, '{'), strings.LastIndexByte(content, '}')
		if start < 0 || end <= start {
			return reasons
		}

		if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
			return reasons
		}
	}

	for _, d := range models.Dimensions {
		s, ok := raw[d.ReasonColumn()].(string)
		if !ok {
			continue
		}

		if s = strings.TrimSpace(s); s != "" {
			reasons[d] = s
		}
	}

	return reasons
}
