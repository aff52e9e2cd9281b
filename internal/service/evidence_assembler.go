package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/gallery-ai/critic/internal/critiqueerrors"
	"github.com/gallery-ai/critic/internal/graphqa"
	"github.com/gallery-ai/critic/internal/models"
	"github.com/gallery-ai/critic/internal/observability"
	"github.com/gallery-ai/critic/internal/validation"
)

// errUnparseable marks a payload with no recoverable JSON records.
var errUnparseable = errors.New("payload contains no JSON records")

// AnnotationQuerier returns the HAS_LEVEL edges of the requested artworks as opaque text,
// expected to hold a JSON array of {filename, dimension, level, reason}.
type AnnotationQuerier interface {
	QueryAnnotations(ctx context.Context, req graphqa.AnnotationRequest) (string, error)
}

// EvidenceAssemblerParams configures EvidenceAssembler. Metrics may be nil.
type EvidenceAssemblerParams struct {
	Querier AnnotationQuerier
	Metrics observability.CritiqueMetrics
	Logger  *slog.Logger
}

// EvidenceAssembler gathers validated quality annotations for retrieved artworks.
type EvidenceAssembler struct {
	querier AnnotationQuerier
	metrics observability.CritiqueMetrics
	logger  *slog.Logger
}

// NewEvidenceAssembler creates an EvidenceAssembler.
func NewEvidenceAssembler(p EvidenceAssemblerParams) *EvidenceAssembler {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &EvidenceAssembler{
		querier: p.Querier,
		metrics: p.Metrics,
		logger:  logger,
	}
}

// Assemble returns the evidence for filenames, grouped in the given filename order
// and then by canonical dimension order.
// An empty filename list yields an empty bundle and ErrNoEvidence.
// A payload that cannot be parsed is retried once with a narrowed request,
// then reported as ErrMalformedEvidence.
func (a *EvidenceAssembler) Assemble(ctx context.Context, filenames []string) (models.EvidenceBundle, error) {
	if len(filenames) == 0 {
		a.record(ctx, observability.EvidenceOutcomeEmpty, 0)

		return models.EvidenceBundle{}, critiqueerrors.ErrNoEvidence
	}

	req := graphqa.AnnotationRequest{
		Filenames:  filenames,
		Dimensions: slices.Clone(models.Dimensions),
	}

	payload, err := a.querier.QueryAnnotations(ctx, req)
	if err != nil {
		a.record(ctx, observability.EvidenceOutcomeFailed, 0)

		return models.EvidenceBundle{}, fmt.Errorf("query annotations: %w", err)
	}

	records, parseErr := a.parse(payload, filenames)
	outcome := observability.EvidenceOutcomeSuccess

	if parseErr != nil {
		a.logger.Warn("evidence payload unparseable, retrying with narrowed request",
			"error", parseErr, "payload_bytes", len(payload))

		req.Narrowed = true

		payload, err = a.querier.QueryAnnotations(ctx, req)
		if err != nil {
			a.record(ctx, observability.EvidenceOutcomeFailed, 0)

			return models.EvidenceBundle{}, fmt.Errorf("query annotations (narrowed): %w", err)
		}

		records, parseErr = a.parse(payload, filenames)
		if parseErr != nil {
			a.record(ctx, observability.EvidenceOutcomeMalformed, 0)

			return models.EvidenceBundle{}, critiqueerrors.NewMalformedEvidenceError(payload, parseErr)
		}

		outcome = observability.EvidenceOutcomeRetrySuccess
	}

	a.record(ctx, outcome, len(records))

	return models.EvidenceBundle{Records: records}, nil
}

func (a *EvidenceAssembler) record(ctx context.Context, outcome string, records int) {
	if a.metrics != nil {
		a.metrics.RecordEvidence(ctx, outcome, records)
	}
}

// parse extracts, filters, validates and orders the records in payload.
func (a *EvidenceAssembler) parse(payload string, filenames []string) ([]models.EvidenceRecord, error) {
	raw, err := decodeEvidencePayload(payload)
	if err != nil {
		return nil, err
	}

	order := make(map[string]int, len(filenames))
	for i, f := range filenames {
		if _, ok := order[f]; !ok {
			order[f] = i
		}
	}

	type key struct {
		filename  string
		dimension models.Dimension
	}

	seen := make(map[key]bool, len(raw))
	records := make([]models.EvidenceRecord, 0, len(raw))

	for _, item := range raw {
		record, ok := toEvidenceRecord(item)
		if !ok {
			a.logger.Debug("dropping evidence record with unknown dimension", "record", item)

			continue
		}

		if _, requested := order[record.Filename]; !requested {
			a.logger.Debug("dropping evidence record for unrequested artwork", "filename", record.Filename)

			continue
		}

		if err := validation.ValidateStruct(record); err != nil {
			a.logger.Debug("dropping invalid evidence record", "error", err)

			continue
		}

		k := key{record.Filename, record.Dimension}
		if seen[k] {
			continue
		}

		seen[k] = true

		records = append(records, record)
	}

	slices.SortStableFunc(records, func(x, y models.EvidenceRecord) int {
		if d := order[x.Filename] - order[y.Filename]; d != 0 {
			return d
		}

		return models.DimensionIndex(x.Dimension) - models.DimensionIndex(y.Dimension)
	})

	return records, nil
}

// toEvidenceRecord maps loosely keyed JSON (e.g. "a.filename" from generated SQL aliases)
// onto an EvidenceRecord. It reports false when the dimension is not one of the ten.
func toEvidenceRecord(item map[string]any) (models.EvidenceRecord, bool) {
	var filename, dimension, level, reason string

	for k, v := range item {
		name := strings.ToLower(k)
		if i := strings.LastIndexByte(name, '.'); i >= 0 {
			name = name[i+1:]
		}

		switch name {
		case "filename", "file", "image":
			filename = stringValue(v)
		case "dimension", "aspect":
			dimension = stringValue(v)
		case "level", "rating":
			level = stringValue(v)
		case "reason", "reasoning":
			reason = stringValue(v)
		}
	}

	dim, ok := models.ParseDimension(dimension)
	if !ok {
		return models.EvidenceRecord{}, false
	}

	lvl := models.Level(strings.TrimSpace(level))
	if canonical, ok := models.ParseLevel(level); ok {
		lvl = canonical
	}

	return models.EvidenceRecord{
		Filename:  strings.TrimSpace(filename),
		Dimension: dim,
		Level:     lvl,
		Reason:    strings.TrimSpace(reason),
	}, true
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// decodeEvidencePayload accepts a bare JSON array, an array embedded in prose
// or Markdown fences, or a single JSON object.
func decodeEvidencePayload(payload string) ([]map[string]any, error) {
	text := stripCodeFence(strings.TrimSpace(payload))
	if text == "" {
		return nil, errUnparseable
	}

	var records []map[string]any
	if err := json.Unmarshal([]byte(text), &records); err == nil {
		return records, nil
	}

	if start, end := strings.IndexByte(text, '['), strings.LastIndexByte(text, ']'); start >= 0 && end > start {
		if err := json.Unmarshal([]byte(text[start:end+1]), &records); err == nil {
			return records, nil
		}
	}

	if start, end := strings.IndexByte(text, '{'), strings.LastIndexByte(text, '}'); start >= 0 && end > start {
		var single map[string]any
		if err := json.Unmarshal([]byte(text[start:end+1]), &single); err == nil {
			return []map[string]any{single}, nil
		}
	}

	return nil, errUnparseable
}

// stripCodeFence returns the body of the first fenced block, without its language tag.
func stripCodeFence(text string) string {
	start := strings.Index(text, "```")
	if start < 0 {
		return text
	}

	body := text[start+3:]
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}

	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		if tag := strings.TrimSpace(body[:nl]); tag != "" && !strings.ContainsAny(tag, "[{") {
			body = body[nl+1:]
		}
	}

	return strings.TrimSpace(body)
}
