package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/gallery-ai/critic/internal/critiqueerrors"
	"github.com/gallery-ai/critic/internal/imaging"
	"github.com/gallery-ai/critic/internal/llm"
	"github.com/gallery-ai/critic/internal/models"
	"github.com/gallery-ai/critic/internal/observability"
)

const (
	// DefaultRetrievalK is the number of similar artworks retrieved per critique.
	DefaultRetrievalK = 1
	// DefaultCriticMaxTokens caps the length of a generated critique.
	DefaultCriticMaxTokens = 400
	// DefaultUploadedFilename names an upload that arrived without a filename.
	DefaultUploadedFilename = "uploaded_artwork.jpg"
)

// Stage is a step of the image critique state machine.
type Stage string

// Stages in execution order.
const (
	StageEncoding           Stage = "encoding"
	StageRetrieving         Stage = "retrieving"
	StageGatheringEvidence  Stage = "gathering_evidence"
	StageComposingPrompt    Stage = "composing_prompt"
	StageGeneratingCritique Stage = "generating_critique"
	StageQueryingGraph      Stage = "querying_graph"
)

// ImageEncoder turns uploaded image bytes into a unit-length embedding.
type ImageEncoder interface {
	Encode(ctx context.Context, data []byte) ([]float32, error)
}

// Retriever returns the nearest reference artworks for an embedding.
type Retriever interface {
	Query(ctx context.Context, vector []float32, k int) (models.RetrievalResult, error)
}

// EvidenceGatherer returns validated annotations for retrieved artworks.
type EvidenceGatherer interface {
	Assemble(ctx context.Context, filenames []string) (models.EvidenceBundle, error)
}

// GraphAsker answers free-form questions over the rating graph.
type GraphAsker interface {
	Ask(ctx context.Context, question string) (string, error)
}

// ReferenceLoader loads optimized reference images, omitting those that fail.
type ReferenceLoader interface {
	Load(ctx context.Context, filenames []string) []ReferenceImage
}

// CritiqueRequest is one uploaded artwork to critique.
type CritiqueRequest struct {
	Image       []byte
	Filename    string
	Instruction string
}

// Critique is the generated critique and the grounding it was produced from.
type Critique struct {
	RequestID  string
	Text       string
	References []string
	Evidence   models.EvidenceBundle
	Notes      []string
}

// CritiqueServiceParams holds dependencies for NewCritiqueService.
// Graph is only needed for Ask; Metrics may be nil.
type CritiqueServiceParams struct {
	Encoder    ImageEncoder
	Retriever  Retriever
	Evidence   EvidenceGatherer
	References ReferenceLoader
	Graph      GraphAsker
	Model      llm.ChatModel
	RetrievalK int
	MaxTokens  int
	Upload     imaging.OptimizeOptions
	Metrics    observability.CritiqueMetrics
	Logger     *slog.Logger
}

// CritiqueService orchestrates retrieval-grounded critiques and graph questions.
type CritiqueService struct {
	encoder    ImageEncoder
	retriever  Retriever
	evidence   EvidenceGatherer
	references ReferenceLoader
	graph      GraphAsker
	model      llm.ChatModel
	retrievalK int
	maxTokens  int
	upload     imaging.OptimizeOptions
	metrics    observability.CritiqueMetrics
	tracer     trace.Tracer
	logger     *slog.Logger
}

// NewCritiqueService creates a CritiqueService.
func NewCritiqueService(p CritiqueServiceParams) *CritiqueService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	k := p.RetrievalK
	if k <= 0 {
		k = DefaultRetrievalK
	}

	maxTokens := p.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultCriticMaxTokens
	}

	upload := p.Upload
	if upload == (imaging.OptimizeOptions{}) {
		upload = imaging.DefaultOptimizeOptions()
	}

	return &CritiqueService{
		encoder:    p.Encoder,
		retriever:  p.Retriever,
		evidence:   p.Evidence,
		references: p.References,
		graph:      p.Graph,
		model:      p.Model,
		retrievalK: k,
		maxTokens:  maxTokens,
		upload:     upload,
		metrics:    p.Metrics,
		tracer:     otel.Tracer(observability.TracerName),
		logger:     logger,
	}
}

// Ask answers a text-only question from the rating graph.
func (s *CritiqueService) Ask(ctx context.Context, question string) (string, error) {
	start := time.Now()
	ctx = observability.WithRequestID(ctx, newRequestID())

	ctx, span := s.tracer.Start(ctx, "critique.ask")
	defer span.End()

	if strings.TrimSpace(question) == "" {
		err := critiqueerrors.NewValidationError("question", "question must not be empty")
		s.finish(ctx, span, observability.PathText, observability.CritiqueStatusInvalidRequest, start, err)

		return "", err
	}

	if s.graph == nil {
		err := errors.New("graph question answering is not configured")
		s.finish(ctx, span, observability.PathText, observability.CritiqueStatusGraphQueryFailed, start, err)

		return "", err
	}

	s.logger.DebugContext(ctx, "critique stage", "stage", StageQueryingGraph)

	answer, err := s.graph.Ask(ctx, question)
	if err != nil {
		status := observability.CritiqueStatusGraphQueryFailed
		if errors.Is(err, critiqueerrors.ErrStoreUnavailable) {
			status = observability.CritiqueStatusStoreUnavailable
		}

		err = fmt.Errorf("graph question: %w", err)
		s.finish(ctx, span, observability.PathText, status, start, err)

		return "", err
	}

	s.finish(ctx, span, observability.PathText, observability.CritiqueStatusSuccess, start, nil)

	return answer, nil
}

// Critique runs encoding, retrieval, evidence gathering, prompt composition
// and generation for one uploaded artwork.
func (s *CritiqueService) Critique(ctx context.Context, req CritiqueRequest) (*Critique, error) {
	start := time.Now()
	requestID := newRequestID()
	ctx = observability.WithRequestID(ctx, requestID)

	ctx, span := s.tracer.Start(ctx, "critique.image", trace.WithAttributes(
		attribute.String("critique.request_id", requestID),
		attribute.Int("critique.retrieval_k", s.retrievalK),
	))
	defer span.End()

	if len(req.Image) == 0 {
		err := critiqueerrors.NewValidationError("image", "image must not be empty")
		s.finish(ctx, span, observability.PathImage, observability.CritiqueStatusInvalidRequest, start, err)

		return nil, err
	}

	uploadedName := req.Filename
	if uploadedName == "" {
		uploadedName = DefaultUploadedFilename
	}

	instruction := strings.TrimSpace(req.Instruction)
	if instruction == "" {
		instruction = DefaultInstruction
	}

	// Encoding
	s.stage(ctx, StageEncoding)

	vector, err := s.encoder.Encode(ctx, req.Image)
	if err != nil {
		err = critiqueerrors.NewEncodingFailedError(err)
		s.finish(ctx, span, observability.PathImage, observability.CritiqueStatusEncodingFailed, start, err)

		return nil, err
	}

	uploaded, err := imaging.Optimize(req.Image, s.upload)
	if err != nil {
		err = critiqueerrors.NewEncodingFailedError(err)
		s.finish(ctx, span, observability.PathImage, observability.CritiqueStatusEncodingFailed, start, err)

		return nil, err
	}

	// Retrieving
	s.stage(ctx, StageRetrieving)

	result, err := s.retriever.Query(ctx, vector, s.retrievalK)
	if err != nil {
		status := observability.CritiqueStatusStoreUnavailable
		if errors.Is(err, critiqueerrors.ErrValidation) {
			status = observability.CritiqueStatusInvalidRequest
		}

		s.finish(ctx, span, observability.PathImage, status, start, err)

		return nil, err
	}

	out := &Critique{RequestID: requestID, References: result.Filenames()}
	status := observability.CritiqueStatusSuccess

	var refs []ReferenceImage

	if len(out.References) == 0 {
		s.logger.InfoContext(ctx, "no similar artworks found")
		out.Notes = append(out.Notes, NoteNoSimilarArtworks)
		status = observability.CritiqueStatusNoSimilarArtworks
	} else {
		// GatheringEvidence
		s.stage(ctx, StageGatheringEvidence)

		refs, err = s.gather(ctx, out)
		if err != nil {
			s.finish(ctx, span, observability.PathImage, observability.CritiqueStatusStoreUnavailable, start, err)

			return nil, err
		}
	}

	// ComposingPrompt
	s.stage(ctx, StageComposingPrompt)

	request := s.composeRequest(uploaded, uploadedName, instruction, refs, out)

	// GeneratingCritique
	s.stage(ctx, StageGeneratingCritique)

	text, err := s.model.Complete(ctx, request)
	if err == nil && strings.TrimSpace(text) == "" {
		err = llm.ErrEmptyResponse
	}

	if err != nil {
		err = critiqueerrors.NewGenerationFailedError(err)
		s.finish(ctx, span, observability.PathImage, observability.CritiqueStatusGenerationFailed, start, err)

		return nil, err
	}

	out.Text = text
	span.SetAttributes(
		attribute.Int("critique.references", len(out.References)),
		attribute.Int("critique.evidence_records", len(out.Evidence.Records)),
	)
	s.finish(ctx, span, observability.PathImage, status, start, nil)

	return out, nil
}

// gather assembles evidence and loads reference images concurrently.
// Only a store outage is fatal; malformed or missing evidence degrades to an empty bundle.
func (s *CritiqueService) gather(ctx context.Context, out *Critique) ([]ReferenceImage, error) {
	var refs []ReferenceImage

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		bundle, err := s.evidence.Assemble(gctx, out.References)

		switch {
		case err == nil:
			out.Evidence = bundle
		case errors.Is(err, critiqueerrors.ErrStoreUnavailable):
			return err
		default:
			s.logger.WarnContext(gctx, "evidence unavailable, continuing without it", "error", err)
			out.Notes = append(out.Notes, NoteEvidenceUnavailable)
		}

		return nil
	})

	if s.references != nil {
		g.Go(func() error {
			refs = s.references.Load(gctx, out.References)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return refs, nil
}

// composeRequest orders images as uploaded first, then references in retrieval order.
// The caption names only the images actually attached.
func (s *CritiqueService) composeRequest(
	uploaded imaging.Encoded, uploadedName, instruction string, refs []ReferenceImage, out *Critique,
) llm.Request {
	parts := make([]llm.Part, 0, len(refs)+2)
	parts = append(parts, llm.ImagePart(uploaded.MIMEType, uploaded.Data))

	caption := make([]string, 0, len(refs)+1)
	caption = append(caption, uploadedName)

	for _, ref := range refs {
		parts = append(parts, llm.ImagePart(ref.Image.MIMEType, ref.Image.Data))
		caption = append(caption, ref.Filename)
	}

	parts = append(parts, llm.TextPart(criticPrompt(uploadedName, out.Evidence.JSON(), instruction, caption, out.Notes)))

	return llm.Request{Parts: parts, MaxTokens: s.maxTokens}
}

func (s *CritiqueService) stage(ctx context.Context, stage Stage) {
	trace.SpanFromContext(ctx).AddEvent(string(stage))
	s.logger.DebugContext(ctx, "critique stage", "stage", stage)
}

func (s *CritiqueService) finish(ctx context.Context, span trace.Span, path, status string, start time.Time, err error) {
	elapsed := time.Since(start)

	span.SetAttributes(attribute.String("critique.status", status))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		s.logger.ErrorContext(ctx, "critique failed", "path", path, "status", status, "error", err, "duration", elapsed)
	} else {
		s.logger.InfoContext(ctx, "critique completed", "path", path, "status", status, "duration", elapsed)
	}

	if s.metrics != nil {
		s.metrics.RecordCritique(ctx, path, status, elapsed)
	}
}

func newRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}
