package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gallery-ai/critic/internal/critiqueerrors"
	"github.com/gallery-ai/critic/internal/models"
	"github.com/gallery-ai/critic/internal/observability"
)

const (
	vectorStoreName = "vector"
	// DefaultStoreTimeout bounds a single store call when none is configured.
	DefaultStoreTimeout = 10 * time.Second
)

// VectorStore is the nearest-neighbour boundary. Implementations return hits
// ordered by non-decreasing cosine distance with a stable tie-break.
type VectorStore interface {
	Nearest(ctx context.Context, query []float32, k int) ([]models.RetrievalHit, error)
}

// SimilarityIndexParams configures SimilarityIndex. Metrics may be nil.
type SimilarityIndexParams struct {
	Store      VectorStore
	Dimensions int
	Timeout    time.Duration
	Metrics    observability.CritiqueMetrics
	Logger     *slog.Logger
}

// SimilarityIndex finds the reference artworks closest to a query embedding.
type SimilarityIndex struct {
	store      VectorStore
	dimensions int
	timeout    time.Duration
	metrics    observability.CritiqueMetrics
	logger     *slog.Logger
}

// NewSimilarityIndex creates a SimilarityIndex.
func NewSimilarityIndex(p SimilarityIndexParams) *SimilarityIndex {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}

	return &SimilarityIndex{
		store:      p.Store,
		dimensions: p.Dimensions,
		timeout:    timeout,
		metrics:    p.Metrics,
		logger:     logger,
	}
}

// Query returns up to k nearest artworks for vector. The store is read-only here.
func (s *SimilarityIndex) Query(ctx context.Context, vector []float32, k int) (models.RetrievalResult, error) {
	if k < 1 {
		return models.RetrievalResult{}, critiqueerrors.NewValidationError("k", "k must be at least 1")
	}

	if s.dimensions > 0 && len(vector) != s.dimensions {
		return models.RetrievalResult{}, critiqueerrors.NewValidationError("vector",
			fmt.Sprintf("query vector has %d dimensions, expected %d", len(vector), s.dimensions))
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	hits, err := s.store.Nearest(callCtx, vector, k)
	elapsed := time.Since(start)

	if err != nil {
		if !errors.Is(err, critiqueerrors.ErrStoreUnavailable) && !errors.Is(err, critiqueerrors.ErrValidation) {
			err = critiqueerrors.NewStoreUnavailableError(vectorStoreName, err)
		}

		s.logger.Error("similarity query failed", "error", err, "k", k, "duration", elapsed)

		return models.RetrievalResult{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordRetrieval(ctx, len(hits), elapsed)
	}

	s.logger.Debug("similarity query", "k", k, "hits", len(hits), "duration", elapsed)

	return models.RetrievalResult{Hits: hits}, nil
}
