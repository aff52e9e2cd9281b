// Package memory is an in-memory artwork store for tests and small corpora.
// It answers the same nearest-neighbour and annotation queries as the
// Postgres repositories using brute-force cosine distance.
package memory

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/gallery-ai/critic/internal/critiqueerrors"
	"github.com/gallery-ai/critic/internal/models"
	"github.com/gallery-ai/critic/pkg/embeddings"
)

var errDimensionMismatch = errors.New("vector dimension mismatch")

// Store keeps artworks in insertion order, which is also the tie-break order
// for equal distances.
type Store struct {
	mu          sync.RWMutex
	dimension   int
	artworks    []models.Artwork
	byFilename  map[string]int
	annotations map[string][]models.QualityAnnotation
}

// NewStore creates an empty store for vectors of the given dimension.
func NewStore(dimension int) *Store {
	return &Store{
		dimension:   dimension,
		byFilename:  make(map[string]int),
		annotations: make(map[string][]models.QualityAnnotation),
	}
}

// Upsert adds an artwork or replaces the one with the same filename,
// keeping its original position. Embeddings are stored unit-normalized.
func (s *Store) Upsert(_ context.Context, artwork models.Artwork) error {
	stored := artwork

	if artwork.Embedding != nil {
		vector, err := embeddings.Prepare(artwork.Embedding, s.dimension)
		if errors.Is(err, embeddings.ErrDimensionMismatch) {
			return critiqueerrors.NewValidationError("embedding", err.Error())
		}

		if err != nil {
			return critiqueerrors.NewDegenerateVectorError(err.Error())
		}

		stored.Embedding = vector
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.byFilename[artwork.Filename]; ok {
		if stored.Embedding == nil {
			stored.Embedding = s.artworks[i].Embedding
		}

		s.artworks[i] = stored

		return nil
	}

	s.byFilename[artwork.Filename] = len(s.artworks)
	s.artworks = append(s.artworks, stored)

	return nil
}

// Nearest returns the k artworks closest to query.
func (s *Store) Nearest(ctx context.Context, query []float32, k int) ([]models.RetrievalHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, critiqueerrors.NewStoreUnavailableError("vector", err)
	}

	if k < 1 {
		return nil, critiqueerrors.NewValidationError("k", "k must be a positive integer")
	}

	if len(query) != s.dimension {
		return nil, errDimensionMismatch
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]models.RetrievalHit, 0, len(s.artworks))

	for _, a := range s.artworks {
		if a.Embedding == nil {
			continue
		}

		distance, err := embeddings.CosineDistance(a.Embedding, query)
		if err != nil {
			continue
		}

		hits = append(hits, models.RetrievalHit{Filename: a.Filename, Distance: distance, Score: 1 - distance})
	}

	slices.SortStableFunc(hits, func(a, b models.RetrievalHit) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		default:
			return 0
		}
	})

	if len(hits) > k {
		hits = hits[:k]
	}

	return hits, nil
}

// AddAnnotations stores HAS_LEVEL edges keyed by filename.
func (s *Store) AddAnnotations(annotations ...models.QualityAnnotation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range annotations {
		s.annotations[a.Filename] = append(s.annotations[a.Filename], a)
	}
}

// AnnotationsByFilenames returns edges of the named artworks, in filename
// order, optionally restricted to dimensions.
func (s *Store) AnnotationsByFilenames(
	_ context.Context, filenames []string, dimensions []models.Dimension,
) ([]models.QualityAnnotation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.QualityAnnotation

	for _, f := range filenames {
		for _, a := range s.annotations[f] {
			if len(dimensions) > 0 && !slices.Contains(dimensions, a.Dimension) {
				continue
			}

			out = append(out, a)
		}
	}

	return out, nil
}

// Len returns the number of stored artworks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.artworks)
}
