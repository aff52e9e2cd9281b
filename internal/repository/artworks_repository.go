// Package repository provides Postgres access for artworks, their embeddings
// and their quality annotations.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/gallery-ai/critic/internal/critiqueerrors"
	"github.com/gallery-ai/critic/internal/models"
	"github.com/gallery-ai/critic/pkg/embeddings"
)

const vectorStore = "vector"

//go:embed schema/schema.sql
var schemaFS embed.FS

// ErrArtworkNotFound is returned when no artwork row exists for the given id.
var ErrArtworkNotFound = errors.New("artwork not found")

// EnsureSchema creates the tables and seeds the dimension rows. It is idempotent.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	ddl, err := schemaFS.ReadFile("schema/schema.sql")
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}

	if _, err := db.Exec(ctx, string(ddl)); err != nil {
		return classifyError(graphStore, fmt.Errorf("apply schema: %w", err))
	}

	batch := &pgx.Batch{}
	for _, d := range models.Dimensions {
		batch.Queue(`
			INSERT INTO dimensions (name, title, definition) VALUES ($1, $2, $3)
			ON CONFLICT (name) DO UPDATE SET title = EXCLUDED.title, definition = EXCLUDED.definition`,
			string(d), d.Title(), d.Definition())
	}

	if err := db.SendBatch(ctx, batch).Close(); err != nil {
		return classifyError(graphStore, fmt.Errorf("seed dimensions: %w", err))
	}

	return nil
}

// ArtworksRepository handles data access for the artworks table and its vector index.
type ArtworksRepository struct {
	db *pgxpool.Pool
}

// NewArtworksRepository creates a new artworks repository.
func NewArtworksRepository(db *pgxpool.Pool) *ArtworksRepository {
	return &ArtworksRepository{db: db}
}

// unitVector returns the pgvector value of a unit-length copy of embedding.
// The column type enforces the dimension.
func unitVector(embedding []float32) (pgvector.Vector, error) {
	out, err := embeddings.Prepare(embedding, len(embedding))
	if err != nil {
		return pgvector.Vector{}, critiqueerrors.NewDegenerateVectorError(err.Error())
	}

	return pgvector.NewVector(out), nil
}

// Upsert inserts or updates an artwork by id. A nil embedding keeps the stored one.
func (r *ArtworksRepository) Upsert(ctx context.Context, artwork models.Artwork) error {
	var vec *pgvector.Vector
	if artwork.Embedding != nil {
		v, err := unitVector(artwork.Embedding)
		if err != nil {
			return err
		}

		vec = &v
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO artworks (id, filename, embedding)
		VALUES ($1, $2, $3)
		ON CONFLICT (id)
		DO UPDATE SET filename = EXCLUDED.filename,
		              embedding = COALESCE(EXCLUDED.embedding, artworks.embedding),
		              updated_at = now()`,
		artwork.ID, artwork.Filename, vec,
	)
	if err != nil {
		return classifyError(vectorStore, fmt.Errorf("artworks upsert: %w", err))
	}

	return nil
}

// SetEmbedding stores the embedding of an existing artwork.
func (r *ArtworksRepository) SetEmbedding(ctx context.Context, id string, embedding []float32) error {
	vec, err := unitVector(embedding)
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE artworks SET embedding = $2, updated_at = now() WHERE id = $1`,
		id, vec,
	)
	if err != nil {
		return classifyError(vectorStore, fmt.Errorf("set embedding: %w", err))
	}

	if tag.RowsAffected() == 0 {
		return ErrArtworkNotFound
	}

	return nil
}

// GetByID returns the artwork. Embedding is nil when the image has not been encoded.
func (r *ArtworksRepository) GetByID(ctx context.Context, id string) (*models.Artwork, error) {
	var (
		a         models.Artwork
		embedding *pgvector.Vector
	)

	err := r.db.QueryRow(ctx, `SELECT id, filename, embedding FROM artworks WHERE id = $1`, id).
		Scan(&a.ID, &a.Filename, &embedding)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrArtworkNotFound
		}

		return nil, classifyError(vectorStore, fmt.Errorf("get artwork: %w", err))
	}

	if embedding != nil {
		a.Embedding = embedding.Slice()
	}

	return &a, nil
}

// ListIDsMissingEmbedding returns ids of artworks that have not been encoded yet.
func (r *ArtworksRepository) ListIDsMissingEmbedding(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM artworks WHERE embedding IS NULL ORDER BY id`)
	if err != nil {
		return nil, classifyError(vectorStore, fmt.Errorf("list artworks missing embedding: %w", err))
	}
	defer rows.Close()

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, classifyError(vectorStore, fmt.Errorf("iterating artwork ids: %w", err))
	}

	return ids, nil
}

// Nearest returns the k artworks closest to query by cosine distance (<=>).
// Equal distances are ordered by id so results are stable.
func (r *ArtworksRepository) Nearest(ctx context.Context, query []float32, k int) ([]models.RetrievalHit, error) {
	if k < 1 {
		return nil, critiqueerrors.NewValidationError("k", "k must be a positive integer")
	}

	rows, err := r.db.Query(ctx, `
		SELECT filename, embedding <=> $1 AS distance
		FROM artworks
		WHERE embedding IS NOT NULL
		ORDER BY distance, id
		LIMIT $2`, pgvector.NewVector(query), k)
	if err != nil {
		return nil, classifyError(vectorStore, fmt.Errorf("nearest artworks: %w", err))
	}
	defer rows.Close()

	var hits []models.RetrievalHit

	for rows.Next() {
		var hit models.RetrievalHit
		if err := rows.Scan(&hit.Filename, &hit.Distance); err != nil {
			return nil, fmt.Errorf("scan nearest artwork: %w", err)
		}

		hit.Score = 1 - hit.Distance
		hits = append(hits, hit)
	}

	if err := rows.Err(); err != nil {
		return nil, classifyError(vectorStore, fmt.Errorf("iterating nearest: %w", err))
	}

	return hits, nil
}
