package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gallery-ai/critic/internal/critiqueerrors"
	"github.com/gallery-ai/critic/internal/models"
)

func TestBuildAnnotationsQuery(t *testing.T) {
	t.Run("filenames only", func(t *testing.T) {
		query, args := buildAnnotationsQuery([]string{"a.jpg", "b.jpg"}, nil)

		assert.Contains(t, query, "a.filename = ANY($1)")
		assert.NotContains(t, query, "$2")
		assert.Contains(t, query, "ORDER BY a.filename, h.dimension")
		require.Len(t, args, 1)
		assert.Equal(t, []string{"a.jpg", "b.jpg"}, args[0])
	})

	t.Run("with dimension filter", func(t *testing.T) {
		query, args := buildAnnotationsQuery([]string{"a.jpg"},
			[]models.Dimension{models.DimensionColor, models.DimensionMood})

		assert.Contains(t, query, "h.dimension = ANY($2)")
		require.Len(t, args, 2)
		assert.Equal(t, []string{"color", "mood"}, args[1])
	})
}

func TestSanitizeReadOnlyQuery(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    string
		wantErr bool
	}{
		{"plain select", "SELECT filename FROM artworks", "SELECT filename FROM artworks", false},
		{"trailing semicolon", "  select 1;  ", "select 1", false},
		{"cte", "WITH x AS (SELECT 1) SELECT * FROM x", "WITH x AS (SELECT 1) SELECT * FROM x", false},
		{"column named updated_at is fine", "SELECT updated_at FROM artworks", "SELECT updated_at FROM artworks", false},
		{"empty", "   ", "", true},
		{"delete", "DELETE FROM artworks", "", true},
		{"stacked statements", "SELECT 1; DROP TABLE artworks", "", true},
		{"data-modifying cte", "WITH d AS (DELETE FROM has_level RETURNING *) SELECT * FROM d", "", true},
		{"sleep", "SELECT pg_sleep(10)", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sanitizeReadOnlyQuery(tt.query)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnsafeQuery)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWrapWithLimit(t *testing.T) {
	assert.Equal(t, "SELECT * FROM (SELECT 1) AS q LIMIT $1", wrapWithLimit("SELECT 1"))
}

func TestUnitVector(t *testing.T) {
	v, err := unitVector([]float32{3, 4})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.6, 0.8}, v.Slice(), 1e-6)

	_, err = unitVector([]float32{0, 0})
	require.ErrorIs(t, err, critiqueerrors.ErrDegenerateVector)

	_, err = unitVector(nil)
	require.ErrorIs(t, err, critiqueerrors.ErrDegenerateVector)
}

func TestClassifyError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, classifyError(vectorStore, nil))
	})

	t.Run("deadline is unavailable", func(t *testing.T) {
		err := classifyError(vectorStore, fmt.Errorf("query: %w", context.DeadlineExceeded))
		require.ErrorIs(t, err, critiqueerrors.ErrStoreUnavailable)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("closed pool is unavailable", func(t *testing.T) {
		err := classifyError(graphStore, errors.New("closed pool"))
		require.ErrorIs(t, err, critiqueerrors.ErrStoreUnavailable)
	})

	t.Run("query errors pass through", func(t *testing.T) {
		pgErr := &pgconn.PgError{Code: "42P01", Message: "relation does not exist"}
		err := classifyError(graphStore, pgErr)
		assert.NotErrorIs(t, err, critiqueerrors.ErrStoreUnavailable)
		assert.Equal(t, pgErr, err)
	})
}
