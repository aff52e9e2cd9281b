package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gallery-ai/critic/internal/critiqueerrors"
	"github.com/gallery-ai/critic/internal/models"
)

const graphStore = "graph"

// graphTables are the relations exposed to generated queries.
var graphTables = []string{"artworks", "dimensions", "has_level"}

// GraphRepository stores artwork nodes, dimension nodes and the HAS_LEVEL edges between them.
type GraphRepository struct {
	db *pgxpool.Pool
}

// NewGraphRepository creates a new graph repository.
func NewGraphRepository(db *pgxpool.Pool) *GraphRepository {
	return &GraphRepository{db: db}
}

// UpsertAnnotations writes HAS_LEVEL edges in one batch. Each edge replaces any
// existing edge for the same artwork and dimension.
func (r *GraphRepository) UpsertAnnotations(ctx context.Context, annotations []models.QualityAnnotation) error {
	if len(annotations) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, a := range annotations {
		batch.Queue(`
			INSERT INTO has_level (artwork_id, dimension, level, reason)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (artwork_id, dimension)
			DO UPDATE SET level = EXCLUDED.level, reason = EXCLUDED.reason`,
			a.ArtworkID, string(a.Dimension), string(a.Level), a.Reason)
	}

	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		return classifyError(graphStore, fmt.Errorf("upsert annotations: %w", err))
	}

	return nil
}

// buildAnnotationsQuery returns the query for the HAS_LEVEL edges of the given
// artworks, optionally restricted to dimensions.
func buildAnnotationsQuery(filenames []string, dimensions []models.Dimension) (string, []any) {
	query := `
		SELECT a.id, a.filename, h.dimension, h.level, h.reason
		FROM has_level h
		INNER JOIN artworks a ON a.id = h.artwork_id
		WHERE a.filename = ANY($1)`
	args := []any{filenames}

	if len(dimensions) > 0 {
		names := make([]string, 0, len(dimensions))
		for _, d := range dimensions {
			names = append(names, string(d))
		}

		query += ` AND h.dimension = ANY($2)`
		args = append(args, names)
	}

	query += ` ORDER BY a.filename, h.dimension`

	return query, args
}

// AnnotationsByFilenames returns the HAS_LEVEL edges of the named artworks.
func (r *GraphRepository) AnnotationsByFilenames(
	ctx context.Context, filenames []string, dimensions []models.Dimension,
) ([]models.QualityAnnotation, error) {
	if len(filenames) == 0 {
		return nil, nil
	}

	query, args := buildAnnotationsQuery(filenames, dimensions)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, classifyError(graphStore, fmt.Errorf("annotations by filenames: %w", err))
	}
	defer rows.Close()

	var result []models.QualityAnnotation

	for rows.Next() {
		var (
			a         models.QualityAnnotation
			dimension string
			level     string
		)

		if err := rows.Scan(&a.ArtworkID, &a.Filename, &dimension, &level, &a.Reason); err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}

		a.Dimension = models.Dimension(dimension)
		a.Level = models.Level(level)
		result = append(result, a)
	}

	if err := rows.Err(); err != nil {
		return nil, classifyError(graphStore, fmt.Errorf("iterating annotations: %w", err))
	}

	return result, nil
}

// DescribeSchema renders the columns of the graph tables, one table per line,
// for inclusion in query-generation prompts.
func (r *GraphRepository) DescribeSchema(ctx context.Context) (string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT table_name, column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = ANY($1)
		ORDER BY table_name, ordinal_position`, graphTables)
	if err != nil {
		return "", classifyError(graphStore, fmt.Errorf("describe schema: %w", err))
	}
	defer rows.Close()

	type column struct{ table, name, dataType string }

	var columns []column

	for rows.Next() {
		var c column
		if err := rows.Scan(&c.table, &c.name, &c.dataType); err != nil {
			return "", fmt.Errorf("scan column: %w", err)
		}

		columns = append(columns, c)
	}

	if err := rows.Err(); err != nil {
		return "", classifyError(graphStore, fmt.Errorf("iterating columns: %w", err))
	}

	var b strings.Builder

	current := ""
	for _, c := range columns {
		if c.table != current {
			if current != "" {
				b.WriteString(")\n")
			}

			current = c.table
			b.WriteString(c.table + "(")
		} else {
			b.WriteString(", ")
		}

		b.WriteString(c.name + " " + c.dataType)
	}

	if current != "" {
		b.WriteString(")\n")
	}

	return b.String(), nil
}

// ErrUnsafeQuery is returned when a generated statement is not a single read-only SELECT.
var ErrUnsafeQuery = errors.New("query is not a single read-only SELECT")

var forbiddenKeywords = regexp.MustCompile(
	`(?i)\b(insert|update|delete|merge|drop|alter|create|truncate|grant|revoke|copy|call|do|vacuum|set|reset|lock|listen|notify|pg_sleep)\b`)

// sanitizeReadOnlyQuery trims a generated statement and rejects anything
// other than one SELECT or WITH statement.
func sanitizeReadOnlyQuery(query string) (string, error) {
	q := strings.TrimSpace(query)
	q = strings.TrimSuffix(q, ";")
	q = strings.TrimSpace(q)

	if q == "" || strings.Contains(q, ";") {
		return "", ErrUnsafeQuery
	}

	lower := strings.ToLower(q)
	if !strings.HasPrefix(lower, "select") && !strings.HasPrefix(lower, "with") {
		return "", ErrUnsafeQuery
	}

	if forbiddenKeywords.MatchString(q) {
		return "", ErrUnsafeQuery
	}

	return q, nil
}

// wrapWithLimit caps the row count of an arbitrary SELECT.
func wrapWithLimit(query string) string {
	return "SELECT * FROM (" + query + ") AS q LIMIT $1"
}

// RunReadOnlyQuery executes a generated SELECT inside a read-only transaction
// and returns at most limit rows keyed by column name.
func (r *GraphRepository) RunReadOnlyQuery(ctx context.Context, query string, limit int) ([]map[string]any, error) {
	safe, err := sanitizeReadOnlyQuery(query)
	if err != nil {
		return nil, critiqueerrors.NewValidationError("query", fmt.Sprintf("%v: %s", err, query))
	}

	if limit < 1 {
		return nil, critiqueerrors.NewValidationError("limit", "limit must be a positive integer")
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, classifyError(graphStore, fmt.Errorf("begin read-only tx: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, wrapWithLimit(safe), limit)
	if err != nil {
		return nil, classifyError(graphStore, fmt.Errorf("run generated query: %w", err))
	}

	result, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, classifyError(graphStore, fmt.Errorf("collect generated query rows: %w", err))
	}

	return result, nil
}
