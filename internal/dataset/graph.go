package dataset

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/gallery-ai/critic/internal/models"
)

// Graph import column headers.
const (
	ColumnNodeID       = "id:ID"
	ColumnNodeFilename = "filename:string"
	columnEmbedding    = "embedding"

	ColumnEdgeStart  = ":START_ID"
	ColumnEdgeEnd    = ":END_ID"
	ColumnEdgeLevel  = "level:string"
	ColumnEdgeReason = "reason:string"
	ColumnEdgeType   = ":TYPE"

	// EdgeTypeHasLevel labels artwork-to-dimension rating edges.
	EdgeTypeHasLevel = "HAS_LEVEL"
)

// EdgeHeader is the header of the HAS_LEVEL edge list.
var EdgeHeader = []string{ColumnEdgeStart, ColumnEdgeEnd, ColumnEdgeLevel, ColumnEdgeReason, ColumnEdgeType}

// ArtworkNode is one row of the artwork node table.
type ArtworkNode struct {
	ID        string
	Filename  string
	Embedding []float32
}

// Edge links an artwork to a dimension with a level and reason.
type Edge struct {
	StartID string
	EndID   models.Dimension
	Level   string
	Reason  string
	Type    string
}

// ReadArtworkNodes reads the artwork node table. IDs are kept as strings so
// leading zeros survive. An optional embedding column holds a JSON array.
func ReadArtworkNodes(r io.Reader) ([]ArtworkNode, error) {
	t, err := ReadTable(r)
	if err != nil {
		return nil, err
	}

	if err := t.Require(ColumnNodeID, ColumnNodeFilename); err != nil {
		return nil, err
	}

	embeddingColumn := ""

	for _, h := range t.Header {
		if h == columnEmbedding || strings.HasPrefix(h, columnEmbedding+":") {
			embeddingColumn = h

			break
		}
	}

	nodes := make([]ArtworkNode, 0, t.Len())

	for i := range t.Rows {
		node := ArtworkNode{
			ID:       strings.TrimSpace(t.Get(i, ColumnNodeID)),
			Filename: strings.TrimSpace(t.Get(i, ColumnNodeFilename)),
		}

		if node.ID == "" || node.Filename == "" {
			return nil, fmt.Errorf("artwork row %d: id and filename are required", i+1)
		}

		if embeddingColumn != "" {
			node.Embedding, err = parseEmbedding(t.Get(i, embeddingColumn))
			if err != nil {
				return nil, fmt.Errorf("artwork row %d: %w", i+1, err)
			}
		}

		nodes = append(nodes, node)
	}

	return nodes, nil
}

// parseEmbedding accepts "[0.1, 0.2]" or neo4j's "0.1;0.2" array form. Empty means no embedding.
func parseEmbedding(raw string) ([]float32, error) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "none") {
		return nil, nil
	}

	if !strings.HasPrefix(s, "[") {
		s = "[" + strings.ReplaceAll(s, ";", ",") + "]"
	}

	var v []float32
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("parse embedding: %w", err)
	}

	return v, nil
}

// FilenameIndex maps artwork filenames to node IDs.
func FilenameIndex(nodes []ArtworkNode) map[string]string {
	index := make(map[string]string, len(nodes))
	for _, n := range nodes {
		index[n.Filename] = n.ID
	}

	return index
}

// EdgeStats summarizes BuildEdgeList.
type EdgeStats struct {
	Rows            int
	Edges           int
	UnknownArtworks int
	EmptyLevels     int
	PerDimension    map[models.Dimension]int
}

// BuildEdgeList turns each binned row into one HAS_LEVEL edge per dimension
// with a non-empty level. Rows whose filename is not in ids are skipped with
// a warning.
func BuildEdgeList(t *Table, ids map[string]string, logger *slog.Logger) ([]Edge, EdgeStats, error) {
	if logger == nil {
		logger = slog.Default()
	}

	stats := EdgeStats{Rows: t.Len(), PerDimension: make(map[models.Dimension]int)}

	required := []string{ColumnFilename}
	for _, d := range models.Dimensions {
		required = append(required, string(d), d.ReasonColumn())
	}

	if err := t.Require(required...); err != nil {
		return nil, stats, err
	}

	var edges []Edge

	for i := range t.Rows {
		filename := strings.TrimSpace(t.Get(i, ColumnFilename))

		id, ok := ids[filename]
		if !ok {
			logger.Warn("filename not found in artwork nodes, skipping row", "filename", filename, "row", i+1)
			stats.UnknownArtworks++

			continue
		}

		for _, d := range models.Dimensions {
			level := strings.TrimSpace(t.Get(i, string(d)))
			if level == "" || strings.EqualFold(level, "nan") {
				stats.EmptyLevels++

				continue
			}

			reason := strings.TrimSpace(t.Get(i, d.ReasonColumn()))
			if strings.EqualFold(reason, "nan") {
				reason = ""
			}

			edges = append(edges, Edge{StartID: id, EndID: d, Level: level, Reason: reason, Type: EdgeTypeHasLevel})
			stats.PerDimension[d]++
		}
	}

	stats.Edges = len(edges)

	return edges, stats, nil
}

// WriteEdgeList writes edges as CSV. Level and reason are always quoted so an
// empty reason is imported as an empty string rather than a missing value.
func WriteEdgeList(w io.Writer, edges []Edge) error {
	var b strings.Builder

	b.WriteString(strings.Join(EdgeHeader, ","))
	b.WriteByte('\n')

	for _, e := range edges {
		b.WriteString(csvField(e.StartID))
		b.WriteByte(',')
		b.WriteString(csvField(string(e.EndID)))
		b.WriteByte(',')
		b.WriteString(quoted(e.Level))
		b.WriteByte(',')
		b.WriteString(quoted(e.Reason))
		b.WriteByte(',')
		b.WriteString(csvField(e.Type))
		b.WriteByte('\n')
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write edge list: %w", err)
	}

	return nil
}

func quoted(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func csvField(s string) string {
	if s == "" || strings.ContainsAny(s, ",\"\r\n") || s[0] == ' ' {
		return quoted(s)
	}

	return s
}

// ReadEdgeList reads a HAS_LEVEL edge list. Edges of other types and edges
// to unknown dimensions are rejected.
func ReadEdgeList(r io.Reader) ([]Edge, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read edge header: %w", err)
	}

	t := NewTable(header)
	if err := t.Require(EdgeHeader...); err != nil {
		return nil, err
	}

	var edges []Edge

	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("read edge line %d: %w", line, err)
		}

		t.Rows = append(t.Rows, record)
		row := len(t.Rows) - 1

		dim, ok := models.ParseDimension(t.Get(row, ColumnEdgeEnd))
		if !ok {
			return nil, fmt.Errorf("edge line %d: unknown dimension %q", line, t.Get(row, ColumnEdgeEnd))
		}

		if typ := t.Get(row, ColumnEdgeType); typ != EdgeTypeHasLevel {
			return nil, fmt.Errorf("edge line %d: unexpected edge type %q", line, typ)
		}

		edges = append(edges, Edge{
			StartID: t.Get(row, ColumnEdgeStart),
			EndID:   dim,
			Level:   t.Get(row, ColumnEdgeLevel),
			Reason:  t.Get(row, ColumnEdgeReason),
			Type:    EdgeTypeHasLevel,
		})
	}

	return edges, nil
}
