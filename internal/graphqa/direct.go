package graphqa

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gallery-ai/critic/internal/models"
)

// AnnotationSource reads HAS_LEVEL edges by artwork filename.
type AnnotationSource interface {
	AnnotationsByFilenames(ctx context.Context, filenames []string, dimensions []models.Dimension) ([]models.QualityAnnotation, error)
}

// Direct answers annotation requests with a templated query instead of a
// generated one. Its payload has the same shape Chain is asked to produce.
type Direct struct {
	source AnnotationSource
}

// NewDirect creates a Direct querier.
func NewDirect(source AnnotationSource) *Direct {
	return &Direct{source: source}
}

type annotationPayload struct {
	Filename  string `json:"filename"`
	Dimension string `json:"dimension"`
	Level     string `json:"level"`
	Reason    string `json:"reason"`
}

// QueryAnnotations returns the edges of the requested artworks as a JSON array.
func (d *Direct) QueryAnnotations(ctx context.Context, req AnnotationRequest) (string, error) {
	annotations, err := d.source.AnnotationsByFilenames(ctx, req.Filenames, req.Dimensions)
	if err != nil {
		return "", fmt.Errorf("annotations by filenames: %w", err)
	}

	payload := make([]annotationPayload, 0, len(annotations))
	for _, a := range annotations {
		payload = append(payload, annotationPayload{
			Filename:  a.Filename,
			Dimension: string(a.Dimension),
			Level:     string(a.Level),
			Reason:    a.Reason,
		})
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal annotations: %w", err)
	}

	return string(data), nil
}
