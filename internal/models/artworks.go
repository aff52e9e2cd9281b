package models

// Artwork is a reference artwork in the corpus. Embedding is nil until the
// image has been encoded.
type Artwork struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// QualityAnnotation is one HAS_LEVEL edge: the level an artwork reached on a dimension and why.
type QualityAnnotation struct {
	ArtworkID string    `json:"artwork_id"`
	Filename  string    `json:"filename"`
	Dimension Dimension `json:"dimension"`
	Level     Level     `json:"level"`
	Reason    string    `json:"reason"`
}

// RetrievalHit is one nearest-neighbour match.
// Score is the cosine similarity, 1 - Distance.
type RetrievalHit struct {
	Filename string  `json:"filename"`
	Distance float64 `json:"distance"`
	Score    float64 `json:"score"`
}

// RetrievalResult holds hits ordered by non-decreasing distance.
type RetrievalResult struct {
	Hits []RetrievalHit `json:"hits"`
}

// Filenames returns the hit filenames in retrieval order.
func (r RetrievalResult) Filenames() []string {
	out := make([]string, 0, len(r.Hits))
	for _, h := range r.Hits {
		out = append(out, h.Filename)
	}

	return out
}
