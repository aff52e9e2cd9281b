package workers

import (
	"context"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

const (
	artworkEmbeddingKind = "artwork_embedding"
	// EmbeddingsQueueName is the River queue used for artwork embedding jobs.
	EmbeddingsQueueName = "embeddings"
)

// JobInserter inserts jobs in bulk (e.g. the River client).
type JobInserter interface {
	InsertMany(ctx context.Context, params []river.InsertManyParams) ([]*rivertype.JobInsertResult, error)
}

// ArtworkEmbeddingArgs is the job payload for encoding one reference artwork image.
// Uniqueness is by ArtworkID so repeated backfills do not create duplicate jobs.
type ArtworkEmbeddingArgs struct {
	ArtworkID string `json:"artwork_id" river:"unique"`
	// Force re-encodes an artwork that already has an embedding.
	Force bool `json:"force,omitempty"`
}

// Kind returns the River job kind.
func (ArtworkEmbeddingArgs) Kind() string { return artworkEmbeddingKind }

// InsertOpts puts the job on the embeddings queue.
func (ArtworkEmbeddingArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{Queue: EmbeddingsQueueName}
}

var (
	_ river.JobArgs               = ArtworkEmbeddingArgs{}
	_ river.JobArgsWithInsertOpts = ArtworkEmbeddingArgs{}
)
