package workers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gallery-ai/critic/internal/critiqueerrors"
	"github.com/gallery-ai/critic/internal/imaging"
	"github.com/gallery-ai/critic/internal/models"
)

type fakeArtworks struct {
	artworks map[string]*models.Artwork
	getErr   error
	setErr   error
	stored   map[string][]float32
}

func newFakeArtworks(artworks ...models.Artwork) *fakeArtworks {
	f := &fakeArtworks{artworks: map[string]*models.Artwork{}, stored: map[string][]float32{}}
	for i := range artworks {
		f.artworks[artworks[i].ID] = &artworks[i]
	}

	return f
}

func (f *fakeArtworks) GetByID(_ context.Context, id string) (*models.Artwork, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}

	a, ok := f.artworks[id]
	if !ok {
		return nil, errors.New("artwork not found")
	}

	return a, nil
}

func (f *fakeArtworks) SetEmbedding(_ context.Context, id string, embedding []float32) error {
	if f.setErr != nil {
		return f.setErr
	}

	f.stored[id] = embedding

	return nil
}

type fakeEncoder struct {
	vector []float32
	err    error
	calls  int
}

func (e *fakeEncoder) Encode(context.Context, []byte) ([]float32, error) {
	e.calls++

	return e.vector, e.err
}

type fakeMetrics struct {
	outcomes []string
	reasons  []string
	enqueued int64
}

func (m *fakeMetrics) RecordJobsEnqueued(_ context.Context, count int64) { m.enqueued += count }
func (m *fakeMetrics) RecordEmbeddingOutcome(_ context.Context, status string) {
	m.outcomes = append(m.outcomes, status)
}
func (m *fakeMetrics) RecordWorkerError(_ context.Context, reason string) {
	m.reasons = append(m.reasons, reason)
}
func (m *fakeMetrics) RecordEmbeddingDuration(context.Context, time.Duration, string) {}
func (m *fakeMetrics) SetQueueDepth(int)                                              {}

func imageDir(t *testing.T, names ...string) *imaging.DirSource {
	t.Helper()

	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("image bytes"), 0o600))
	}

	return imaging.NewDirSource(dir)
}

func embeddingJob(id string, attempt, maxAttempts int) *river.Job[ArtworkEmbeddingArgs] {
	return &river.Job[ArtworkEmbeddingArgs]{
		JobRow: &rivertype.JobRow{Attempt: attempt, MaxAttempts: maxAttempts},
		Args:   ArtworkEmbeddingArgs{ArtworkID: id},
	}
}

func TestArtworkEmbeddingWorker_Work(t *testing.T) {
	ctx := context.Background()

	t.Run("stores the encoded embedding", func(t *testing.T) {
		store := newFakeArtworks(models.Artwork{ID: "a1", Filename: "a.jpg"})
		encoder := &fakeEncoder{vector: []float32{1, 0}}
		metrics := &fakeMetrics{}
		w := NewArtworkEmbeddingWorker(store, imageDir(t, "a.jpg"), encoder, metrics, nil)

		require.NoError(t, w.Work(ctx, embeddingJob("a1", 1, 3)))
		assert.Equal(t, []float32{1, 0}, store.stored["a1"])
		assert.Equal(t, []string{"success"}, metrics.outcomes)
	})

	t.Run("unknown artwork is dropped", func(t *testing.T) {
		metrics := &fakeMetrics{}
		w := NewArtworkEmbeddingWorker(newFakeArtworks(), imageDir(t), &fakeEncoder{}, metrics, nil)

		require.NoError(t, w.Work(ctx, embeddingJob("missing", 1, 3)))
		assert.Equal(t, []string{"get_artwork"}, metrics.reasons)
		assert.Equal(t, []string{"failed_final"}, metrics.outcomes)
	})

	t.Run("unavailable store is retried", func(t *testing.T) {
		store := newFakeArtworks()
		store.getErr = critiqueerrors.NewStoreUnavailableError("vector", errors.New("refused"))
		metrics := &fakeMetrics{}
		w := NewArtworkEmbeddingWorker(store, imageDir(t), &fakeEncoder{}, metrics, nil)

		err := w.Work(ctx, embeddingJob("a1", 1, 3))
		require.ErrorIs(t, err, critiqueerrors.ErrStoreUnavailable)
		assert.Equal(t, []string{"retry"}, metrics.outcomes)
	})

	t.Run("already encoded artwork is skipped", func(t *testing.T) {
		store := newFakeArtworks(models.Artwork{ID: "a1", Filename: "a.jpg", Embedding: []float32{0, 1}})
		encoder := &fakeEncoder{vector: []float32{1, 0}}
		metrics := &fakeMetrics{}
		w := NewArtworkEmbeddingWorker(store, imageDir(t, "a.jpg"), encoder, metrics, nil)

		require.NoError(t, w.Work(ctx, embeddingJob("a1", 1, 3)))
		assert.Zero(t, encoder.calls)
		assert.Equal(t, []string{"skipped"}, metrics.outcomes)
	})

	t.Run("force re-encodes", func(t *testing.T) {
		store := newFakeArtworks(models.Artwork{ID: "a1", Filename: "a.jpg", Embedding: []float32{0, 1}})
		encoder := &fakeEncoder{vector: []float32{1, 0}}
		w := NewArtworkEmbeddingWorker(store, imageDir(t, "a.jpg"), encoder, nil, nil)

		job := embeddingJob("a1", 1, 3)
		job.Args.Force = true
		require.NoError(t, w.Work(ctx, job))
		assert.Equal(t, []float32{1, 0}, store.stored["a1"])
	})

	t.Run("missing image file is dropped", func(t *testing.T) {
		store := newFakeArtworks(models.Artwork{ID: "a1", Filename: "gone.jpg"})
		metrics := &fakeMetrics{}
		w := NewArtworkEmbeddingWorker(store, imageDir(t), &fakeEncoder{}, metrics, nil)

		require.NoError(t, w.Work(ctx, embeddingJob("a1", 1, 3)))
		assert.Equal(t, []string{"read_image"}, metrics.reasons)
	})

	t.Run("undecodable image is dropped", func(t *testing.T) {
		store := newFakeArtworks(models.Artwork{ID: "a1", Filename: "a.jpg"})
		encoder := &fakeEncoder{err: critiqueerrors.NewImageDecodeError("bad", nil)}
		metrics := &fakeMetrics{}
		w := NewArtworkEmbeddingWorker(store, imageDir(t, "a.jpg"), encoder, metrics, nil)

		require.NoError(t, w.Work(ctx, embeddingJob("a1", 1, 3)))
		assert.Equal(t, []string{"encode"}, metrics.reasons)
		assert.Equal(t, []string{"failed_final"}, metrics.outcomes)
	})

	t.Run("model failure retries then gives up on the last attempt", func(t *testing.T) {
		store := newFakeArtworks(models.Artwork{ID: "a1", Filename: "a.jpg"})
		encoder := &fakeEncoder{err: critiqueerrors.NewModelInferenceError("", errors.New("503"))}
		metrics := &fakeMetrics{}
		w := NewArtworkEmbeddingWorker(store, imageDir(t, "a.jpg"), encoder, metrics, nil)

		require.ErrorIs(t, w.Work(ctx, embeddingJob("a1", 1, 3)), critiqueerrors.ErrModelInference)
		require.NoError(t, w.Work(ctx, embeddingJob("a1", 3, 3)))
		assert.Equal(t, []string{"retry", "failed_final"}, metrics.outcomes)
		assert.Empty(t, store.stored)
	})

	t.Run("store failure is retried", func(t *testing.T) {
		store := newFakeArtworks(models.Artwork{ID: "a1", Filename: "a.jpg"})
		store.setErr = errors.New("deadlock")
		w := NewArtworkEmbeddingWorker(store, imageDir(t, "a.jpg"), &fakeEncoder{vector: []float32{1}}, nil, nil)

		require.Error(t, w.Work(ctx, embeddingJob("a1", 1, 3)))
	})
}

func TestArtworkEmbeddingArgs(t *testing.T) {
	args := ArtworkEmbeddingArgs{ArtworkID: "a1"}
	assert.Equal(t, "artwork_embedding", args.Kind())
	assert.Equal(t, EmbeddingsQueueName, args.InsertOpts().Queue)
}
