package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listerFunc func(ctx context.Context) ([]string, error)

func (f listerFunc) ListIDsMissingEmbedding(ctx context.Context) ([]string, error) { return f(ctx) }

type recordingInserter struct {
	batches    [][]river.InsertManyParams
	duplicates map[string]bool
	failUntil  int
	calls      int
}

func (r *recordingInserter) InsertMany(
	_ context.Context, params []river.InsertManyParams,
) ([]*rivertype.JobInsertResult, error) {
	r.calls++
	if r.calls < r.failUntil {
		return nil, errors.New("transient error")
	}

	r.batches = append(r.batches, params)

	results := make([]*rivertype.JobInsertResult, len(params))
	for i, p := range params {
		args, _ := p.Args.(ArtworkEmbeddingArgs)
		results[i] = &rivertype.JobInsertResult{
			Job:                      &rivertype.JobRow{ID: int64(i + 1)},
			UniqueSkippedAsDuplicate: r.duplicates[args.ArtworkID],
		}
	}

	return results, nil
}

func TestBackfillEmbeddings(t *testing.T) {
	ctx := context.Background()
	ids := listerFunc(func(context.Context) ([]string, error) { return []string{"a", "b", "c", "d", "e"}, nil })

	t.Run("enqueues in batches and skips duplicates", func(t *testing.T) {
		inserter := &recordingInserter{duplicates: map[string]bool{"c": true}}
		metrics := &fakeMetrics{}

		n, err := BackfillEmbeddings(ctx, BackfillParams{
			Lister:      ids,
			Inserter:    inserter,
			MaxAttempts: 3,
			BatchSize:   2,
			Metrics:     metrics,
		})
		require.NoError(t, err)
		assert.Equal(t, 4, n)
		assert.Equal(t, int64(4), metrics.enqueued)
		require.Len(t, inserter.batches, 3)
		assert.Len(t, inserter.batches[2], 1)

		first := inserter.batches[0][0]
		assert.Equal(t, ArtworkEmbeddingArgs{ArtworkID: "a"}, first.Args)
		assert.Equal(t, EmbeddingsQueueName, first.InsertOpts.Queue)
		assert.Equal(t, 3, first.InsertOpts.MaxAttempts)
	})

	t.Run("nothing to do", func(t *testing.T) {
		inserter := &recordingInserter{}
		empty := listerFunc(func(context.Context) ([]string, error) { return nil, nil })

		n, err := BackfillEmbeddings(ctx, BackfillParams{Lister: empty, Inserter: inserter})
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Zero(t, inserter.calls)
	})

	t.Run("list failure", func(t *testing.T) {
		failing := listerFunc(func(context.Context) ([]string, error) { return nil, errors.New("down") })

		_, err := BackfillEmbeddings(ctx, BackfillParams{Lister: failing, Inserter: &recordingInserter{}})
		require.Error(t, err)
	})

	t.Run("insert failure reports what was enqueued", func(t *testing.T) {
		inserter := &recordingInserter{failUntil: 99}

		n, err := BackfillEmbeddings(ctx, BackfillParams{Lister: ids, Inserter: inserter})
		require.Error(t, err)
		assert.Zero(t, n)
	})
}

func TestRetryingInserter(t *testing.T) {
	params := []river.InsertManyParams{{Args: ArtworkEmbeddingArgs{ArtworkID: "a"}}}

	t.Run("succeeds after retries", func(t *testing.T) {
		inner := &recordingInserter{failUntil: 3}
		r := NewRetryingInserter(inner, RetryingInserterConfig{
			MaxRetries:     5,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     10 * time.Millisecond,
		})

		results, err := r.InsertMany(context.Background(), params)
		require.NoError(t, err)
		assert.Len(t, results, 1)
		assert.Equal(t, 3, inner.calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		inner := &recordingInserter{failUntil: 99}
		r := NewRetryingInserter(inner, RetryingInserterConfig{MaxRetries: 2, InitialBackoff: time.Millisecond})

		_, err := r.InsertMany(context.Background(), params)
		require.Error(t, err)
		assert.Equal(t, 3, inner.calls)
	})

	t.Run("stops when the context is cancelled", func(t *testing.T) {
		inner := &recordingInserter{failUntil: 99}
		r := NewRetryingInserter(inner, RetryingInserterConfig{MaxRetries: 5, InitialBackoff: time.Hour})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := r.InsertMany(ctx, params)
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, inner.calls)
	})
}

func TestJitterBounds(t *testing.T) {
	for range 50 {
		d := jitter(100 * time.Millisecond)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.Less(t, d, 100*time.Millisecond)
	}
}
