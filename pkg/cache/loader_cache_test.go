package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	hits, misses, evictions atomic.Int32
}

func (o *countingObserver) OnHit(context.Context)  { o.hits.Add(1) }
func (o *countingObserver) OnMiss(context.Context) { o.misses.Add(1) }
func (o *countingObserver) OnEvict()               { o.evictions.Add(1) }

func fileLoader(loads *atomic.Int32) Loader[[]byte] {
	return func(_ context.Context, name string) ([]byte, error) {
		loads.Add(1)

		return []byte("bytes of " + name), nil
	}
}

func TestLoaderCache_MissThenHit(t *testing.T) {
	var loads atomic.Int32

	c, err := New(4, fileLoader(&loads))
	require.NoError(t, err)

	ctx := context.Background()

	v, hit, err := c.Lookup(ctx, "starry_night.jpg")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "bytes of starry_night.jpg", string(v))

	v, hit, err = c.Lookup(ctx, "starry_night.jpg")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "bytes of starry_night.jpg", string(v))
	assert.Equal(t, int32(1), loads.Load())
}

func TestLoaderCache_ConcurrentMissesShareOneLoad(t *testing.T) {
	var loads atomic.Int32

	release := make(chan struct{})

	c, err := New[int](4, func(_ context.Context, _ string) (int, error) {
		loads.Add(1)
		<-release

		return 42, nil
	})
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		started sync.WaitGroup
	)

	results := make([]int, 8)

	for i := range results {
		wg.Add(1)
		started.Add(1)

		go func() {
			defer wg.Done()

			started.Done()

			v, err := c.Get(context.Background(), "a.jpg")
			assert.NoError(t, err)

			results[i] = v
		}()
	}

	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, v := range results {
		assert.Equal(t, 42, v)
	}

	assert.LessOrEqual(t, loads.Load(), int32(len(results)))
	assert.GreaterOrEqual(t, loads.Load(), int32(1))
}

func TestLoaderCache_LoadErrorIsNotCached(t *testing.T) {
	var calls atomic.Int32

	missing := errors.New("no such file")

	c, err := New[string](4, func(_ context.Context, _ string) (string, error) {
		if calls.Add(1) == 1 {
			return "", missing
		}

		return "ok", nil
	})
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "a.jpg")
	require.ErrorIs(t, err, missing)
	assert.Zero(t, c.Len())

	v, err := c.Get(context.Background(), "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestLoaderCache_CancelledCallerDoesNotFailLoad(t *testing.T) {
	release := make(chan struct{})

	c, err := New[string](4, func(ctx context.Context, _ string) (string, error) {
		<-release

		return "loaded", ctx.Err()
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)

	go func() {
		_, err := c.Get(ctx, "a.jpg")
		errs <- err
	}()

	cancel()
	require.ErrorIs(t, <-errs, context.Canceled)

	close(release)

	require.Eventually(t, func() bool { return c.Len() == 1 }, time.Second, 5*time.Millisecond)

	v, hit, err := c.Lookup(context.Background(), "a.jpg")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "loaded", v)
}

func TestLoaderCache_EvictsLeastRecentlyUsed(t *testing.T) {
	var loads atomic.Int32

	obs := &countingObserver{}

	c, err := New(2, fileLoader(&loads), WithObserver(obs))
	require.NoError(t, err)

	ctx := context.Background()
	for _, k := range []string{"a.jpg", "b.jpg", "a.jpg", "c.jpg"} {
		_, err := c.Get(ctx, k)
		require.NoError(t, err)
	}

	_, hit, err := c.Lookup(ctx, "a.jpg")
	require.NoError(t, err)
	assert.True(t, hit, "recently used entry survives")

	_, hit, err = c.Lookup(ctx, "b.jpg")
	require.NoError(t, err)
	assert.False(t, hit, "least recently used entry is evicted")

	assert.Equal(t, int32(2), obs.hits.Load())
	assert.Equal(t, int32(4), obs.misses.Load())
	assert.Equal(t, int32(2), obs.evictions.Load())
}

func TestLoaderCache_RemoveAndPurge(t *testing.T) {
	var loads atomic.Int32

	c, err := New(4, fileLoader(&loads))
	require.NoError(t, err)

	ctx := context.Background()
	_, _ = c.Get(ctx, "a.jpg")
	_, _ = c.Get(ctx, "b.jpg")
	require.Equal(t, 2, c.Len())

	c.Remove("a.jpg")
	assert.Equal(t, 1, c.Len())

	c.Purge()
	assert.Zero(t, c.Len())
}

func TestNew_InvalidSize(t *testing.T) {
	_, err := New(0, fileLoader(new(atomic.Int32)))
	require.Error(t, err)
}
