package workers

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

const (
	defaultInitialBackoff = 500 * time.Millisecond
	backoffMultiplier     = 2
)

// RetryingInserterConfig holds configuration for RetryingInserter.
type RetryingInserterConfig struct {
	MaxRetries     int           // Retries after the first attempt.
	InitialBackoff time.Duration // Doubles each attempt, capped by MaxBackoff.
	MaxBackoff     time.Duration
	Logger         *slog.Logger
}

// RetryingInserter wraps a JobInserter and retries InsertMany with
// exponential backoff and jitter. Use for transient River/DB errors.
type RetryingInserter struct {
	inner          JobInserter
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
}

// NewRetryingInserter returns a JobInserter that retries InsertMany on error.
func NewRetryingInserter(inner JobInserter, cfg RetryingInserterConfig) *RetryingInserter {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}

	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &RetryingInserter{
		inner:          inner,
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         cfg.Logger,
	}
}

// InsertMany calls the inner inserter, retrying up to maxRetries times.
// Context cancellation during backoff aborts the retry loop.
func (r *RetryingInserter) InsertMany(
	ctx context.Context, params []river.InsertManyParams,
) ([]*rivertype.JobInsertResult, error) {
	var lastErr error

	backoff := r.initialBackoff

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		results, err := r.inner.InsertMany(ctx, params)
		if err == nil {
			return results, nil
		}

		lastErr = err

		if attempt == r.maxRetries {
			break
		}

		sleep := jitter(backoff)
		r.logger.Warn("enqueue failed, retrying after backoff",
			"attempt", attempt+1,
			"max_attempts", r.maxRetries+1,
			"backoff", sleep,
			"error", err,
		)

		if err := sleepCtx(ctx, sleep); err != nil {
			return nil, err
		}

		backoff = min(backoff*backoffMultiplier, r.maxBackoff)
	}

	return nil, lastErr
}

// jitter returns a duration between 50% and 100% of d.
func jitter(d time.Duration) time.Duration {
	half := d / 2
	if half <= 0 {
		return d
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return half
	}

	//nolint:gosec // G115: modulo result is in [0, half), safe to convert to int64
	n := int64(binary.BigEndian.Uint64(buf[:]) % uint64(half.Nanoseconds()))

	return half + time.Duration(n)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

var _ JobInserter = (*RetryingInserter)(nil)
