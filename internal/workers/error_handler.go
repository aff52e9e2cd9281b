package workers

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/gallery-ai/critic/internal/observability"
)

const reasonPanic = "panic"

// ErrorHandler logs failed and panicking jobs with the artwork they were for.
// It returns nil so River applies its default retry schedule.
type ErrorHandler struct {
	Logger  *slog.Logger
	Metrics observability.EmbeddingMetrics
}

func (h *ErrorHandler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}

	return h.Logger
}

func jobAttrs(job *rivertype.JobRow) []any {
	attrs := []any{
		"job_kind", job.Kind,
		"job_id", job.ID,
		"attempt", job.Attempt,
		"max_attempts", job.MaxAttempts,
	}

	if job.Kind == artworkEmbeddingKind {
		var args ArtworkEmbeddingArgs
		if err := json.Unmarshal(job.EncodedArgs, &args); err == nil {
			attrs = append(attrs, "artwork_id", args.ArtworkID)
		}
	}

	return attrs
}

// HandleError is called when a job returns an error.
func (h *ErrorHandler) HandleError(ctx context.Context, job *rivertype.JobRow, err error) *river.ErrorHandlerResult {
	attrs := append(jobAttrs(job), "error", err)

	if job.Attempt >= job.MaxAttempts {
		h.logger().ErrorContext(ctx, "job discarded after final attempt", attrs...)
	} else {
		h.logger().WarnContext(ctx, "job failed, will retry", attrs...)
	}

	return nil
}

// HandlePanic is called when a job panics.
func (h *ErrorHandler) HandlePanic(
	ctx context.Context, job *rivertype.JobRow, panicVal any, trace string,
) *river.ErrorHandlerResult {
	if h.Metrics != nil && job.Kind == artworkEmbeddingKind {
		h.Metrics.RecordWorkerError(ctx, reasonPanic)
	}

	h.logger().ErrorContext(ctx, "job panicked",
		append(jobAttrs(job), "panic_value", panicVal, "stack_trace", trace)...)

	return nil
}

var _ river.ErrorHandler = (*ErrorHandler)(nil)
