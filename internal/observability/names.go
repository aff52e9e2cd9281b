// Package observability provides structured logging, OpenTelemetry metrics and
// tracing for the critique service, the enrichment pipeline and the embedding worker.
package observability

// Metric names (Prometheus / OpenTelemetry).
const (
	MetricNameCritiqueRequests       = "critic_critique_requests_total"
	MetricNameCritiqueDuration       = "critic_critique_duration_seconds"
	MetricNameRetrievalHits          = "critic_retrieval_hits"
	MetricNameRetrievalDuration      = "critic_retrieval_duration_seconds"
	MetricNameEvidenceOutcomes       = "critic_evidence_outcomes_total"
	MetricNameEvidenceRecords        = "critic_evidence_records"
	MetricNameEnrichmentRows         = "critic_enrichment_rows_total"
	MetricNameEnrichmentCheckpoints  = "critic_enrichment_checkpoints_total"
	MetricNameEmbeddingJobsEnqueued  = "critic_embedding_jobs_enqueued_total"
	MetricNameEmbeddingOutcomes      = "critic_embedding_outcomes_total"
	MetricNameEmbeddingWorkerErrors  = "critic_embedding_worker_errors_total"
	MetricNameEmbeddingDuration      = "critic_embedding_duration_seconds"
	MetricNameEmbeddingQueueDepth    = "critic_embedding_queue_depth"
	MetricNameCacheLookups           = "critic_cache_lookups_total"
	MetricNameCacheEvictions         = "critic_cache_evictions_total"
	durationHistogramInstrumentMatch = "critic_*_duration_seconds"
)

// Attribute keys.
const (
	AttrPath   = "path"
	AttrReason = "reason"
	AttrStatus = "status"
	AttrCache  = "cache"
	AttrResult = "result"
)

// Critique paths.
const (
	PathText  = "text"
	PathImage = "image"
)

// Critique request statuses.
const (
	CritiqueStatusSuccess           = "success"
	CritiqueStatusEncodingFailed    = "encoding_failed"
	CritiqueStatusStoreUnavailable  = "store_unavailable"
	CritiqueStatusGenerationFailed  = "generation_failed"
	CritiqueStatusGraphQueryFailed  = "graph_query_failed"
	CritiqueStatusInvalidRequest    = "invalid_request"
	CritiqueStatusNoSimilarArtworks = "no_similar_artworks"
)

// AllowedCritiqueStatuses for critic_critique_requests_total.
var AllowedCritiqueStatuses = map[string]bool{
	CritiqueStatusSuccess:           true,
	CritiqueStatusEncodingFailed:    true,
	CritiqueStatusStoreUnavailable:  true,
	CritiqueStatusGenerationFailed:  true,
	CritiqueStatusGraphQueryFailed:  true,
	CritiqueStatusInvalidRequest:    true,
	CritiqueStatusNoSimilarArtworks: true,
}

// Evidence assembly outcomes.
const (
	EvidenceOutcomeSuccess      = "success"
	EvidenceOutcomeRetrySuccess = "retry_success"
	EvidenceOutcomeMalformed    = "malformed"
	EvidenceOutcomeEmpty        = "empty"
	EvidenceOutcomeFailed       = "failed"
)

// AllowedEvidenceOutcomes for critic_evidence_outcomes_total.
var AllowedEvidenceOutcomes = map[string]bool{
	EvidenceOutcomeSuccess:      true,
	EvidenceOutcomeRetrySuccess: true,
	EvidenceOutcomeMalformed:    true,
	EvidenceOutcomeEmpty:        true,
	EvidenceOutcomeFailed:       true,
}

// Enrichment row statuses.
const (
	EnrichmentStatusEnriched      = "enriched"
	EnrichmentStatusSkippedEmpty  = "skipped_empty"
	EnrichmentStatusFailedNulled  = "failed_nulled"
	EnrichmentStatusNoReasons     = "no_reasons"
	EnrichmentStatusAlreadyFilled = "already_filled"
)

// AllowedEnrichmentStatuses for critic_enrichment_rows_total.
var AllowedEnrichmentStatuses = map[string]bool{
	EnrichmentStatusEnriched:      true,
	EnrichmentStatusSkippedEmpty:  true,
	EnrichmentStatusFailedNulled:  true,
	EnrichmentStatusNoReasons:     true,
	EnrichmentStatusAlreadyFilled: true,
}

// Embedding job outcomes.
const (
	EmbeddingOutcomeSuccess     = "success"
	EmbeddingOutcomeRetry       = "retry"
	EmbeddingOutcomeFailedFinal = "failed_final"
	EmbeddingOutcomeSkipped     = "skipped"
)

// AllowedEmbeddingOutcomes for critic_embedding_outcomes_total.
var AllowedEmbeddingOutcomes = map[string]bool{
	EmbeddingOutcomeSuccess:     true,
	EmbeddingOutcomeRetry:       true,
	EmbeddingOutcomeFailedFinal: true,
	EmbeddingOutcomeSkipped:     true,
}

// AllowedEmbeddingWorkerReasons for critic_embedding_worker_errors_total.
var AllowedEmbeddingWorkerReasons = map[string]bool{
	"get_artwork": true,
	"read_image":  true,
	"encode":      true,
	"store":       true,
	"panic":       true,
}

// AllowedCacheNames bounds the cache label.
var AllowedCacheNames = map[string]bool{
	CacheReferenceImages: true,
}

// CacheReferenceImages names the optimized reference image cache.
const CacheReferenceImages = "reference_images"

// Cache lookup results.
const (
	CacheResultHit  = "hit"
	CacheResultMiss = "miss"
)

// NormalizeReason returns reason if in allowed, otherwise "other".
func NormalizeReason(reason string, allowed map[string]bool) string {
	if allowed[reason] {
		return reason
	}

	return "other"
}
