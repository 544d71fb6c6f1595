// Package metrics содержит Prometheus-метрики движка рекомендаций.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultOK    = "ok"
	ResultError = "error"
	ResultEmpty = "empty"
)

var (
	// RecommendRequestsTotal считает запросы рекомендаций по результату.
	RecommendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_requests_total",
			Help: "Total number of recommendation requests",
		},
		[]string{"result"},
	)

	RecommendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommender_request_duration_seconds",
			Help:    "Duration of recommendation requests in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// CandidatesTotal считает кандидатов, выданных каждым генератором.
	CandidatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_candidates_total",
			Help: "Total number of candidates produced per signal",
		},
		[]string{"signal"},
	)

	// SignalFailuresTotal считает генераторы, деградировавшие в пустой список.
	SignalFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_signal_failures_total",
			Help: "Total number of candidate generator failures",
		},
		[]string{"signal"},
	)

	ProfileCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_profile_cache_total",
			Help: "User profile cache lookups by outcome",
		},
		[]string{"outcome"},
	)

	ExplanationFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommender_explanation_fallbacks_total",
			Help: "Explanations replaced by the placeholder",
		},
	)

	EmbeddingReloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_embedding_reloads_total",
			Help: "Embedding dataset reloads by result",
		},
		[]string{"result"},
	)

	EmbeddingDatasetSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recommender_embedding_dataset_size",
			Help: "Number of products in the active embedding snapshot",
		},
	)

	// LLMRequestsTotal считает обращения к генератору объяснений: success, failure, rejected.
	LLMRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_llm_requests_total",
			Help: "Explanation collaborator calls by outcome",
		},
		[]string{"outcome"},
	)

	// LLMBreakerState — состояние circuit breaker: 0 closed, 1 half-open, 2 open.
	LLMBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recommender_llm_breaker_state",
			Help: "Circuit breaker state of the explanation collaborator",
		},
	)

	ExplanationCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_explanation_cache_total",
			Help: "Explanation cache lookups by outcome",
		},
		[]string{"outcome"},
	)

	InteractionsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommender_interactions_ingested_total",
			Help: "Interaction events appended to the log",
		},
		[]string{"event_type"},
	)
)

// RecordRecommend фиксирует результат и длительность запроса рекомендаций.
func RecordRecommend(result string, d time.Duration) {
	RecommendRequestsTotal.WithLabelValues(result).Inc()
	RecommendDuration.Observe(d.Seconds())
}

func RecordCandidates(signal string, n int) {
	CandidatesTotal.WithLabelValues(signal).Add(float64(n))
}

func RecordSignalFailure(signal string) {
	SignalFailuresTotal.WithLabelValues(signal).Inc()
}

// RecordProfileCache фиксирует исход обращения к кэшу профилей: hit, miss, stale, error.
func RecordProfileCache(outcome string) {
	ProfileCacheTotal.WithLabelValues(outcome).Inc()
}

func RecordExplanationFallback() {
	ExplanationFallbacksTotal.Inc()
}

func RecordEmbeddingReload(result string, size int) {
	EmbeddingReloadsTotal.WithLabelValues(result).Inc()
	if result == ResultOK {
		EmbeddingDatasetSize.Set(float64(size))
	}
}

func RecordInteraction(eventType string) {
	InteractionsIngestedTotal.WithLabelValues(eventType).Inc()
}

func RecordLLMRequest(outcome string) {
	LLMRequestsTotal.WithLabelValues(outcome).Inc()
}

func SetLLMBreakerState(state float64) {
	LLMBreakerState.Set(state)
}

func RecordExplanationCache(outcome string) {
	ExplanationCacheTotal.WithLabelValues(outcome).Inc()
}
