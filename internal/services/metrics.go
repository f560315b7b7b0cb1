package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the application
type Metrics struct {
	// Chat metrics
	ChatTurns         prometheus.Counter
	ConversationsOpen prometheus.Gauge

	// Matching metrics
	MatchingRequests *prometheus.CounterVec // mode: "full" or "quick"
	MatchingLatency  prometheus.Histogram
	MatchingErrors   prometheus.Counter
	CacheHits        prometheus.Counter

	// Search metrics
	WebSearches *prometheus.CounterVec // provider label
}

var globalMetrics *Metrics

// InitMetrics initializes the Prometheus metrics
func InitMetrics() *Metrics {
	metrics := &Metrics{
		ChatTurns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "studyyatra_chat_turns_total",
			Help: "Total number of chat turns processed",
		}),
		ConversationsOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "studyyatra_conversations_open",
			Help: "Number of conversations currently in progress",
		}),
		MatchingRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "studyyatra_matching_requests_total",
			Help: "Total number of matching requests by mode",
		}, []string{"mode"}),
		MatchingLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "studyyatra_matching_duration_seconds",
			Help:    "End-to-end matching request duration",
			Buckets: []float64{0.05, 0.25, 1, 2.5, 5, 10, 30},
		}),
		MatchingErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "studyyatra_matching_errors_total",
			Help: "Total number of failed matching requests",
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "studyyatra_matching_cache_hits_total",
			Help: "Total number of match cache hits",
		}),
		WebSearches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "studyyatra_web_searches_total",
			Help: "Total number of outbound web searches by provider",
		}, []string{"provider"}),
	}

	globalMetrics = metrics
	return metrics
}

// GetMetrics returns the global metrics instance (nil before InitMetrics)
func GetMetrics() *Metrics {
	return globalMetrics
}
