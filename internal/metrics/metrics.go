// Package metrics exposes Prometheus counters for the review service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Auth outcomes recorded by RecordAuth.
const (
	OutcomeSuccess          = "success"
	OutcomeUserNotFound     = "user_not_found"
	OutcomePasswordMismatch = "password_incorrect"
	OutcomeError            = "error"
)

// Collector holds the service's Prometheus instruments.
type Collector struct {
	authAttempts     *prometheus.CounterVec
	sessionRejects   *prometheus.CounterVec
	ratingsSubmitted prometheus.Counter
	ratingDuplicates prometheus.Counter
	statsCache       *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpLatency      prometheus.Histogram
}

// NewCollector creates a Collector and registers it on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ich_auth_attempts_total",
			Help: "Login attempts by flow and outcome.",
		}, []string{"flow", "outcome"}),
		sessionRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ich_session_rejections_total",
			Help: "Requests rejected by the session verifier.",
		}, []string{"reason"}),
		ratingsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ich_ratings_submitted_total",
			Help: "Ratings accepted into the ledger.",
		}),
		ratingDuplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ich_rating_duplicates_total",
			Help: "Rating submissions refused for an existing (product, author) pair.",
		}),
		statsCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ich_stats_cache_total",
			Help: "Product summary cache lookups by result.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ich_http_requests_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ich_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		c.authAttempts,
		c.sessionRejects,
		c.ratingsSubmitted,
		c.ratingDuplicates,
		c.statsCache,
		c.httpRequests,
		c.httpLatency,
	)
	return c
}

// RecordAuth counts a login attempt for flow ("local" or "federated").
func (c *Collector) RecordAuth(flow, outcome string) {
	c.authAttempts.WithLabelValues(flow, outcome).Inc()
}

// RecordSessionRejected counts a request refused by the session verifier.
func (c *Collector) RecordSessionRejected(reason string) {
	c.sessionRejects.WithLabelValues(reason).Inc()
}

// RecordRatingSubmitted counts an accepted rating.
func (c *Collector) RecordRatingSubmitted() {
	c.ratingsSubmitted.Inc()
}

// RecordRatingDuplicate counts a refused duplicate rating.
func (c *Collector) RecordRatingDuplicate() {
	c.ratingDuplicates.Inc()
}

// RecordStatsCache counts a summary cache hit or miss.
func (c *Collector) RecordStatsCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.statsCache.WithLabelValues(result).Inc()
}

// RecordHTTP records one served request.
func (c *Collector) RecordHTTP(statusCode int, d time.Duration) {
	c.httpRequests.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	c.httpLatency.Observe(d.Seconds())
}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
