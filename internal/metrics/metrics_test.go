package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCountsAuthOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAuth("local", OutcomeSuccess)
	c.RecordAuth("local", OutcomePasswordMismatch)
	c.RecordAuth("local", OutcomePasswordMismatch)

	if got := testutil.ToFloat64(c.authAttempts.WithLabelValues("local", OutcomePasswordMismatch)); got != 2 {
		t.Fatalf("password mismatch count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.authAttempts.WithLabelValues("federated", OutcomeSuccess)); got != 0 {
		t.Fatalf("federated success count = %v, want 0", got)
	}
}

func TestCollectorCountsRatings(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRatingSubmitted()
	c.RecordRatingDuplicate()
	c.RecordStatsCache(true)
	c.RecordStatsCache(false)
	c.RecordStatsCache(false)

	if got := testutil.ToFloat64(c.ratingsSubmitted); got != 1 {
		t.Fatalf("ratings submitted = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.ratingDuplicates); got != 1 {
		t.Fatalf("rating duplicates = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.statsCache.WithLabelValues("miss")); got != 2 {
		t.Fatalf("cache misses = %v, want 2", got)
	}
}

func TestInstrumentAndHandlerServeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	h := c.Instrument(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/register", nil))

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Result().Body)
	if !strings.Contains(string(body), `ich_http_requests_total{status_code="201"} 1`) {
		t.Fatalf("expected 201 counter in scrape output:\n%s", body)
	}
}
