package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsLabelsUseRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/api/threads/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, path := range []string{"/api/threads/abc/messages", "/api/threads/def/messages"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	pattern := testutil.ToFloat64(requestsTotal.WithLabelValues(http.MethodGet, "/api/threads/{id}/messages", "200"))
	assert.Equal(t, float64(2), pattern, "both requests collapse onto one series")

	raw := testutil.ToFloat64(requestsTotal.WithLabelValues(http.MethodGet, "/api/threads/abc/messages", "200"))
	assert.Zero(t, raw, "raw ids must not appear as label values")
}
