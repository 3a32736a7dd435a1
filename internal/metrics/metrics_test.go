package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	m := New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/todos/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b", "c"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/todos/"+id, nil))
		require.Equal(t, http.StatusNotFound, rr.Code)
	}

	got := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/api/todos/{id}", "404"))
	assert.Equal(t, 3.0, got)
	assert.Equal(t, 1, testutil.CollectAndCount(m.requests), "one series for all three IDs")
}

func TestMiddleware_DefaultStatus(t *testing.T) {
	m := New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/healthz", "200")))
}

func TestRecordSearch(t *testing.T) {
	m := New()

	m.RecordSearch("strict", 2)
	m.RecordSearch("any", 0)
	m.RecordSearch("any", 7)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.searches.WithLabelValues("strict")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.searches.WithLabelValues("any")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordSearch("any", 1)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.True(t, strings.Contains(body, `tagged_todos_todo_searches_total{mode="any"} 1`), body)
	assert.Contains(t, body, "go_goroutines")
}
