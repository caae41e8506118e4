package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestHandler_Disabled(t *testing.T) {
	Init(false)
	defer Init(false)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// recorders are no-ops when disabled
	Verification("verified", time.Second)
	GitHubRequest("users", "200", time.Millisecond)
}

func TestRecorders(t *testing.T) {
	Init(true)
	defer Init(false)

	Verification("verified", 150*time.Millisecond)
	Verification("no_payload_found", 80*time.Millisecond)
	GitHubRequest("repos", "200", 20*time.Millisecond)
	GitHubRequest("issues", "error", time.Second)

	body := scrape(t)
	assert.Contains(t, body, `ethbinder_verification_total{outcome="verified"} 1`)
	assert.Contains(t, body, `ethbinder_verification_total{outcome="no_payload_found"} 1`)
	assert.Contains(t, body, `ethbinder_github_requests_total{endpoint="repos",status="200"} 1`)
	assert.Contains(t, body, `ethbinder_github_requests_total{endpoint="issues",status="error"} 1`)
	assert.Contains(t, body, "ethbinder_verification_duration_seconds_count 2")
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	Init(true)
	defer Init(false)

	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/badge", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for i := 0; i < 2; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/badge?handle=alice", nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/random/path", nil))

	body := scrape(t)
	assert.Contains(t, body, `http_requests_total{method="GET",path="/badge",status="404"} 2`)
	assert.Contains(t, body, `http_requests_total{method="GET",path="unmatched",status="404"} 1`)
}
