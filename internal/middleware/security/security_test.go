package security

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestFilterMiddleware_Disabled(t *testing.T) {
	handler := FilterMiddleware(false)(okHandler)

	for _, path := range []string{"/wp-admin/", "/.git/config", "/../etc/passwd"} {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rr.Code, "Path %s should pass when filter disabled", path)
	}
}

func TestFilterMiddleware_BlocksProbes(t *testing.T) {
	handler := FilterMiddleware(true)(okHandler)

	blockedPaths := []string{
		"/wp-admin/",
		"/wp-login.php",
		"/xmlrpc.php",
		"/.git/config",
		"/.env",
		"/.aws/credentials",
		"/.htaccess",
		"/phpmyadmin/",
		"/cgi-bin/test.cgi",
		"/actuator/health",
		"/WP-ADMIN/",
		"/.ENV",
	}

	for _, path := range blockedPaths {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code, "Path %s should be blocked", path)
	}
}

func TestFilterMiddleware_BlocksTraversal(t *testing.T) {
	handler := FilterMiddleware(true)(okHandler)

	blocked := []string{
		"/../../etc/passwd",
		"/badge/..%2f..%2fetc",
		"/foo%252e%252e%252fbar",
		"/badge?handle=..%2F..%2Fadmin",
		"/badge?repo=ethbinder%00",
	}

	for _, target := range blocked {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code, "%s should be blocked", target)
	}
}

func TestFilterMiddleware_AllowsBadgeRequests(t *testing.T) {
	handler := FilterMiddleware(true)(okHandler)

	allowed := []string{
		"/",
		"/badge",
		"/?handle=bob&repo=ethbinder&debug=true",
		"/badge?handle=Bob-42&repo=my.repo_name",
		"/api/v1/verify?handle=alice",
		"/metrics",
		"/health",
		"/healthz",
		"/readyz",
	}

	for _, target := range allowed {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusOK, rr.Code, "%s should be allowed", target)
	}
}

func TestFilterMiddleware_ResponseFormat(t *testing.T) {
	rr := httptest.NewRecorder()
	FilterMiddleware(true)(okHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/.env", nil))

	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var resp map[string]map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "Bad Request", resp["error"]["code"])
	assert.Equal(t, "Invalid request", resp["error"]["message"])
}

func TestLimitMiddleware(t *testing.T) {
	handler := LimitMiddleware(1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("small request", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/?handle=bob", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("long query", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/?handle="+strings.Repeat("a", 2048), nil))
		assert.Equal(t, http.StatusRequestURITooLong, rr.Code)
	})

	t.Run("declared body too large", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 4096))))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	})

	t.Run("streamed body too large", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", io.NopCloser(strings.NewReader(strings.Repeat("x", 4096))))
		req.ContentLength = -1
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	})
}

func TestLimitMiddleware_Disabled(t *testing.T) {
	rr := httptest.NewRecorder()
	LimitMiddleware(0)(okHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/?q="+strings.Repeat("a", 4096), nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
