package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/ethbinder/internal/middleware/realip"
)

// testHandler returns a handler that writes a response with the given status and body
func testHandler(status int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	})
}

func serve(t *testing.T, handler http.Handler, req *http.Request, logBuf *bytes.Buffer) map[string]any {
	t.Helper()
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(logBuf.Bytes(), &entry))
	return entry
}

func TestMiddleware_LogsRequests(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))

	req := httptest.NewRequest(http.MethodGet, "/badge?handle=bob", nil)
	req.RemoteAddr = "192.168.1.100:12345"
	req.Header.Set("Referer", "https://github.com/bob")

	entry := serve(t, Middleware(logger)(testHandler(http.StatusOK, "hello")), req, &logBuf)

	assert.Equal(t, "request", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/badge", entry["path"])
	assert.Equal(t, "bob", entry["handle"])
	assert.Equal(t, float64(http.StatusOK), entry["status"])
	assert.Equal(t, float64(5), entry["bytes"])
	assert.Equal(t, "192.168.1.100", entry["client_ip"])
	assert.Equal(t, "https://github.com/bob", entry["referer"])
	assert.Contains(t, entry, "duration")
}

func TestMiddleware_WarnsOnServerError(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))

	req := httptest.NewRequest(http.MethodGet, "/badge", nil)
	entry := serve(t, Middleware(logger)(testHandler(http.StatusInternalServerError, "{}")), req, &logBuf)

	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, float64(http.StatusInternalServerError), entry["status"])
}

func TestMiddleware_HealthChecksAtDebug(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	Middleware(logger)(testHandler(http.StatusOK, "ok")).ServeHTTP(httptest.NewRecorder(), req)

	assert.Empty(t, logBuf.String())
}

func TestMiddleware_DefaultStatus200(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))

	handler := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	entry := serve(t, handler, httptest.NewRequest(http.MethodGet, "/", nil), &logBuf)

	assert.Equal(t, float64(http.StatusOK), entry["status"])
	assert.Equal(t, float64(0), entry["bytes"])
}

func TestMiddleware_IncludesRequestID(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))

	handler := middleware.RequestID(Middleware(logger)(testHandler(http.StatusOK, "")))
	entry := serve(t, handler, httptest.NewRequest(http.MethodGet, "/", nil), &logBuf)

	assert.NotEmpty(t, entry["request_id"])
}

func TestMiddleware_UsesRealIPFromContext(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))

	handler := realip.Middleware(realip.Config{
		TrustProxy:     true,
		TrustedProxies: []string{"10.0.0.0/8"},
	})(Middleware(logger)(testHandler(http.StatusOK, "")))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:12345"
	req.Header.Set("X-Forwarded-For", "203.0.113.50")

	entry := serve(t, handler, req, &logBuf)
	assert.Equal(t, "203.0.113.50", entry["client_ip"])
}
