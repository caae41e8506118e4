// Package security provides request filtering for the badge server.
package security

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// Config holds security middleware settings.
type Config struct {
	FilterEnabled bool
	MaxBodySizeKB int
}

var healthCheckPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/readyz":  true,
}

// Scanner probes that never address a badge endpoint.
var blockedPathPrefixes = []string{
	"/.php",
	"/wp-",
	"/.git/",
	"/.env",
	"/.aws",
	"/cgi-bin/",
	"/phpmyadmin",
	"/phpinfo",
	"/shell",
	"/config.",
	"/.ht",
	"/server-status",
	"/xmlrpc.php",
	"/actuator",
}

var blockedPatterns = []string{
	"../",
	"..\\",
	"%00",
	"\x00",
}

// FilterMiddleware rejects scanner probes and traversal attempts with 400.
// Both the path and the query are checked, raw and decoded.
func FilterMiddleware(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if healthCheckPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			if blocked(r.URL) {
				writeBlockedResponse(w, http.StatusBadRequest, "Invalid request")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func blocked(u *url.URL) bool {
	path := strings.ToLower(u.Path)
	for _, prefix := range blockedPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}

	candidates := []string{path, strings.ToLower(u.EscapedPath()), strings.ToLower(u.RawQuery)}
	if q, err := url.QueryUnescape(u.RawQuery); err == nil {
		candidates = append(candidates, strings.ToLower(q))
	}
	// double encoding: %252e%252e%252f
	if p, err := url.PathUnescape(path); err == nil {
		candidates = append(candidates, p)
	}

	for _, c := range candidates {
		for _, pattern := range blockedPatterns {
			if strings.Contains(c, pattern) {
				return true
			}
		}
	}
	return false
}

func writeBlockedResponse(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    http.StatusText(status),
			"message": message,
		},
	})
}
