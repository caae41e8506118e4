package security

import "net/http"

// LimitMiddleware bounds the request size. Badge requests carry their
// input in the query string, so an oversized query is refused with 414 and
// a declared body above the limit with 413. Bodies are also capped while
// being read.
func LimitMiddleware(maxKB int) func(http.Handler) http.Handler {
	maxBytes := int64(maxKB) * 1024

	return func(next http.Handler) http.Handler {
		if maxBytes <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if int64(len(r.URL.RawQuery)) > maxBytes {
				writeBlockedResponse(w, http.StatusRequestURITooLong, "Query too long")
				return
			}
			if r.ContentLength > maxBytes {
				writeBlockedResponse(w, http.StatusRequestEntityTooLarge, "Request body too large")
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
