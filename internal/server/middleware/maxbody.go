package middleware

import (
	"net/http"
)

// MaxBodySize is the default maximum request body size.
const MaxBodySize = 1 << 20

// MaxBody limits request bodies of POST, PUT and PATCH. Requests that
// declare a larger Content-Length are rejected before the handler runs;
// others fail when the handler reads past the limit.
func MaxBody(maxSize int64) Middleware {
	if maxSize <= 0 {
		maxSize = MaxBodySize
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch:
				if r.ContentLength > maxSize {
					writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
					return
				}
				r.Body = http.MaxBytesReader(w, r.Body, maxSize)
			}
			next.ServeHTTP(w, r)
		})
	}
}
