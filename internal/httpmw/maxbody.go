// internal/httpmw/maxbody.go

package httpmw

import "net/http"

// DefaultMaxBody caps request bodies on the public listener.
const DefaultMaxBody int64 = 16 << 10

// MaxBody limits request body size. Reads past the limit fail with
// *http.MaxBytesError; handlers decide how to report it.
func MaxBody(bytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, bytes)
			next.ServeHTTP(w, r)
		})
	}
}
