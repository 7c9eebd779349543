package shield

import (
	"net/http"

	"github.com/hazyhaar/docrelay/horosafe"
)

// MaxBody returns middleware that fails body reads past maxBytes with
// horosafe.ErrTooLarge. Handlers decide how to report it. A non-positive
// limit disables the check.
func MaxBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxBytes > 0 && r.Body != nil && r.Body != http.NoBody {
				r.Body = horosafe.LimitedReadCloser(r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
