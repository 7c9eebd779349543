package shield

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
)

// Recover turns a handler panic into a 500 JSON error. The response is only
// written if the handler had not started one. http.ErrAbortHandler is
// re-raised so net/http can drop the connection.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}
			GetLogger(r.Context()).Error("panic in handler",
				"panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()),
			)
			if ww.Status() != 0 {
				return
			}
			ww.Header().Set("Content-Type", "application/json")
			ww.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(ww).Encode(map[string]string{
				"error":  "Internal error",
				"detail": fmt.Sprint(rec),
			})
		}()
		next.ServeHTTP(ww, r)
	})
}
