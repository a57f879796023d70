package kp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/crownlabs/academy-idp/pkg/logaction"
	"github.com/crownlabs/academy-idp/pkg/mlog"
)

// RecoverMiddleware catches panics during request handling, logs them through
// the request-scoped logger, and answers with a generic server_error so the
// original fault never reaches the client.
func RecoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer func() {
			if rec := recover(); rec != nil {
				err, ok := rec.(error)
				if !ok {
					err = fmt.Errorf("%v", rec)
				}

				log := mlog.L(r.Context())
				log.Error(logaction.LoggerAction{Action: "exception", Description: "panic recovered"}, map[string]any{
					"method":   r.Method,
					"path":     r.URL.Path,
					"panic":    err.Error(),
					"duration": time.Since(start).Milliseconds(),
					"stack":    string(debug.Stack()),
				})
				log.FlushError(http.StatusInternalServerError, "server_error")

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(map[string]string{"error": "server_error"})
			}
		}()

		next.ServeHTTP(w, r)
	})
}
