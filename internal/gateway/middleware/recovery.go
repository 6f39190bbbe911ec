package middleware

import (
	"net/http"
	"runtime/debug"

	"finch/internal/gateway/handlers"
	"finch/pkg/logger"
)

// Recovery turns a handler panic into a 500 response.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				logger.Ctx(r.Context()).Error().
					Interface("error", err).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")

				handlers.SendError(w, http.StatusInternalServerError, handlers.ErrCodeInternalError, "internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}
