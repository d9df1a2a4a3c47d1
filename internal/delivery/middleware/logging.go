package middleware

import (
	"net/http"
	"time"

	"ads-api/pkg/logger"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RequestLogger writes one access log line per request.
func RequestLogger(loggers *logger.Loggers) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}

				attrs := []any{
					"method", r.Method,
					"path", r.URL.Path,
					"status", status,
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start).String(),
					"request_id", chimiddleware.GetReqID(r.Context()),
				}

				if status >= http.StatusInternalServerError {
					loggers.ErrorLogger.Error("request completed", attrs...)
					return
				}
				loggers.InfoLogger.Info("request completed", attrs...)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
