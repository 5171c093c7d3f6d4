package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// requireAuthCode rejects requests whose X-Auth-Code header does not match code.
// An empty code rejects every request.
func requireAuthCode(code string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return MakeHandler(logger, func(w http.ResponseWriter, r *http.Request) error {
			got := r.Header.Get(headerAuthCode)
			if code == "" || subtle.ConstantTimeCompare([]byte(got), []byte(code)) != 1 {
				return ErrUnauthorized("invalid auth code")
			}
			next.ServeHTTP(w, r)
			return nil
		})
	}
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
