package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"review_fetcher/internal/metrics"
)

const (
	apiBasePath  = "/api"
	appsBasePath = "/apps"
	paramID      = "id"
)

type RouterConfig struct {
	AuthCode       string
	RequestTimeout time.Duration
}

func NewRouter(h *Handler, cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	auth := requireAuthCode(cfg.AuthCode, logger)
	handle := func(fn AppHandler) http.HandlerFunc { return MakeHandler(logger, fn) }

	r.Get("/health", handle(h.HandleHealth))
	r.Handle("/metrics", metrics.Handler())

	r.Route(apiBasePath, func(r chi.Router) {
		r.Route(appsBasePath, func(r chi.Router) {
			r.Get("/", handle(h.HandleListApps))
			r.With(auth).Post("/", handle(h.HandleCreateApp))

			r.Route("/{"+paramID+"}", func(r chi.Router) {
				r.Get("/", handle(h.HandleGetApp))
				r.Get("/reviews", handle(h.HandleListReviews))
				r.Get("/export", handle(h.HandleExportReviews))
				r.Get("/sync-state", handle(h.HandleSyncState))

				r.Group(func(r chi.Router) {
					r.Use(auth)
					r.Put("/", handle(h.HandleUpdateApp))
					r.Delete("/", handle(h.HandleDeleteApp))
					r.Post("/refresh", handle(h.HandleRefreshApp))
				})
			})
		})

		r.With(auth).Post("/sync", handle(h.HandleStartSync))
	})

	return r
}
