// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tlxue/everclaw/internal/metrics"
)

func (h *Handler) Init() *chi.Mux {
	router := chi.NewRouter()
	router.Use(h.withTraceID, h.withLogging, middleware.Recoverer, metrics.InstrumentHandler, withCORS, withGZip)
	if h.requestTimeout > 0 {
		router.Use(middleware.Timeout(h.requestTimeout))
	}

	router.NotFound(notFound)
	router.MethodNotAllowed(notFound)

	// routes without authorization
	router.Group(func(r chi.Router) {
		r.Get("/health", h.health)
		r.Get("/version", h.getServerVersion)
		r.Method("GET", "/metrics", metrics.Handler())
		r.With(h.limitProvisioning).Post("/v1/provision", h.provision)
	})

	router.Route("/v1/vault", func(r chi.Router) {
		r.Use(h.withRateLimit, h.auth)
		r.NotFound(notFound)
		r.MethodNotAllowed(notFound)

		r.Get("/", h.list)
		r.Get("/status", h.status)
		r.Delete("/", h.purge)
		r.Post("/", h.batch)

		r.Get("/*", h.getFile)
		r.Put("/*", h.putFile)
		r.Post("/*", h.appendFile)
		r.Delete("/*", h.deleteFile)
	})

	return router
}
