package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/josh-kwaku/hub-transfers/internal/handler"
	"github.com/josh-kwaku/hub-transfers/internal/middleware"
)

type routes struct {
	health    *handler.HealthHandler
	transfers *handler.TransferHandler
	bulk      *handler.BulkHandler
}

func newRouter(h routes) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)

	r.Get("/health", h.health.Liveness)
	r.Get("/ready", h.health.Readiness)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs", handler.ServeDocs())
	r.Get("/docs/openapi.yaml", handler.ServeOpenAPI())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/transfers/p2p", h.transfers.SendP2P)
		r.Get("/transfers", h.transfers.List)

		r.Post("/bulk/upload", h.bulk.Upload)
		r.Get("/bulk/status/{jobID}", h.bulk.Status)
		r.Get("/bulk/export/csv/{jobID}", h.bulk.ExportCSV)
	})

	return r
}
