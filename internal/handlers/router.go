package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"photomap/internal/middleware"
)

// NewRouter builds the operations router.
func NewRouter(h *Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	r.Use(middleware.Logger(middleware.DefaultLoggingConfig()))

	r.Handle("/metrics", promhttp.Handler()).Name("metrics")
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet).Name("health")
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet).Name("healthz")
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead).Name("livez")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet).Name("readyz")
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet).Name("version")

	failed := r.PathPrefix("/failed").Subrouter()
	failed.HandleFunc("", h.ListFailed).Methods(http.MethodGet).Name("failed")
	failed.HandleFunc("/{name}/requeue", h.RequeueFailed).Methods(http.MethodPost).Name("requeue")

	return r
}
