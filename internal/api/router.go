package api

import (
	"log/slog"
	"net/http"

	"sparkboard/internal/middleware"

	"github.com/gorilla/mux"
)

// RouterConfig carries the pieces SetupRoutes mounts next to the API.
type RouterConfig struct {
	WebSocket     http.Handler
	Metrics       http.Handler // nil disables /metrics
	AllowedOrigin string
	Logger        *slog.Logger
}

func SetupRoutes(h *Handler, cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()

	// Learning: Middleware runs in order - tracing first, then recovery, then CORS
	r.Use(middleware.TracingMiddleware(cfg.Logger))
	r.Use(middleware.ErrorRecoveryMiddleware(cfg.Logger))
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigin))

	api := r.PathPrefix("/api").Subrouter()

	// Session endpoints
	api.HandleFunc("/sessions", h.CreateSession).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/sessions/{id}", h.GetSession).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/sessions/{id}/elements", h.ReplaceElements).Methods(http.MethodPut, http.MethodOptions)
	api.HandleFunc("/sessions/{id}/export.pdf", h.ExportPDF).Methods(http.MethodGet)

	api.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	// WebSocket protocol endpoint
	r.Handle("/ws", cfg.WebSocket)

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics).Methods(http.MethodGet)
	}

	return r
}
