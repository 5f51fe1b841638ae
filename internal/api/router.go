package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xaenox/command-center/internal/api/middleware"
	"github.com/xaenox/command-center/internal/realtime"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(h *Handler, hub *realtime.Hub, uploadsDir, authToken string, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Metrics)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Public routes
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", h.Healthz)
	r.Get("/ws", hub.ServeWS)
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploadsDir))))

	// API routes, gated when a server token is configured
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequireToken(authToken))

		r.Post("/chat", h.Chat)

		r.Get("/threads", h.ListThreads)
		r.Post("/threads", h.CreateThread)
		r.Patch("/threads/{id}", h.UpdateThread)
		r.Delete("/threads/{id}", h.DeleteThread)
		r.Get("/threads/{id}/messages", h.ListMessages)
		r.Delete("/threads/{id}/messages", h.ClearThreadMessages)

		r.Post("/messages", h.InsertMessage)
		r.Post("/uploads", h.Upload)

		r.Get("/commands", h.ListCommands)
		r.Get("/system/health", h.SystemHealth)
	})

	return r
}
