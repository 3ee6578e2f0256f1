package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/henrib/lumen/internal/api"
	"github.com/henrib/lumen/internal/api/handlers"
	"github.com/henrib/lumen/internal/api/middleware"
)

type RouterConfig struct {
	APIKey            string
	ChatHandler       *handlers.ChatHandler
	PortfolioHandler  *handlers.PortfolioHandler
	AutomationHandler *handlers.AutomationHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/ai/chat", cfg.ChatHandler.Chat)
		r.Post("/rag/search", cfg.ChatHandler.Search)

		r.Get("/roadmap/sections", cfg.PortfolioHandler.Sections)
		r.Get("/roadmap/progress", cfg.PortfolioHandler.Progress)
		r.Get("/entries", cfg.PortfolioHandler.ListEntries)

		// Webhook deliveries authenticate via HMAC signature, not the
		// admin key.
		r.Post("/automation/github", cfg.AutomationHandler.GitHub)

		r.Group(func(r chi.Router) {
			r.Use(middleware.APIKeyAuth(cfg.APIKey))

			r.Post("/rag/reindex", cfg.ChatHandler.Reindex)
			r.Post("/entries", cfg.PortfolioHandler.CreateEntry)
			r.Post("/documents", cfg.PortfolioHandler.CreateDocument)
			r.Get("/documents/{id}/download", cfg.PortfolioHandler.DocumentDownload)
			r.Delete("/documents/{id}", cfg.PortfolioHandler.DeleteDocument)
		})
	})

	return r
}
