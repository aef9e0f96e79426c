package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/bitmark/internal/httpserver/deps"
	"github.com/MrSnakeDoc/bitmark/internal/httpserver/handlers"
)

func init() { Register(registerData) }

func registerData(r chi.Router, d deps.Deps) {
	b := bounded(r, d)
	b.Get("/export", handlers.Export(d))
	b.Post("/import", handlers.Import(d))
	b.Get("/stats", handlers.Stats(d))
	b.Get("/storage", handlers.Storage(d))
}
