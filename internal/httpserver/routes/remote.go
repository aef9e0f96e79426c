package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/bitmark/internal/httpserver/deps"
	"github.com/MrSnakeDoc/bitmark/internal/httpserver/handlers"
)

func init() { Register(registerRemote) }

func registerRemote(r chi.Router, d deps.Deps) {
	b := bounded(r, d)
	b.Get("/fields", handlers.Fields(d))
	b.Get("/tags", handlers.Tags(d))
	b.Post("/resync", handlers.Resync(d))
}
