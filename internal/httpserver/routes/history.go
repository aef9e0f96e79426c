package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/bitmark/internal/httpserver/deps"
	"github.com/MrSnakeDoc/bitmark/internal/httpserver/handlers"
)

func init() { Register(registerHistory) }

func registerHistory(r chi.Router, d deps.Deps) {
	b := bounded(r, d)
	b.Get("/history", handlers.ListHistory(d))
	b.Delete("/history", handlers.ClearHistory(d))
	b.Delete("/history/{id}", handlers.DeleteHistory(d))
}
