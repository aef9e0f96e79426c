package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/bitmark/internal/httpserver/deps"
	"github.com/MrSnakeDoc/bitmark/internal/httpserver/handlers"
)

func init() { Register(registerSettings) }

func registerSettings(r chi.Router, d deps.Deps) {
	b := bounded(r, d)
	b.Get("/settings", handlers.GetSettings(d))
	b.Put("/settings", handlers.SaveSettings(d))
	b.Get("/settings/status", handlers.SettingsStatus(d))
	b.Post("/settings/reload", handlers.ReloadSettings(d))
	b.Post("/connection/test", handlers.TestConnection(d))
}
