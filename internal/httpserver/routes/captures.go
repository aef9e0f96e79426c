package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/bitmark/internal/httpserver/deps"
	"github.com/MrSnakeDoc/bitmark/internal/httpserver/handlers"
)

func init() { Register(registerCaptures) }

// Captures outlive the request deadline, so they only get the access guards.
func registerCaptures(r chi.Router, d deps.Deps) {
	guarded(r, d).Post("/captures", handlers.SubmitCapture(d))
	guarded(r, d).Post("/messages", handlers.Messages(d))
	bounded(r, d).Get("/captures/duplicate", handlers.CheckDuplicate(d))
}
