package handlers

import (
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/bitmark/internal/command"
	"github.com/MrSnakeDoc/bitmark/internal/httpserver/deps"
)

func Fields(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fields, err := d.Service.ListFields(r.Context(), command.ListFields{})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, fields)
	}
}

// Tags ranks tag suggestions for ?q=, skipping ?chosen=a,b.
func Tags(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		req := command.SuggestTags{Filter: q.Get("q")}
		if chosen := q.Get("chosen"); chosen != "" {
			req.Chosen = strings.Split(chosen, ",")
		}

		tags, err := d.Service.SuggestTags(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tags)
	}
}

// Resync triggers a replay of local and failed captures
func Resync(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.ResyncTrigger == nil {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "resync is disabled"})
			return
		}
		trigger(w, r, d, d.ResyncTrigger, "resync")
	}
}
