package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/bitmark/internal/command"
	"github.com/MrSnakeDoc/bitmark/internal/httpserver/deps"
	"github.com/MrSnakeDoc/bitmark/internal/logger"
)

// SubmitCapture saves a capture. The work is detached from the request
// context so a popup closing mid-request never cancels the remote write;
// the coordinator bounds it with its own deadline.
func SubmitCapture(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req command.SubmitCapture
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}

		ctx := context.WithoutCancel(r.Context())
		res, err := d.Service.SubmitCapture(ctx, req)
		if err != nil {
			writeError(w, err)
			return
		}

		d.Logger.Debug("capture handled",
			logger.String("status", string(res.Status)),
			logger.Int("attempts", res.Attempts))
		writeJSON(w, http.StatusOK, res)
	}
}

// CheckDuplicate looks a URL up in the remote table.
func CheckDuplicate(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url := strings.TrimSpace(r.URL.Query().Get("url"))
		dup, err := d.Service.CheckDuplicate(r.Context(), command.CheckDuplicate{URL: url})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, dup)
	}
}
