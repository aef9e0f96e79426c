package handlers

import (
	"fmt"
	"net/http"

	"github.com/MrSnakeDoc/bitmark/internal/command"
	"github.com/MrSnakeDoc/bitmark/internal/httpserver/deps"
	"github.com/MrSnakeDoc/bitmark/internal/store"
)

// Export downloads every bucket as one JSON document, secrets redacted.
func Export(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := d.Service.ExportData(r.Context(), command.ExportData{})
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Disposition",
			fmt.Sprintf(`attachment; filename="bitmark-backup-%s.json"`, d.TimeNow().Format("2006-01-02")))
		writeJSON(w, http.StatusOK, doc)
	}
}

func Import(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var doc store.ExportDocument
		if err := decodeJSON(w, r, &doc); err != nil {
			writeError(w, err)
			return
		}
		if err := d.Service.ImportData(r.Context(), command.ImportData{Document: doc}); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func Stats(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := d.Service.GetStats(r.Context(), command.GetStats{})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func Storage(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		usage, err := d.Service.GetStorageUsage(r.Context(), command.GetStorageUsage{})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, usage)
	}
}
