package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/bitmark/internal/command"
	"github.com/MrSnakeDoc/bitmark/internal/domain"
	"github.com/MrSnakeDoc/bitmark/internal/httpserver/deps"
)

type componentStatus struct {
	OK      bool              `json:"ok"`
	Mode    string            `json:"mode,omitempty"`
	Impact  string            `json:"impact,omitempty"`
	Pending *int              `json:"pending,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
	Error   string            `json:"error,omitempty"`
}

type infraResponse struct {
	SyncMode   string                     `json:"sync_mode"`
	Components map[string]componentStatus `json:"components"`
}

// Infra reports the store and Feishu configuration state.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		components := map[string]componentStatus{
			"store":  checkStore(ctx, d),
			"feishu": checkFeishu(ctx, d),
		}

		writeJSON(w, http.StatusOK, infraResponse{
			SyncMode:   determineSyncMode(components),
			Components: components,
		})
	}
}

func determineSyncMode(components map[string]componentStatus) string {
	// Nothing can be saved without the store
	if st, ok := components["store"]; ok && !st.OK {
		return "critical"
	}

	// Captures are kept locally until Feishu is configured
	if fs, ok := components["feishu"]; ok && !fs.OK {
		return "local-only"
	}

	return "synced"
}

func checkStore(ctx context.Context, d deps.Deps) componentStatus {
	if err := d.Service.Ready(ctx); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   d.StoreBackend,
			Impact: "captures-not-persisted",
			Error:  "unreachable",
		}
	}

	pending := 0
	if list, err := d.Service.ListHistory(ctx, command.ListHistory{}); err == nil {
		for _, e := range list {
			if e.SyncStatus.NeedsSync() {
				pending++
			}
		}
	}

	return componentStatus{
		OK:      true,
		Mode:    d.StoreBackend,
		Pending: &pending,
	}
}

func checkFeishu(ctx context.Context, d deps.Deps) componentStatus {
	status, err := d.Service.CheckConfiguration(ctx, command.CheckConfiguration{})
	if err != nil {
		return componentStatus{OK: false, Error: err.Error()}
	}
	if !status.Configured {
		return componentStatus{
			OK:     false,
			Mode:   string(domain.StatusLocal),
			Impact: "sync-disabled",
			Errors: status.Errors,
		}
	}
	return componentStatus{OK: true, Mode: "remote"}
}
