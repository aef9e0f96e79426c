package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/bitmark/internal/command"
	"github.com/MrSnakeDoc/bitmark/internal/domain"
	"github.com/MrSnakeDoc/bitmark/internal/httpserver/deps"
	"github.com/MrSnakeDoc/bitmark/internal/logger"
)

func GetSettings(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := d.Service.GetSettings(r.Context(), command.GetSettings{})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

// SaveSettings stores the settings and returns their validation. Incomplete
// settings are saved too.
func SaveSettings(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var s domain.Settings
		if err := decodeJSON(w, r, &s); err != nil {
			writeError(w, err)
			return
		}
		v, err := d.Service.SaveSettings(r.Context(), command.SaveSettings{Settings: s})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func SettingsStatus(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := d.Service.CheckConfiguration(r.Context(), command.CheckConfiguration{})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

// TestConnection tests the posted settings, or the stored ones on an empty body.
func TestConnection(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req command.TestAPIConnection
		var s domain.Settings
		if r.ContentLength != 0 {
			if err := decodeJSON(w, r, &s); err != nil {
				writeError(w, err)
				return
			}
			req.Settings = &s
		}

		res, err := d.Service.TestAPIConnection(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// ReloadSettings triggers a reload of the settings file
func ReloadSettings(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.SettingsReloadTrigger == nil {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "no settings file configured"})
			return
		}
		trigger(w, r, d, d.SettingsReloadTrigger, "settings reload")
	}
}

// trigger does a non-blocking send on ch, like a manual reload.
func trigger(w http.ResponseWriter, r *http.Request, d deps.Deps, ch chan struct{}, what string) {
	select {
	case ch <- struct{}{}:
		d.Logger.Info("manual "+what+" triggered via endpoint",
			logger.String("remote_ip", r.RemoteAddr))
		writeJSON(w, http.StatusAccepted, map[string]string{"status": what + " triggered"})
	default:
		d.Logger.Warn(what+" already in progress",
			logger.String("remote_ip", r.RemoteAddr))
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: what + " already in progress, please wait"})
	}
}
