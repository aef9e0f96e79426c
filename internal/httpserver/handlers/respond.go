package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/MrSnakeDoc/bitmark/internal/command"
	"github.com/MrSnakeDoc/bitmark/internal/domain"
	"github.com/MrSnakeDoc/bitmark/internal/feishu"
	"github.com/MrSnakeDoc/bitmark/internal/store"
	"github.com/MrSnakeDoc/bitmark/internal/syncer"
)

const maxBodyBytes = 2 << 20 // imports carry up to 500 history entries

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	var (
		apiErr   *feishu.APIError
		netErr   *feishu.NetworkError
		protoErr *feishu.ProtocolError
	)
	switch {
	case errors.Is(err, domain.ErrInvalidCapture),
		errors.Is(err, syncer.ErrInvalidMode),
		errors.Is(err, store.ErrInvalidImport),
		errors.Is(err, command.ErrUnknownType),
		errors.Is(err, command.ErrBadPayload):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrHistoryNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConfigIncomplete):
		return http.StatusConflict
	case errors.Is(err, feishu.ErrAuth),
		errors.As(err, &apiErr),
		errors.As(err, &netErr),
		errors.As(err, &protoErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a bounded JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %v", command.ErrBadPayload, err)
	}
	return nil
}
