package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/MrSnakeDoc/bitmark/internal/command"
	"github.com/MrSnakeDoc/bitmark/internal/httpserver/deps"
)

// Messages accepts a tagged command envelope {type, payload} and answers
// {success, data, error}. Command failures still answer 200; only an
// undecodable envelope is a 400.
func Messages(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeJSON(w, http.StatusRequestEntityTooLarge, command.Response{Error: err.Error()})
			return
		}

		cmd, err := command.Decode(body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, command.Response{Error: err.Error()})
			return
		}

		ctx := r.Context()
		if cmd.Type() == command.TypeSubmitCapture {
			ctx = context.WithoutCancel(ctx)
		}
		writeJSON(w, http.StatusOK, d.Service.Handle(ctx, cmd))
	}
}
