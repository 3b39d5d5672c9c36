package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/haukened/wisp/internal/app"
	"github.com/haukened/wisp/internal/domain"
)

// writeError writes a JSON error body with given status code.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg})
	if cid, ok := GetCorrelationID(ctx); ok {
		slog.Debug("wrote error response", "cid", cid, "status", code, "msg", msg)
	}
}

// mapServiceError maps domain/service errors to HTTP responses. Not-found
// and wrong-passphrase stay distinguishable: the consuming-on-attempt rule
// makes the distinction meaningful to clients.
func (h *Handler) mapServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	cid, _ := GetCorrelationID(ctx)
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		slog.Warn("service error", "cid", cid, "code", "invalid_input")
		h.writeError(ctx, w, http.StatusBadRequest, "secret and passphrase must be non-empty")
	case errors.Is(err, app.ErrSizeExceeded):
		slog.Warn("service error", "cid", cid, "code", "size_exceeded")
		h.writeError(ctx, w, http.StatusRequestEntityTooLarge, "size exceeded")
	case errors.Is(err, domain.ErrNotFound):
		slog.Info("service error", "cid", cid, "code", "not_found")
		h.writeError(ctx, w, http.StatusNotFound, "secret not found")
	case errors.Is(err, domain.ErrInvalidPassphrase):
		slog.Info("service error", "cid", cid, "code", "invalid_passphrase")
		h.writeError(ctx, w, http.StatusUnauthorized, "invalid passphrase")
	default:
		// Internal / unexpected: do not log raw error string to avoid leaking IDs.
		slog.Error("unhandled service error", "cid", cid, "code", "internal")
		h.writeError(ctx, w, http.StatusInternalServerError, "internal")
	}
}
