package httpx

import (
	"encoding/json"
	"net/http"
	"time"
)

// generateRequest is the JSON body for POST /generate.
type generateRequest struct {
	Secret     string `json:"secret" validate:"required"`
	Passphrase string `json:"passphrase" validate:"required"`
}

// generateResponse carries the retrieval key back to the caller.
type generateResponse struct {
	SecretKey string    `json:"secret_key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleGenerate implements POST /generate.
func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.Method != http.MethodPost {
		h.writeError(ctx, w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if r.URL.Path != "/generate" { // disallow trailing slash variants
		h.writeError(ctx, w, http.StatusNotFound, "not found")
		return
	}
	body := r.Body
	if h.MaxBody > 0 {
		body = http.MaxBytesReader(w, r.Body, h.MaxBody)
	}
	defer body.Close()

	var req generateRequest
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "secret and passphrase must be non-empty")
		return
	}

	id, expiresAt, err := h.Service.CreateSecret(ctx, req.Secret, req.Passphrase)
	if err != nil {
		h.mapServiceError(ctx, w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(generateResponse{SecretKey: id.String(), ExpiresAt: expiresAt})
}
