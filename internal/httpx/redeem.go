package httpx

import (
	"encoding/json"
	"net/http"
)

// redeemRequest is the JSON body for POST /secrets/{secret_key}.
type redeemRequest struct {
	Passphrase string `json:"passphrase" validate:"required"`
}

// redeemResponse carries the recovered plaintext. By the time it is written
// the record is already gone from the store.
type redeemResponse struct {
	Secret string `json:"secret"`
}

// handleRedeem implements POST /secrets/{secret_key}.
func (h *Handler) handleRedeem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.Method != http.MethodPost {
		h.writeError(ctx, w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	const prefix = "/secrets/"
	if len(r.URL.Path) <= len(prefix) || r.URL.Path[:len(prefix)] != prefix {
		h.writeError(ctx, w, http.StatusNotFound, "not found")
		return
	}
	key := r.URL.Path[len(prefix):]

	body := r.Body
	if h.MaxBody > 0 {
		body = http.MaxBytesReader(w, r.Body, h.MaxBody)
	}
	defer body.Close()

	var req redeemRequest
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "passphrase must be non-empty")
		return
	}

	secret, err := h.Service.RedeemSecret(ctx, key, req.Passphrase)
	if err != nil {
		h.mapServiceError(ctx, w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(redeemResponse{Secret: secret})
}
