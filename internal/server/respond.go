package server

import (
	"encoding/json"
	"net/http"

	"github.com/medsim/diagnosis-gateway/internal/core/domain"
)

// WriteJSON writes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes {"detail": message} and records the cause on the
// request log line.
func WriteError(w http.ResponseWriter, r *http.Request, apiErr *domain.APIError) {
	AddError(r.Context(), apiErr)
	if apiErr.HTTPStatusCode() == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	WriteJSON(w, apiErr.HTTPStatusCode(), map[string]string{"detail": apiErr.Message})
}
