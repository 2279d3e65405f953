package middleware

import (
	"encoding/json"
	"net/http"

	"go-time-archive/internal/model"
)

// writeError renders the API error envelope.
func writeError(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   &model.APIError{Code: code, Message: message},
	})
}
