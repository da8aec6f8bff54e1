// Package httputil holds small helpers for JSON HTTP responses.
package httputil

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body WriteError sends.
type ErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError sends an error code and, except for 5xx statuses, a
// human-readable description.
func WriteError(w http.ResponseWriter, status int, code, description string) {
	body := ErrorResponse{Error: code}
	if status < http.StatusInternalServerError {
		body.Description = description
	}
	WriteJSON(w, status, body)
}
