package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/plumbline/blueprint-engine/pkg/correlation"
)

// errorBody is the JSON shape of every error response. CorrelationID ties
// the response to the request's log lines when the middleware assigned one.
type errorBody struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, errorCode, message string) error {
	id, _ := correlation.FromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(errorBody{
		Error:         errorCode,
		Message:       message,
		CorrelationID: id,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}
