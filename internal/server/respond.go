package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/archlens/archlens/internal/apperr"
)

// errorResponse is the JSON body for every error status.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps an error to its HTTP status. Coded errors use their
// stable code and message; everything else is an opaque 500.
func writeError(w http.ResponseWriter, err error) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		writeJSON(w, ae.Code.HTTPStatus(), errorResponse{Error: ae.Message, Code: string(ae.Code)})
		return
	}

	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
		return
	}

	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

// writeErrorStatus responds with an explicit status and message, for
// validation failures that carry no stable code.
func writeErrorStatus(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
