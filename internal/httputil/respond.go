// Package httputil provides the JSON response envelope shared by every
// handler.
package httputil

import (
	"encoding/json"
	"io"
	"net/http"

	svcerr "github.com/restamate/pos-server/internal/errors"
)

// Response is the envelope of every JSON response.
type Response struct {
	Status  string                 `json:"status"`
	Data    interface{}            `json:"data,omitempty"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// WriteJSON writes a success envelope.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{Status: "success", Data: data})
}

// WriteError writes an error envelope with the given message.
func WriteError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{Status: "error", Message: message})
}

// WriteServiceError maps err to the taxonomy's HTTP status. Unclassified
// errors become a generic 500 with no internal detail leaked.
func WriteServiceError(w http.ResponseWriter, err error) {
	if serviceErr := svcerr.GetServiceError(err); serviceErr != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(serviceErr.HTTPStatus)
		_ = json.NewEncoder(w).Encode(Response{
			Status:  "error",
			Message: serviceErr.Message,
			Details: serviceErr.Details,
		})
		return
	}
	WriteError(w, http.StatusInternalServerError, "internal server error")
}

// DecodeJSON decodes a request body, rejecting unknown fields.
func DecodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
