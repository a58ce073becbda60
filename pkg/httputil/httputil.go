// Package httputil centralizes JSON encoding and error translation for HTTP
// handlers so every endpoint produces the same envelopes.
package httputil

import (
	"encoding/json"
	"net/http"

	"afmcheck/pkg/apierrors"
)

// errorBody is the JSON envelope for all error responses.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates err to an HTTP error response. Internal errors never
// expose their underlying message to the caller.
func WriteError(w http.ResponseWriter, err error) {
	apiErr := apierrors.AsError(err)

	msg := apiErr.Message
	if apiErr.Code == apierrors.CodeInternal {
		msg = "internal error"
	}

	WriteJSON(w, apiErr.HTTPStatus(), errorBody{
		Error: msg,
		Code:  string(apiErr.Code),
	})
}
