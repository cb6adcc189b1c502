// Package httperror simplifies returning an error as JSON from an HTTP handler
package httperror

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
)

type jsonError struct {
	Error string `json:"error"`
}

// Error is a failure that already knows its HTTP status and the message
// that is safe to show to the client. Err carries the detail for the logs.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// BadRequest is a validation failure.
func BadRequest(message string) *Error {
	return &Error{Status: http.StatusBadRequest, Message: message}
}

// TooLarge rejects a request body over the size limit.
func TooLarge(message string) *Error {
	return &Error{Status: http.StatusRequestEntityTooLarge, Message: message}
}

// Internal hides err behind a generic message.
func Internal(message string, err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: message, Err: err}
}

// Send writes {"error": message} with the given status.
func Send(w http.ResponseWriter, req *http.Request, status int, message string) {
	WriteJSON(w, status, jsonError{Error: message})
}

// SendError writes err as a JSON error body. Errors that are not an *Error
// become a 500 with a generic message.
func SendError(w http.ResponseWriter, req *http.Request, err error) {
	var httpErr *Error
	if !errors.As(err, &httpErr) {
		httpErr = Internal("Internal server error", err)
	}

	if httpErr.Status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("method", req.Method).Str("path", req.URL.Path).Msg(httpErr.Message)
	} else {
		log.Debug().Err(err).Str("method", req.Method).Str("path", req.URL.Path).Msg(httpErr.Message)
	}
	Send(w, req, httpErr.Status, httpErr.Message)
}

// WriteJSON writes v as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Could not encode JSON response")
	}
}
