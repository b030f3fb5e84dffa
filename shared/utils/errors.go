package utils

import (
	"errors"
	"net/http"
)

// RequestError is a client-side failure with a fixed status and message.
// Handlers return it from inside transactions and let AbortWithError render it.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

// BadRequest returns a 400 RequestError
func BadRequest(message string) error {
	return &RequestError{Status: http.StatusBadRequest, Message: message}
}

// NotFound returns a 404 RequestError
func NotFound(message string) error {
	return &RequestError{Status: http.StatusNotFound, Message: message}
}

// Conflict returns a 409 RequestError
func Conflict(message string) error {
	return &RequestError{Status: http.StatusConflict, Message: message}
}

// IsRequestError unwraps err into a RequestError
func IsRequestError(err error) (*RequestError, bool) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr, true
	}
	return nil, false
}
