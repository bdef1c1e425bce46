package http

import (
	"fmt"
	"net/http"
)

// AppError is a client-facing error. Status picks the HTTP status; Err keeps
// the cause for logs and errors.Is but is never serialized.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// Wrap attaches the cause and returns e.
func (e *AppError) Wrap(err error) *AppError {
	e.Err = err
	return e
}

func NewAppError(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

var statusCodes = map[int]string{
	http.StatusBadRequest:          "ERR_BAD_REQUEST",
	http.StatusNotFound:            "ERR_NOT_FOUND",
	http.StatusConflict:            "ERR_CONFLICT",
	http.StatusTooManyRequests:     "ERR_RATE_LIMITED",
	http.StatusGatewayTimeout:      "ERR_TIMEOUT",
	http.StatusInternalServerError: "ERR_INTERNAL",
}

// StatusError builds an AppError whose code is derived from status.
func StatusError(status int, message string) *AppError {
	code, ok := statusCodes[status]
	if !ok {
		code = "ERR_HTTP_" + fmt.Sprint(status)
	}
	return NewAppError(status, code, message)
}

func InternalError(message string) *AppError {
	return StatusError(http.StatusInternalServerError, message)
}
