package adapter

import (
	"errors"
	"fmt"
)

var (
	ErrBadRequest          = errors.New("bad request")
	ErrUnauthorized        = errors.New("client unauthorized")
	ErrNotFound            = errors.New("not found")
	ErrQuotaExceeded       = errors.New("payload too large")
	ErrRateLimited         = errors.New("rate limited")
	ErrInternalServerError = errors.New("internal server error")
	ErrUnexpectedStatus    = errors.New("unexpected status")

	ErrEmptyAPIKey = errors.New("api key is required for vault operations")
)

// APIError is a non-2xx answer decoded from the server's JSON error envelope.
type APIError struct {
	Status  int
	Message string
	Code    string
	Action  string

	kind error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("http %d: %s", e.Status, e.Message)
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	return msg
}

// Unwrap returns the sentinel matching the response status.
func (e *APIError) Unwrap() error {
	return e.kind
}
