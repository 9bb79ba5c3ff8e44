package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyMessage is returned for a blank message. Nothing is sent.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrSendInFlight is returned while another message is being sent.
	// Sends are rejected, not queued.
	ErrSendInFlight = errors.New("a message is already being sent")
)

// HTTPError is a non-2xx gateway response. Message is the response's
// "error" field, or "Error HTTP: <status>" when the body has none.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return e.Message
}

func newHTTPError(status int, message string) *HTTPError {
	if message == "" {
		message = fmt.Sprintf("Error HTTP: %d", status)
	}
	return &HTTPError{Status: status, Message: message}
}
