package completion

import (
	"errors"
	"fmt"
)

// Chat roles accepted by the completion endpoint.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is one role-tagged entry of a completion request. Messages are sent
// verbatim and in order.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ErrMissingCredential is returned when no API key was configured.
var ErrMissingCredential = errors.New("completion API key is not configured")

// RequestError reports a failed completion call: a transport failure, a
// non-success status or an unusable response body. Status is the raw status
// text and is the only diagnostic surfaced.
type RequestError struct {
	StatusCode int
	Status     string
	Err        error
}

func (e *RequestError) Error() string {
	switch {
	case e.Status != "" && e.Err != nil:
		return fmt.Sprintf("completion request failed: %s: %v", e.Status, e.Err)
	case e.Status != "":
		return fmt.Sprintf("completion request failed: %s", e.Status)
	case e.Err != nil:
		return fmt.Sprintf("completion request failed: %v", e.Err)
	default:
		return "completion request failed"
	}
}

func (e *RequestError) Unwrap() error { return e.Err }
