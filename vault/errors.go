package vault

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when no secret exists at the requested path.
	ErrNotFound = errors.New("vault: secret not found")
	// ErrCheckAndSet is returned when a write loses a check-and-set race;
	// callers retry with a fresh read.
	ErrCheckAndSet = errors.New("vault: check-and-set parameter did not match the current version")
	// ErrTransport covers network failures, timeouts and undecodable responses.
	ErrTransport = errors.New("vault: transport failure")
)

// APIError is a non-2xx response from the secret store API.
type APIError struct {
	StatusCode int
	Messages   []string
}

func (e *APIError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("vault: API error (HTTP %d)", e.StatusCode)
	}
	return fmt.Sprintf("vault: API error (HTTP %d): %s", e.StatusCode, e.Messages[0])
}

// Is maps status codes onto the package sentinels so callers can branch
// with errors.Is without inspecting HTTP details.
func (e *APIError) Is(target error) bool {
	switch e.StatusCode {
	case 404:
		return target == ErrNotFound
	case 400:
		return target == ErrCheckAndSet && e.mentionsCheckAndSet()
	}
	return false
}

func (e *APIError) mentionsCheckAndSet() bool {
	for _, m := range e.Messages {
		if strings.Contains(strings.ToLower(m), "check-and-set") {
			return true
		}
	}
	return false
}
