package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidIdentity means the organisation number did not normalize to
	// 10, 11 or 12 digits. Returned before any network I/O.
	ErrInvalidIdentity = errors.New("invalid organisation identity")

	// ErrNotFound means the registry has no organisation or document for
	// the given identity.
	ErrNotFound = errors.New("not found in registry")

	// ErrUpstreamAuth means the token exchange with the registry failed.
	ErrUpstreamAuth = errors.New("registry authentication failed")
)

// UpstreamError is a non-2xx response from the registry carrying enough
// context to troubleshoot against upstream logs.
type UpstreamError struct {
	Status    int
	Message   string
	RequestID string
}

func (e *UpstreamError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("registry responded %d: %s (request %s)", e.Status, e.Message, e.RequestID)
	}
	return fmt.Sprintf("registry responded %d: %s", e.Status, e.Message)
}
