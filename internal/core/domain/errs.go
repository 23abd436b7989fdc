// Package domain defines the error taxonomy shared by the upstream
// client, the order service and the HTTP layer.
package domain

import (
	"errors"
	"fmt"
)

// ErrOrderNotFound is returned when the anchor order lookup yields
// zero rows. It is the only locally synthesized 404 in the system.
var ErrOrderNotFound = errors.New("pedido not found")

// ErrServiceKeyMissing is returned by the composite order-creation
// workflow when no elevated credential is configured. It is a
// deployment problem surfaced lazily, not a caller mistake.
var ErrServiceKeyMissing = errors.New("service key not configured")

// UpstreamError relays a non-2xx response from the data API
// verbatim. Callers decide whether it is fatal or degradable.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.Status, e.Body)
}

// ValidationError reports a request rejected locally, before any
// upstream call was made.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
