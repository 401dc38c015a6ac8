package orchestrator

import (
	"github.com/pkg/errors"

	"resume-formatter/internal/parser"
)

var (
	// ErrNotReady is returned when an action is not valid in the current state.
	ErrNotReady = errors.New("session is not ready for this action")
	// ErrEndpointMissing is returned when no parsing endpoint is configured.
	ErrEndpointMissing = errors.New("parsing endpoint is not configured")
	// ErrInvalidInput is returned for empty selections and non-PDF uploads.
	ErrInvalidInput = errors.New("invalid input")
	// ErrBusy is returned when another run is already in flight.
	ErrBusy = errors.New("another resume is being processed")
)

// Error kinds recorded for failed runs that are not parser failures.
const (
	KindInvalidInput    = "InvalidInput"
	KindEndpointMissing = "EndpointMissing"
	KindTemplate        = "TemplateError"
	KindInternal        = "InternalError"
)

// ErrorKind classifies err for the run ledger and metrics.
func ErrorKind(err error) string {
	var perr *parser.ParseError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &perr):
		return string(perr.Kind)
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrEndpointMissing):
		return KindEndpointMissing
	default:
		return KindInternal
	}
}
