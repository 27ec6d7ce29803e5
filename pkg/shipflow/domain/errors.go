package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the engine wraps exactly one of these so
// callers can branch with errors.Is.
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidState  = errors.New("invalid state")
	ErrConfiguration = errors.New("configuration error")
	ErrHandlerFailed = errors.New("job handler failed")
	ErrUnknownJob    = errors.New("unknown job type")
)

var (
	ErrNoActiveWorkflow = kindError(ErrNotFound, "no active workflow")
	ErrInvalidStep      = kindError(ErrNotFound, "invalid step")
	ErrShipmentNotFound = kindError(ErrNotFound, "shipment not found")
	ErrJobNotFound      = kindError(ErrNotFound, "job not found")
	ErrAlreadyCompleted = kindError(ErrInvalidState, "workflow already completed")
	ErrRetryNotAllowed  = kindError(ErrInvalidState, "retry not allowed")
	ErrNoNextStep       = kindError(ErrConfiguration, "step has no next step")
)

type sentinel struct {
	kind error
	msg  string
}

func (s *sentinel) Error() string { return s.msg }
func (s *sentinel) Unwrap() error { return s.kind }

func kindError(kind error, msg string) error {
	return &sentinel{kind: kind, msg: msg}
}

// ConfigurationError wraps a startup problem such as a broken step catalog.
func ConfigurationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}
