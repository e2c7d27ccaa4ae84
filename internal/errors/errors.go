package errors

import (
	"errors"
)

// Sentinel errors for the harness outcome taxonomy
var (
	// ErrProvisioning - sandbox launch or discovery setup failed (abort scenario, never retried)
	ErrProvisioning = errors.New("provisioning failure")

	// ErrCommand - subject tool exited non-zero (abort scenario, exit status surfaced verbatim)
	ErrCommand = errors.New("command failure")

	// ErrAssertion - observed file state diverges from expected (terminal failing outcome)
	ErrAssertion = errors.New("assertion failure")

	// ErrMissingCredentials - credential or token blob is empty before provisioning
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrInvalidInput - invalid scenario selection, file name or configuration value
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound - unknown scenario or sandbox
	ErrNotFound = errors.New("not found")

	// ErrLocked - another harness instance holds the run lock
	ErrLocked = errors.New("run locked")
)
