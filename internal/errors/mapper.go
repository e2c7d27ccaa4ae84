package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
)

// CommandError reports a subject-tool process that exited non-zero.
// The exit status is never interpreted by the harness.
type CommandError struct {
	Client   string
	Args     []string
	ExitCode int
	Output   string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s: %q exited with status %d", e.Client, strings.Join(e.Args, " "), e.ExitCode)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return ErrCommand
}

// AssertionError reports a data file whose observed content diverges from the expected content.
// Contents are summarised by length and digest so secrets never land in logs.
type AssertionError struct {
	Client   string
	File     string
	Expected string
	Observed string
	Missing  bool
	Detail   string
}

func (e *AssertionError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Client, e.File, e.Detail)
	}
	if e.Missing {
		return fmt.Sprintf("%s: %s: expected %s, file is missing", e.Client, e.File, Digest(e.Expected))
	}
	return fmt.Sprintf("%s: %s: expected %s, observed %s", e.Client, e.File, Digest(e.Expected), Digest(e.Observed))
}

func (e *AssertionError) Unwrap() error {
	return ErrAssertion
}

// Digest summarises content as its length and a short BLAKE3 prefix.
func Digest(content string) string {
	sum := blake3.Sum256([]byte(content))
	return fmt.Sprintf("%d bytes blake3:%x", len(content), sum[:8])
}

// Category returns the stable outcome category for an error
func Category(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Cancelled"
	case errors.Is(err, ErrProvisioning):
		return "ProvisioningFailure"
	case errors.Is(err, ErrCommand):
		return "CommandFailure"
	case errors.Is(err, ErrAssertion):
		return "AssertionFailure"
	case errors.Is(err, ErrMissingCredentials):
		return "MissingCredentials"
	case errors.Is(err, ErrInvalidInput):
		return "InvalidInput"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrLocked):
		return "Locked"
	default:
		return "Unknown"
	}
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s: %w", message, err)
}

// Provisioning wraps err as a provisioning failure
func Provisioning(err error, message string) error {
	if err == nil {
		return fmt.Errorf("%s: %w", message, ErrProvisioning)
	}
	return fmt.Errorf("%s: %w", message, errors.Join(ErrProvisioning, err))
}

// IsCategory checks if error belongs to specific category
func IsCategory(err error, category error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, category)
}

// NotFound wraps error as not found
func NotFound(message string) error {
	return fmt.Errorf("%s: %w", message, ErrNotFound)
}

// InvalidInput wraps error as invalid input
func InvalidInput(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInvalidInput)
}

// MissingCredentials wraps error as missing credentials
func MissingCredentials(message string) error {
	return fmt.Errorf("%s: %w", message, ErrMissingCredentials)
}
