package scenario

import (
	"errors"

	"github.com/harunnryd/synccheck/internal/client"
	syncErrors "github.com/harunnryd/synccheck/internal/errors"
)

// ExpectDataFile checks that c holds name with exactly the expected bytes.
func ExpectDataFile(c *client.Handle, name, expected string) error {
	observed, err := c.ReadDataFile(name)
	if err != nil {
		if errors.Is(err, syncErrors.ErrNotFound) {
			return &syncErrors.AssertionError{Client: c.Name(), File: name, Expected: expected, Missing: true}
		}
		return err
	}
	if observed != expected {
		return &syncErrors.AssertionError{Client: c.Name(), File: name, Expected: expected, Observed: observed}
	}
	return nil
}

// ExpectNoDataFile checks that name never reached c.
func ExpectNoDataFile(c *client.Handle, name string) error {
	exists, err := c.DataFileExists(name)
	if err != nil {
		return err
	}
	if exists {
		return &syncErrors.AssertionError{Client: c.Name(), File: name, Detail: "file should not be present"}
	}
	return nil
}

// ExpectCommandFailure turns a command outcome inside out: a CommandError passes, success
// is an assertion failure, anything else is returned unchanged.
func ExpectCommandFailure(c *client.Handle, err error, what string) error {
	if err == nil {
		return &syncErrors.AssertionError{Client: c.Name(), File: what, Detail: "command succeeded, expected failure"}
	}
	if errors.Is(err, syncErrors.ErrCommand) {
		return nil
	}
	return err
}
