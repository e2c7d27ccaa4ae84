package sandbox

import (
	"time"
)

// Sandbox is one isolated client: a running container plus the two host directories
// bind-mounted into it.
type Sandbox struct {
	ID          string
	ContainerID string
	RootDir     string
	ConfigDir   string
	DataDir     string
	State       SandboxState
	CreatedAt   time.Time
}

type SandboxState string

const (
	SandboxStateSetup    SandboxState = "setup"
	SandboxStateReady    SandboxState = "ready"
	SandboxStateTeardown SandboxState = "teardown"
	SandboxStateReleased SandboxState = "released"
	SandboxStateError    SandboxState = "error"
)
