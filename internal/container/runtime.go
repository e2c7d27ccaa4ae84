// Package container wraps the launch, execute and remove primitives of a container runtime.
package container

import (
	"context"
	"strings"
)

// Mount binds a host directory at a fixed path inside the container.
type Mount struct {
	HostPath      string
	ContainerPath string
}

// RunSpec describes a detached, interactive container launch.
type RunSpec struct {
	Image  string
	Mounts []Mount
	Labels map[string]string
}

// ExecResult is the outcome of a process that ran to completion inside a container.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Output returns combined stdout and stderr, trimmed.
func (r ExecResult) Output() string {
	return strings.TrimSpace(strings.TrimSpace(r.Stdout) + "\n" + strings.TrimSpace(r.Stderr))
}

// Runtime is the boundary to the container runtime. Exec reports a non-zero exit through
// ExecResult; the error return is reserved for failures to reach the runtime at all.
type Runtime interface {
	Run(ctx context.Context, spec RunSpec) (string, error)
	Exec(ctx context.Context, containerID string, argv []string) (ExecResult, error)
	Remove(ctx context.Context, containerID string) error
	List(ctx context.Context, labels map[string]string) ([]string, error)
}

// ParseLabel splits a "key=value" label; a bare key maps to "true".
func ParseLabel(label string) (string, string) {
	key, value, found := strings.Cut(strings.TrimSpace(label), "=")
	if !found {
		return key, "true"
	}
	return key, value
}
