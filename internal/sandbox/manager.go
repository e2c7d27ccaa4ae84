package sandbox

import (
	"context"

	"github.com/harunnryd/synccheck/internal/container"
)

type SandboxManager interface {
	Provision(ctx context.Context) (*Sandbox, error)
	Release(ctx context.Context, sb *Sandbox) error
	GetSandbox(sandboxID string) (*Sandbox, error)
	ExecuteInSandbox(ctx context.Context, sandboxID string, argv []string) (container.ExecResult, error)
}
