package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/synccheck/internal/container"
	syncErrors "github.com/harunnryd/synccheck/internal/errors"

	"github.com/oklog/ulid/v2"
)

const (
	configDirName = "config"
	dataDirName   = "data"
)

// Options configures where sandboxes live on the host and inside the container.
type Options struct {
	BaseDir       string
	Image         string
	ConfigMount   string
	DataMount     string
	DiscoveryLink string
	Labels        map[string]string
	// Keep leaves containers and host directories in place on Release.
	Keep bool
}

type ContainerSandboxManager struct {
	mu        sync.RWMutex
	runtime   container.Runtime
	sandboxes map[string]*Sandbox
	opts      Options
}

func NewContainerSandboxManager(runtime container.Runtime, opts Options) (*ContainerSandboxManager, error) {
	if runtime == nil {
		return nil, fmt.Errorf("container runtime is required")
	}
	if opts.BaseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		opts.BaseDir = filepath.Join(home, ".synccheck", "sandboxes")
	}
	if opts.Image == "" {
		return nil, fmt.Errorf("container image is required")
	}
	for name, mount := range map[string]string{"config": opts.ConfigMount, "data": opts.DataMount} {
		if !path.IsAbs(mount) {
			return nil, fmt.Errorf("%s mount %q must be an absolute path", name, mount)
		}
	}
	if opts.ConfigMount == opts.DataMount {
		return nil, fmt.Errorf("config and data mounts must differ")
	}
	if strings.TrimSpace(opts.DiscoveryLink) == "" {
		return nil, fmt.Errorf("discovery link is required")
	}

	if err := os.MkdirAll(opts.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sandbox base directory: %w", err)
	}

	return &ContainerSandboxManager{
		runtime:   runtime,
		sandboxes: make(map[string]*Sandbox),
		opts:      opts,
	}, nil
}

// Provision creates fresh host directories, launches a detached container with both bind
// mounts and links the tool's default config location to the config mount. Any failure is a
// provisioning failure; a container that started is removed before returning.
func (m *ContainerSandboxManager) Provision(ctx context.Context) (*Sandbox, error) {
	sandboxID := ulid.Make().String()
	root := filepath.Join(m.opts.BaseDir, sandboxID)

	sb := &Sandbox{
		ID:        sandboxID,
		RootDir:   root,
		ConfigDir: filepath.Join(root, configDirName),
		DataDir:   filepath.Join(root, dataDirName),
		State:     SandboxStateSetup,
		CreatedAt: time.Now(),
	}

	for _, dir := range []string{sb.ConfigDir, sb.DataDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, syncErrors.Provisioning(err, "create sandbox directory")
		}
	}

	if err := ctx.Err(); err != nil {
		m.discardDirs(sb)
		return nil, syncErrors.Provisioning(err, "launch sandbox")
	}

	// Launch is never cancelled midway, so a started container always has a known ID.
	containerID, err := m.runtime.Run(context.WithoutCancel(ctx), container.RunSpec{
		Image: m.opts.Image,
		Mounts: []container.Mount{
			{HostPath: sb.ConfigDir, ContainerPath: m.opts.ConfigMount},
			{HostPath: sb.DataDir, ContainerPath: m.opts.DataMount},
		},
		Labels: m.opts.Labels,
	})
	if err != nil {
		m.discardDirs(sb)
		return nil, syncErrors.Provisioning(err, "launch sandbox")
	}
	sb.ContainerID = containerID

	if err := ctx.Err(); err != nil {
		m.removeHalfProvisioned(ctx, sb)
		return nil, syncErrors.Provisioning(err, "launch sandbox")
	}

	res, err := m.runtime.Exec(ctx, containerID, m.discoveryCommand())
	if err == nil && res.ExitCode != 0 {
		err = fmt.Errorf("discovery setup exited with status %d: %s", res.ExitCode, res.Output())
	}
	if err != nil {
		m.removeHalfProvisioned(ctx, sb)
		return nil, syncErrors.Provisioning(err, "set up config discovery")
	}

	sb.State = SandboxStateReady

	m.mu.Lock()
	m.sandboxes[sandboxID] = sb
	m.mu.Unlock()

	slog.Info("Sandbox provisioned",
		"sandbox_id", sandboxID,
		"container_id", containerID,
		"config_dir", sb.ConfigDir,
		"data_dir", sb.DataDir,
	)
	return sb, nil
}

// Release stops the sandbox's container and removes its host directories. Releasing an
// unknown or already released sandbox is a no-op.
func (m *ContainerSandboxManager) Release(ctx context.Context, sb *Sandbox) error {
	if sb == nil {
		return nil
	}

	m.mu.Lock()
	tracked, ok := m.sandboxes[sb.ID]
	if ok {
		delete(m.sandboxes, sb.ID)
		tracked.State = SandboxStateTeardown
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}

	if m.opts.Keep {
		tracked.State = SandboxStateReleased
		slog.Info("Keeping sandbox for inspection",
			"sandbox_id", tracked.ID,
			"container_id", tracked.ContainerID,
			"root", tracked.RootDir,
		)
		return nil
	}

	if err := m.runtime.Remove(ctx, tracked.ContainerID); err != nil {
		tracked.State = SandboxStateError
		return fmt.Errorf("remove container %s: %w", tracked.ContainerID, err)
	}
	if err := os.RemoveAll(tracked.RootDir); err != nil {
		tracked.State = SandboxStateError
		slog.Error("Failed to remove sandbox directory", "error", err, "path", tracked.RootDir)
		return err
	}

	tracked.State = SandboxStateReleased
	slog.Info("Sandbox released", "sandbox_id", tracked.ID)
	return nil
}

func (m *ContainerSandboxManager) GetSandbox(sandboxID string) (*Sandbox, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sb, ok := m.sandboxes[sandboxID]
	if !ok {
		return nil, syncErrors.NotFound("sandbox " + sandboxID)
	}
	return sb, nil
}

// ExecuteInSandbox runs argv inside the sandbox's container and blocks until it exits.
func (m *ContainerSandboxManager) ExecuteInSandbox(ctx context.Context, sandboxID string, argv []string) (container.ExecResult, error) {
	sb, err := m.GetSandbox(sandboxID)
	if err != nil {
		return container.ExecResult{}, err
	}
	if len(argv) == 0 {
		return container.ExecResult{}, fmt.Errorf("command is required")
	}

	slog.Debug("Executing command in sandbox", "sandbox_id", sb.ID, "argv", argv)
	return m.runtime.Exec(ctx, sb.ContainerID, argv)
}

// Active returns the sandboxes provisioned and not yet released.
func (m *ContainerSandboxManager) Active() []*Sandbox {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Sandbox, 0, len(m.sandboxes))
	for _, sb := range m.sandboxes {
		out = append(out, sb)
	}
	return out
}

func (m *ContainerSandboxManager) discoveryCommand() []string {
	link := m.opts.DiscoveryLink
	script := fmt.Sprintf("mkdir -p %s && ln -sfn %s %s", path.Dir(link), m.opts.ConfigMount, link)
	return []string{"bash", "-c", script}
}

func (m *ContainerSandboxManager) removeHalfProvisioned(ctx context.Context, sb *Sandbox) {
	sb.State = SandboxStateError
	if err := m.runtime.Remove(context.WithoutCancel(ctx), sb.ContainerID); err != nil {
		slog.Error("Failed to remove half-provisioned sandbox", "sandbox_id", sb.ID, "error", err)
	}
	m.discardDirs(sb)
}

func (m *ContainerSandboxManager) discardDirs(sb *Sandbox) {
	if err := os.RemoveAll(sb.RootDir); err != nil {
		slog.Warn("Failed to remove sandbox directory", "error", err, "path", sb.RootDir)
	}
}
