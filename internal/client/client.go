// Package client drives one subject-tool instance: host-side file I/O on its sandbox
// directories and command execution inside its container.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/harunnryd/synccheck/internal/container"
	"github.com/harunnryd/synccheck/internal/credentials"
	syncErrors "github.com/harunnryd/synccheck/internal/errors"
	"github.com/harunnryd/synccheck/internal/sandbox"
	"github.com/harunnryd/synccheck/internal/subject"

	"github.com/spf13/afero"
)

// Executor runs a command inside a provisioned sandbox.
type Executor interface {
	ExecuteInSandbox(ctx context.Context, sandboxID string, argv []string) (container.ExecResult, error)
}

type Options struct {
	// Command is the argv prefix that invokes the subject tool.
	Command []string
	// DataMount is where the data directory appears inside the container.
	DataMount string
	// CommandTimeout bounds each command; zero waits indefinitely.
	CommandTimeout time.Duration
}

// Handle is a named client over one sandbox.
type Handle struct {
	name     string
	sb       *sandbox.Sandbox
	exec     Executor
	opts     Options
	configFS afero.Fs
	dataFS   afero.Fs
}

func New(name string, sb *sandbox.Sandbox, exec Executor, opts Options) (*Handle, error) {
	if sb == nil {
		return nil, fmt.Errorf("sandbox is required")
	}
	if exec == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if len(opts.Command) == 0 {
		return nil, syncErrors.InvalidInput("subject command is empty")
	}
	if !path.IsAbs(opts.DataMount) {
		return nil, syncErrors.InvalidInput(fmt.Sprintf("data mount %q is not absolute", opts.DataMount))
	}

	osFs := afero.NewOsFs()
	return &Handle{
		name:     name,
		sb:       sb,
		exec:     exec,
		opts:     opts,
		configFS: afero.NewBasePathFs(osFs, sb.ConfigDir),
		dataFS:   afero.NewBasePathFs(osFs, sb.DataDir),
	}, nil
}

func (h *Handle) Name() string {
	return h.name
}

func (h *Handle) Sandbox() *sandbox.Sandbox {
	return h.sb
}

// RunCommand runs the subject tool with args and waits for it to exit. A non-zero exit
// becomes a *CommandError carrying the status and captured output.
func (h *Handle) RunCommand(ctx context.Context, args ...string) error {
	if h.opts.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.CommandTimeout)
		defer cancel()
	}

	argv := append(append([]string{}, h.opts.Command...), args...)
	start := time.Now()
	res, err := h.exec.ExecuteInSandbox(ctx, h.sb.ID, argv)
	if err != nil {
		return fmt.Errorf("%s: run %s: %w", h.name, strings.Join(args, " "), err)
	}

	slog.Debug("Subject command finished",
		"client", h.name,
		"args", args,
		"exit_code", res.ExitCode,
		"duration", time.Since(start),
	)

	if res.ExitCode != 0 {
		return &syncErrors.CommandError{
			Client:   h.name,
			Args:     args,
			ExitCode: res.ExitCode,
			Output:   res.Output(),
		}
	}
	return nil
}

func (h *Handle) Sync(ctx context.Context) error {
	return h.RunCommand(ctx, subject.CommandSync)
}

// DeleteAllRemoteFiles resets the shared remote store.
func (h *Handle) DeleteAllRemoteFiles(ctx context.Context) error {
	return h.RunCommand(ctx, subject.CommandDeleteRemote, subject.FlagAssumeYes)
}

func (h *Handle) WriteDataFile(name, content string) error {
	return h.write(h.dataFS, "data", name, content)
}

func (h *Handle) ReadDataFile(name string) (string, error) {
	return h.read(h.dataFS, "data", name)
}

func (h *Handle) DataFileExists(name string) (bool, error) {
	clean, err := cleanName(name)
	if err != nil {
		return false, err
	}
	return afero.Exists(h.dataFS, clean)
}

func (h *Handle) WriteConfigFile(name, content string) error {
	return h.write(h.configFS, "config", name, content)
}

func (h *Handle) ReadConfigFile(name string) (string, error) {
	return h.read(h.configFS, "config", name)
}

// ContainerDataPath is the absolute path of a data file as the subject tool sees it.
func (h *Handle) ContainerDataPath(name string) string {
	return subject.ContainerPath(h.opts.DataMount, name)
}

func (h *Handle) SeedSecret(secret string) error {
	return h.WriteConfigFile(subject.EncryptionKeyFile, secret)
}

// SeedCredentials writes the blobs verbatim, including empty ones.
func (h *Handle) SeedCredentials(creds credentials.Credentials) error {
	if err := h.WriteConfigFile(subject.CredentialsFile, creds.Credential); err != nil {
		return err
	}
	return h.WriteConfigFile(subject.TokenFile, creds.Token)
}

func (h *Handle) WritePathSelection(sel *subject.PathSelection) error {
	doc, err := sel.Marshal()
	if err != nil {
		return syncErrors.Wrap(err, "encode path selection")
	}
	return h.WriteConfigFile(subject.GlobalConfigFile, doc)
}

func (h *Handle) WriteLocalConfig(local *subject.LocalConfig) error {
	doc, err := local.Marshal()
	if err != nil {
		return syncErrors.Wrap(err, "encode local config")
	}
	return h.WriteConfigFile(subject.LocalConfigFile, doc)
}

func (h *Handle) write(fs afero.Fs, kind, name, content string) error {
	clean, err := cleanName(name)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(clean); dir != "." {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%s: create %s dir for %s: %w", h.name, kind, name, err)
		}
	}
	if err := afero.WriteFile(fs, clean, []byte(content), 0644); err != nil {
		return fmt.Errorf("%s: write %s file %s: %w", h.name, kind, name, err)
	}
	return nil
}

func (h *Handle) read(fs afero.Fs, kind, name string) (string, error) {
	clean, err := cleanName(name)
	if err != nil {
		return "", err
	}
	data, err := afero.ReadFile(fs, clean)
	if err != nil {
		if os.IsNotExist(err) {
			return "", syncErrors.NotFound(fmt.Sprintf("%s: %s file %s", h.name, kind, name))
		}
		return "", fmt.Errorf("%s: read %s file %s: %w", h.name, kind, name, err)
	}
	return string(data), nil
}

// cleanName rejects names that would leave the sandbox directory.
func cleanName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", syncErrors.InvalidInput("file name is empty")
	}
	if filepath.IsAbs(trimmed) {
		return "", syncErrors.InvalidInput(fmt.Sprintf("file name %q must be relative", name))
	}
	clean := filepath.Clean(trimmed)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", syncErrors.InvalidInput(fmt.Sprintf("file name %q escapes the sandbox", name))
	}
	return clean, nil
}
