package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/harunnryd/synccheck/internal/client"
	"github.com/harunnryd/synccheck/internal/config"
	"github.com/harunnryd/synccheck/internal/container"
	"github.com/harunnryd/synccheck/internal/credentials"
	syncErrors "github.com/harunnryd/synccheck/internal/errors"
	"github.com/harunnryd/synccheck/internal/journal"
	"github.com/harunnryd/synccheck/internal/runlock"
	"github.com/harunnryd/synccheck/internal/sandbox"
	"github.com/harunnryd/synccheck/internal/scenario"

	"github.com/google/shlex"
	"github.com/spf13/cobra"
)

// newRuntime is swapped out in tests.
var newRuntime = func(bin string) (container.Runtime, error) {
	return container.NewDockerRuntime(bin)
}

// harness bundles what a scenario run needs.
type harness struct {
	runtime container.Runtime
	runner  *scenario.Runner
	journal *journal.Store
}

// commandContext falls back to Background when a command is invoked without Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func loadConfigForCommand(cmd *cobra.Command) (*config.Config, error) {
	if cfg != nil {
		return cfg, nil
	}
	return config.Load(cmd)
}

func subjectCommand(raw string) ([]string, error) {
	argv, err := shlex.Split(raw)
	if err != nil {
		return nil, syncErrors.InvalidInput(fmt.Sprintf("subject.command %q: %v", raw, err))
	}
	if len(argv) == 0 {
		return nil, syncErrors.InvalidInput("subject.command is empty")
	}
	return argv, nil
}

func managedLabels(c *config.Config) map[string]string {
	key, value := container.ParseLabel(c.Runtime.Label)
	if key == "" {
		key, value = container.ParseLabel(config.DefaultLabel)
	}
	return map[string]string{key: value}
}

func sandboxOptions(c *config.Config) sandbox.Options {
	return sandbox.Options{
		BaseDir:       c.Sandbox.BaseDir,
		Image:         c.Runtime.Image,
		ConfigMount:   c.Sandbox.ConfigMount,
		DataMount:     c.Sandbox.DataMount,
		DiscoveryLink: c.Sandbox.DiscoveryLink,
		Labels:        managedLabels(c),
		Keep:          c.Sandbox.Keep,
	}
}

func runnerOptions(c *config.Config) (scenario.Options, error) {
	argv, err := subjectCommand(c.Subject.Command)
	if err != nil {
		return scenario.Options{}, err
	}
	timeout, err := config.OptionalDuration(c.Subject.CommandTimeout)
	if err != nil {
		return scenario.Options{}, fmt.Errorf("subject.command_timeout: %w", err)
	}

	return scenario.Options{
		Client: client.Options{
			Command:        argv,
			DataMount:      c.Sandbox.DataMount,
			CommandTimeout: timeout,
		},
		Secret:             strings.TrimSpace(c.Scenario.Secret),
		OrderSeed:          c.Scenario.OrderSeed,
		RequireCredentials: c.Credentials.Require,
	}, nil
}

func buildHarness(c *config.Config) (*harness, error) {
	opts, err := runnerOptions(c)
	if err != nil {
		return nil, err
	}

	rt, err := newRuntime(c.Runtime.DockerBin)
	if err != nil {
		return nil, err
	}

	manager, err := sandbox.NewContainerSandboxManager(rt, sandboxOptions(c))
	if err != nil {
		return nil, err
	}

	store, err := journal.Open(c.Journal.Dir)
	if err != nil {
		return nil, err
	}

	creds := credentials.FromEnv(c.Credentials.CredentialEnv, c.Credentials.TokenEnv)
	runner, err := scenario.NewRunner(manager, creds, opts)
	if err != nil {
		return nil, err
	}

	return &harness{runtime: rt, runner: runner.WithRecorder(store), journal: store}, nil
}

// withRunLock runs fn while holding the run lock.
func withRunLock(ctx context.Context, c *config.Config, owner string, fn func() error) error {
	lockCfg, err := runlock.ConfigFrom(c.Lock)
	if err != nil {
		return err
	}
	lock, err := runlock.Acquire(ctx, c.Lock.Dir, owner, lockCfg)
	if err != nil {
		return err
	}
	defer lock.Unlock()
	return fn()
}

func lockOwner(command string) string {
	return fmt.Sprintf("%s pid %d", command, os.Getpid())
}
