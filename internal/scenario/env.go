package scenario

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/harunnryd/synccheck/internal/client"
	"github.com/harunnryd/synccheck/internal/concurrency"
	"github.com/harunnryd/synccheck/internal/credentials"
	"github.com/harunnryd/synccheck/internal/logger"
)

// StepResult records one named step of a run.
type StepResult struct {
	Name     string
	Duration time.Duration
	Err      error
}

// Env is the per-run context handed to a scenario. It owns every client the scenario
// creates and releases them when the run ends.
type Env struct {
	runner  *Runner
	secret  string
	creds   credentials.Credentials
	seed    int64
	rng     *rand.Rand
	cleanup cleanupStack
	clients []*client.Handle
	steps   []StepResult
}

// NewClient provisions a sandbox, registers its release and seeds the run's credentials.
func (e *Env) NewClient(ctx context.Context, name string) (*client.Handle, error) {
	sb, err := e.runner.sandboxes.Provision(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	e.cleanup.push(name, func(ctx context.Context) error {
		return e.runner.sandboxes.Release(ctx, sb)
	})

	c, err := client.New(name, sb, e.runner.sandboxes, e.runner.opts.Client)
	if err != nil {
		return nil, err
	}
	if err := c.SeedCredentials(e.creds); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("Client ready", "client", name, "sandbox_id", sb.ID, "container_id", sb.ContainerID)
	e.clients = append(e.clients, c)
	return c, nil
}

// Secret is the shared encryption key of this run.
func (e *Env) Secret() string {
	return e.secret
}

// NewSecret returns a key distinct from every earlier one in the run.
func (e *Env) NewSecret() (string, error) {
	return GenerateSecret()
}

func (e *Env) Credentials() credentials.Credentials {
	return e.creds
}

func (e *Env) OrderSeed() int64 {
	return e.seed
}

func (e *Env) Clients() []*client.Handle {
	return e.clients
}

// Step runs fn as a named step. The step name prefixes any error it returns.
func (e *Env) Step(ctx context.Context, name string, fn func() error) error {
	log := logger.FromContext(ctx)
	log.Debug("Step started", "step", name)

	start := time.Now()
	err := fn()
	e.steps = append(e.steps, StepResult{Name: name, Duration: time.Since(start), Err: err})

	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	log.Info("Step done", "step", name, "duration", time.Since(start))
	return nil
}

// Defer registers fn to run during cleanup, before resources acquired earlier.
func (e *Env) Defer(name string, fn func(ctx context.Context) error) {
	e.cleanup.push(name, fn)
}

// Sequenced runs tasks one at a time in an order drawn from the run's seed and logs it.
func (e *Env) Sequenced(ctx context.Context, name string, tasks ...concurrency.Task) error {
	order, err := concurrency.RunSequenced(ctx, e.rng, tasks...)
	logger.FromContext(ctx).Info("Sequenced tasks", "step", name, "order", order, "order_seed", e.seed)
	return err
}
