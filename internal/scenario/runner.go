// Package scenario runs named convergence scenarios against isolated subject-tool clients.
// Each run provisions its own sandboxes, seeds shared state, drives the tool and asserts on
// observed file bytes; sandboxes are always released in reverse order.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/harunnryd/synccheck/internal/client"
	"github.com/harunnryd/synccheck/internal/concurrency"
	"github.com/harunnryd/synccheck/internal/credentials"
	syncErrors "github.com/harunnryd/synccheck/internal/errors"
	"github.com/harunnryd/synccheck/internal/journal"
	"github.com/harunnryd/synccheck/internal/logger"
	"github.com/harunnryd/synccheck/internal/sandbox"

	"github.com/oklog/ulid/v2"
)

// Scenario is a named, ordered sequence of steps. It has no implicit retries.
type Scenario struct {
	Name        string
	Description string
	// MissingCredentials seeds empty credential blobs and skips credential validation.
	MissingCredentials bool
	Run                func(ctx context.Context, env *Env) error
}

type Options struct {
	Client client.Options
	// Secret pins the shared encryption key; empty generates one per run.
	Secret string
	// OrderSeed pins the randomized client ordering; zero draws a new seed per run.
	OrderSeed int64
	// RequireCredentials validates credentials before any sandbox is provisioned.
	RequireCredentials bool
}

// Recorder receives one record per finished run.
type Recorder interface {
	Record(rec journal.RunRecord) error
}

type Runner struct {
	sandboxes sandbox.SandboxManager
	creds     credentials.Source
	recorder  Recorder
	opts      Options
}

func NewRunner(sandboxes sandbox.SandboxManager, creds credentials.Source, opts Options) (*Runner, error) {
	if sandboxes == nil {
		return nil, fmt.Errorf("sandbox manager is required")
	}
	if creds == nil {
		return nil, fmt.Errorf("credential source is required")
	}
	return &Runner{sandboxes: sandboxes, creds: creds, opts: opts}, nil
}

// WithRecorder journals every run through rec.
func (r *Runner) WithRecorder(rec Recorder) *Runner {
	r.recorder = rec
	return r
}

// Result is the outcome of one scenario run. Err is nil exactly when the run passed.
type Result struct {
	RunID      string
	Scenario   string
	OrderSeed  int64
	StartedAt  time.Time
	FinishedAt time.Time
	Steps      []StepResult
	Err        error
}

func (r Result) Passed() bool {
	return r.Err == nil
}

func (r Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r Result) Record() journal.RunRecord {
	rec := journal.RunRecord{
		RunID:      r.RunID,
		Scenario:   r.Scenario,
		OrderSeed:  r.OrderSeed,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Outcome:    journal.OutcomePass,
	}
	if r.Err != nil {
		rec.Outcome = journal.OutcomeFail
		rec.Category = syncErrors.Category(r.Err)
		rec.Error = r.Err.Error()
	}
	for _, step := range r.Steps {
		sr := journal.StepRecord{Name: step.Name, Duration: step.Duration}
		if step.Err != nil {
			sr.Error = step.Err.Error()
		}
		rec.Steps = append(rec.Steps, sr)
	}
	return rec
}

// Run executes sc once and returns its outcome. Every sandbox acquired during the run is
// released before Run returns, whatever the outcome.
func (r *Runner) Run(ctx context.Context, sc Scenario) Result {
	res := Result{
		RunID:     ulid.Make().String(),
		Scenario:  sc.Name,
		StartedAt: time.Now(),
	}
	ctx = logger.WithScenario(logger.WithRunID(ctx, res.RunID), sc.Name)
	log := logger.FromContext(ctx)

	env, err := r.newEnv(sc)
	if err == nil {
		res.OrderSeed = env.seed
		log.Info("Scenario started", "order_seed", env.seed)
		err = env.execute(ctx, sc)
		res.Steps = env.steps
	}

	res.FinishedAt = time.Now()
	res.Err = err

	if err != nil {
		log.Error("Scenario failed",
			"category", syncErrors.Category(err),
			"error", err,
			"duration", res.Duration(),
		)
	} else {
		log.Info("Scenario passed", "duration", res.Duration())
	}

	if r.recorder != nil {
		if recErr := r.recorder.Record(res.Record()); recErr != nil {
			log.Warn("Failed to journal run", "error", recErr)
		}
	}
	return res
}

// RunAll runs each scenario in turn and stops early only when ctx is cancelled.
func (r *Runner) RunAll(ctx context.Context, scenarios []Scenario) []Result {
	results := make([]Result, 0, len(scenarios))
	for _, sc := range scenarios {
		if ctx.Err() != nil {
			break
		}
		results = append(results, r.Run(ctx, sc))
	}
	return results
}

func (r *Runner) newEnv(sc Scenario) (*Env, error) {
	if sc.Run == nil {
		return nil, syncErrors.InvalidInput(fmt.Sprintf("scenario %q has no steps", sc.Name))
	}

	creds := r.creds.Read()
	if sc.MissingCredentials {
		creds = credentials.Credentials{}
	} else if r.opts.RequireCredentials {
		if err := creds.Validate(); err != nil {
			return nil, err
		}
	}

	secret := r.opts.Secret
	if secret == "" {
		generated, err := GenerateSecret()
		if err != nil {
			return nil, err
		}
		secret = generated
	}

	seed := r.opts.OrderSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Env{
		runner: r,
		secret: secret,
		creds:  creds,
		seed:   seed,
		rng:    rand.New(rand.NewSource(seed)),
	}, nil
}

func (e *Env) execute(ctx context.Context, sc Scenario) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Scenario panicked", "scenario", sc.Name, "panic", rec)
			err = &concurrency.PanicError{Value: rec}
		}
		if cleanupErr := e.cleanup.unwind(context.WithoutCancel(ctx), logger.FromContext(ctx)); cleanupErr != nil {
			err = errors.Join(err, cleanupErr)
		}
	}()
	return sc.Run(ctx, e)
}
