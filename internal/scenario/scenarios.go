package scenario

import (
	"context"
	"fmt"

	"github.com/harunnryd/synccheck/internal/client"
	"github.com/harunnryd/synccheck/internal/concurrency"
	"github.com/harunnryd/synccheck/internal/subject"
)

const (
	canonicalFile    = "test1.txt"
	canonicalContent = "test1"
)

// Builtin returns the shipped scenarios, canonical first.
func Builtin() []Scenario {
	return []Scenario{
		{
			Name:        "upload-download",
			Description: "one client uploads test1.txt, the other downloads identical bytes",
			Run:         uploadDownload,
		},
		{
			Name:        "idempotent-sync",
			Description: "repeated syncs after convergence leave content unchanged",
			Run:         idempotentSync,
		},
		{
			Name:        "reset-completeness",
			Description: "files uploaded before a reset never reach clients created after it",
			Run:         resetCompleteness,
		},
		{
			Name:        "unmanaged-isolation",
			Description: "files outside the path selection are never transferred",
			Run:         unmanagedIsolation,
		},
		{
			Name:               "missing-credentials",
			Description:        "sync fails when the credential and token blobs are empty",
			MissingCredentials: true,
			Run:                missingCredentials,
		},
		{
			Name:        "symmetric-secret",
			Description: "secret delivery order between clients does not affect convergence",
			Run:         symmetricSecret,
		},
		{
			Name:        "cross-seed",
			Description: "each client seeds its own file; randomized sync order converges both",
			Run:         crossSeed,
		},
	}
}

// pair provisions two clients sharing secret.
func pair(ctx context.Context, env *Env, prefix, secret string) (*client.Handle, *client.Handle, error) {
	a, err := env.NewClient(ctx, prefix+"-a")
	if err != nil {
		return nil, nil, err
	}
	b, err := env.NewClient(ctx, prefix+"-b")
	if err != nil {
		return nil, nil, err
	}

	err = env.Step(ctx, "seed secret", func() error {
		return forEach(func(c *client.Handle) error { return c.SeedSecret(secret) }, a, b)
	})
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

// selectPaths writes one path selection naming files to every client.
func selectPaths(ctx context.Context, env *Env, files []string, clients ...*client.Handle) error {
	sel := subject.NewPathSelection()
	for _, name := range files {
		sel.Add(subject.DefaultGroup, clients[0].ContainerDataPath(name))
	}
	return env.Step(ctx, "write path selection", func() error {
		return forEach(func(c *client.Handle) error { return c.WritePathSelection(sel) }, clients...)
	})
}

func forEach(fn func(c *client.Handle) error, clients ...*client.Handle) error {
	for _, c := range clients {
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

func reset(ctx context.Context, env *Env, c *client.Handle) error {
	return env.Step(ctx, "reset remote", func() error { return c.DeleteAllRemoteFiles(ctx) })
}

func syncStep(ctx context.Context, env *Env, c *client.Handle) error {
	return env.Step(ctx, "sync "+c.Name(), func() error { return c.Sync(ctx) })
}

func uploadDownload(ctx context.Context, env *Env) error {
	a, b, err := pair(ctx, env, "client", env.Secret())
	if err != nil {
		return err
	}
	if err := reset(ctx, env, a); err != nil {
		return err
	}
	if err := env.Step(ctx, "seed data", func() error { return a.WriteDataFile(canonicalFile, canonicalContent) }); err != nil {
		return err
	}
	if err := selectPaths(ctx, env, []string{canonicalFile}, a, b); err != nil {
		return err
	}
	if err := syncStep(ctx, env, a); err != nil {
		return err
	}
	if err := syncStep(ctx, env, b); err != nil {
		return err
	}
	return env.Step(ctx, "verify download", func() error {
		return ExpectDataFile(b, canonicalFile, canonicalContent)
	})
}

func idempotentSync(ctx context.Context, env *Env) error {
	if err := uploadDownload(ctx, env); err != nil {
		return err
	}
	clients := env.Clients()
	a, b := clients[0], clients[1]

	for i := 1; i <= 2; i++ {
		if err := env.Step(ctx, fmt.Sprintf("resync %s #%d", b.Name(), i), func() error { return b.Sync(ctx) }); err != nil {
			return err
		}
	}
	return env.Step(ctx, "verify unchanged", func() error {
		return forEach(func(c *client.Handle) error {
			return ExpectDataFile(c, canonicalFile, canonicalContent)
		}, a, b)
	})
}

func resetCompleteness(ctx context.Context, env *Env) error {
	const stale, fresh = "stale.txt", "fresh.txt"

	before, other, err := pair(ctx, env, "before", env.Secret())
	if err != nil {
		return err
	}
	if err := reset(ctx, env, before); err != nil {
		return err
	}
	if err := env.Step(ctx, "seed stale data", func() error { return before.WriteDataFile(stale, "stale") }); err != nil {
		return err
	}
	if err := selectPaths(ctx, env, []string{stale}, before, other); err != nil {
		return err
	}
	if err := syncStep(ctx, env, before); err != nil {
		return err
	}

	secret, err := env.NewSecret()
	if err != nil {
		return err
	}
	a, b, err := pair(ctx, env, "after", secret)
	if err != nil {
		return err
	}
	if err := reset(ctx, env, a); err != nil {
		return err
	}
	if err := env.Step(ctx, "seed fresh data", func() error { return a.WriteDataFile(fresh, "fresh") }); err != nil {
		return err
	}
	if err := selectPaths(ctx, env, []string{stale, fresh}, a, b); err != nil {
		return err
	}
	if err := syncStep(ctx, env, a); err != nil {
		return err
	}
	if err := syncStep(ctx, env, b); err != nil {
		return err
	}
	return env.Step(ctx, "verify reset", func() error {
		if err := ExpectDataFile(b, fresh, "fresh"); err != nil {
			return err
		}
		return forEach(func(c *client.Handle) error { return ExpectNoDataFile(c, stale) }, a, b)
	})
}

func unmanagedIsolation(ctx context.Context, env *Env) error {
	const private = "private.txt"

	a, b, err := pair(ctx, env, "client", env.Secret())
	if err != nil {
		return err
	}
	err = env.Step(ctx, "write local config", func() error {
		return forEach(func(c *client.Handle) error { return c.WriteLocalConfig(subject.DefaultLocalConfig()) }, a, b)
	})
	if err != nil {
		return err
	}
	if err := reset(ctx, env, a); err != nil {
		return err
	}
	err = env.Step(ctx, "seed data", func() error {
		if err := a.WriteDataFile(canonicalFile, canonicalContent); err != nil {
			return err
		}
		return a.WriteDataFile(private, "not for sharing")
	})
	if err != nil {
		return err
	}
	if err := selectPaths(ctx, env, []string{canonicalFile}, a, b); err != nil {
		return err
	}
	if err := syncStep(ctx, env, a); err != nil {
		return err
	}
	if err := syncStep(ctx, env, b); err != nil {
		return err
	}
	return env.Step(ctx, "verify isolation", func() error {
		if err := ExpectDataFile(b, canonicalFile, canonicalContent); err != nil {
			return err
		}
		return ExpectNoDataFile(b, private)
	})
}

func missingCredentials(ctx context.Context, env *Env) error {
	a, err := env.NewClient(ctx, "client-a")
	if err != nil {
		return err
	}
	err = env.Step(ctx, "seed", func() error {
		if err := a.SeedSecret(env.Secret()); err != nil {
			return err
		}
		if err := a.WritePathSelection(subject.NewPathSelection().Add(subject.DefaultGroup, a.ContainerDataPath(canonicalFile))); err != nil {
			return err
		}
		return a.WriteDataFile(canonicalFile, canonicalContent)
	})
	if err != nil {
		return err
	}
	return env.Step(ctx, "expect sync failure", func() error {
		return ExpectCommandFailure(a, a.Sync(ctx), subject.CommandSync)
	})
}

func symmetricSecret(ctx context.Context, env *Env) error {
	a, err := env.NewClient(ctx, "client-a")
	if err != nil {
		return err
	}
	b, err := env.NewClient(ctx, "client-b")
	if err != nil {
		return err
	}

	secret := env.Secret()
	seed := func(c *client.Handle) concurrency.Task {
		return func(context.Context) error { return c.SeedSecret(secret) }
	}
	if err := env.Step(ctx, "seed secret", func() error {
		return env.Sequenced(ctx, "seed secret", seed(a), seed(b))
	}); err != nil {
		return err
	}

	if err := reset(ctx, env, a); err != nil {
		return err
	}
	if err := env.Step(ctx, "seed data", func() error { return a.WriteDataFile(canonicalFile, canonicalContent) }); err != nil {
		return err
	}
	if err := selectPaths(ctx, env, []string{canonicalFile}, a, b); err != nil {
		return err
	}
	if err := syncStep(ctx, env, a); err != nil {
		return err
	}
	if err := syncStep(ctx, env, b); err != nil {
		return err
	}
	return env.Step(ctx, "verify download", func() error {
		return ExpectDataFile(b, canonicalFile, canonicalContent)
	})
}

func crossSeed(ctx context.Context, env *Env) error {
	const fileA, fileB = "a.txt", "b.txt"

	a, b, err := pair(ctx, env, "client", env.Secret())
	if err != nil {
		return err
	}
	if err := reset(ctx, env, a); err != nil {
		return err
	}
	err = env.Step(ctx, "seed data", func() error {
		if err := a.WriteDataFile(fileA, "from a"); err != nil {
			return err
		}
		return b.WriteDataFile(fileB, "from b")
	})
	if err != nil {
		return err
	}
	if err := selectPaths(ctx, env, []string{fileA, fileB}, a, b); err != nil {
		return err
	}

	syncTask := func(c *client.Handle) concurrency.Task {
		return func(ctx context.Context) error { return c.Sync(ctx) }
	}
	for round := 1; round <= 2; round++ {
		name := fmt.Sprintf("sync round %d", round)
		if err := env.Step(ctx, name, func() error {
			return env.Sequenced(ctx, name, syncTask(a), syncTask(b))
		}); err != nil {
			return err
		}
	}

	return env.Step(ctx, "verify convergence", func() error {
		return forEach(func(c *client.Handle) error {
			if err := ExpectDataFile(c, fileA, "from a"); err != nil {
				return err
			}
			return ExpectDataFile(c, fileB, "from b")
		}, a, b)
	})
}
