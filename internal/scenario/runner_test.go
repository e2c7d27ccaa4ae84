package scenario

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/harunnryd/synccheck/internal/client"
	"github.com/harunnryd/synccheck/internal/container/containertest"
	"github.com/harunnryd/synccheck/internal/credentials"
	syncErrors "github.com/harunnryd/synccheck/internal/errors"
	"github.com/harunnryd/synccheck/internal/journal"
	"github.com/harunnryd/synccheck/internal/sandbox"
	"github.com/harunnryd/synccheck/internal/subject"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const canonicalKey = "166d8e96ae29d01dd155f840ac61657acfaa63bc24d15457183e9da03d33ef56"

type harness struct {
	rt      *containertest.Runtime
	manager *sandbox.ContainerSandboxManager
	runner  *Runner
	baseDir string
}

func newHarness(t *testing.T, creds credentials.Source, mutate func(*Options)) *harness {
	t.Helper()

	rt := containertest.NewRuntime("lyncser")
	baseDir := t.TempDir()
	manager, err := sandbox.NewContainerSandboxManager(rt, sandbox.Options{
		BaseDir:       baseDir,
		Image:         "lyncser-test",
		ConfigMount:   "/lyncser_config",
		DataMount:     "/lyncser_data",
		DiscoveryLink: "~/.config/lyncser",
		Labels:        map[string]string{"synccheck.managed": "true"},
	})
	require.NoError(t, err)

	if creds == nil {
		creds = credentials.Static(`{"installed":{}}`, `{"access_token":"t"}`)
	}
	opts := Options{
		Client: client.Options{
			Command:   []string{"lyncser"},
			DataMount: "/lyncser_data",
		},
		Secret:             canonicalKey,
		OrderSeed:          1,
		RequireCredentials: true,
	}
	if mutate != nil {
		mutate(&opts)
	}

	runner, err := NewRunner(manager, creds, opts)
	require.NoError(t, err)
	return &harness{rt: rt, manager: manager, runner: runner, baseDir: baseDir}
}

func (h *harness) assertReleased(t *testing.T) {
	t.Helper()
	assert.Equal(t, 0, h.rt.Running(), "every container must be removed")
	assert.Empty(t, h.manager.Active())
	leftovers, err := filepath.Glob(filepath.Join(h.baseDir, "*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers, "every sandbox directory must be removed")
}

func mustScenario(t *testing.T, name string) Scenario {
	t.Helper()
	sc, err := DefaultRegistry().Get(name)
	require.NoError(t, err)
	return sc
}

func TestBuiltinScenariosPass(t *testing.T) {
	for _, sc := range Builtin() {
		t.Run(sc.Name, func(t *testing.T) {
			h := newHarness(t, nil, nil)

			res := h.runner.Run(context.Background(), sc)
			require.NoError(t, res.Err)
			assert.True(t, res.Passed())
			assert.NotEmpty(t, res.RunID)
			assert.NotEmpty(t, res.Steps)
			h.assertReleased(t)
		})
	}
}

func TestUploadDownloadCommandSequence(t *testing.T) {
	h := newHarness(t, nil, nil)

	res := h.runner.Run(context.Background(), mustScenario(t, "upload-download"))
	require.NoError(t, res.Err)

	calls := h.rt.SubjectCalls()
	require.Len(t, calls, 3)
	assert.Equal(t, []string{"lyncser", "deleteAllRemoteFiles", "-y"}, calls[0].Argv)
	assert.Equal(t, []string{"lyncser", "sync"}, calls[1].Argv)
	assert.Equal(t, []string{"lyncser", "sync"}, calls[2].Argv)
	assert.Equal(t, calls[0].ContainerID, calls[1].ContainerID, "reset and first sync run on client A")
	assert.NotEqual(t, calls[1].ContainerID, calls[2].ContainerID)
	assert.NotContains(t, calls[0].ConfigFiles, subject.GlobalConfigFile, "path selection is written after the reset")
	assert.Contains(t, calls[0].ConfigFiles, subject.EncryptionKeyFile)
	assert.Contains(t, calls[1].ConfigFiles, subject.GlobalConfigFile)

	content, ok := h.rt.Remote.Get("/lyncser_data/test1.txt")
	require.True(t, ok)
	assert.Equal(t, "test1", content)
}

func TestUploadDownloadClearsPreexistingRemoteState(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.rt.Remote.Put("/lyncser_data/leftover.txt", "old", "other-key")

	res := h.runner.Run(context.Background(), mustScenario(t, "upload-download"))
	require.NoError(t, res.Err)

	_, ok := h.rt.Remote.Get("/lyncser_data/leftover.txt")
	assert.False(t, ok)
	assert.Equal(t, 1, h.rt.Remote.Len())
}

func TestResetCompletenessClearsPreexistingRemoteState(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.rt.Remote.Put("/lyncser_data/stale.txt", "left by an interrupted run", "old-key")

	res := h.runner.Run(context.Background(), mustScenario(t, "reset-completeness"))
	require.NoError(t, res.Err)

	calls := h.rt.SubjectCalls()
	require.NotEmpty(t, calls)
	assert.Equal(t, []string{"lyncser", "deleteAllRemoteFiles", "-y"}, calls[0].Argv, "the first client resets before syncing")
	h.assertReleased(t)
}

func TestResetCompletenessFailsWhenResetKeepsFiles(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.rt.ExitOverrides = map[string]int{subject.CommandDeleteRemote: 0}

	res := h.runner.Run(context.Background(), mustScenario(t, "reset-completeness"))
	require.Error(t, res.Err)
	assert.False(t, res.Passed())
	assert.Equal(t, "CommandFailure", syncErrors.Category(res.Err), "the surviving file cannot be decrypted with the new secret")
	h.assertReleased(t)
}

func TestUnmanagedIsolationFailsWhenUnmanagedFileLeaks(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.rt.LeakUnmanaged = true

	res := h.runner.Run(context.Background(), mustScenario(t, "unmanaged-isolation"))
	require.Error(t, res.Err)
	assert.Equal(t, "AssertionFailure", syncErrors.Category(res.Err))

	var assertErr *syncErrors.AssertionError
	require.True(t, errors.As(res.Err, &assertErr))
	assert.Equal(t, "client-b", assertErr.Client)
	assert.Equal(t, "private.txt", assertErr.File)
	h.assertReleased(t)
}

func TestIdempotentSyncFailsWhenResyncChangesContent(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.rt.MutateOnResync = true

	res := h.runner.Run(context.Background(), mustScenario(t, "idempotent-sync"))
	require.Error(t, res.Err)
	assert.Equal(t, "AssertionFailure", syncErrors.Category(res.Err))

	var assertErr *syncErrors.AssertionError
	require.True(t, errors.As(res.Err, &assertErr))
	assert.Equal(t, "client-b", assertErr.Client)
	assert.Equal(t, canonicalFile, assertErr.File)
}

func TestMissingCredentialsFailBeforeProvisioning(t *testing.T) {
	h := newHarness(t, credentials.Static("", ""), nil)

	res := h.runner.Run(context.Background(), mustScenario(t, "upload-download"))
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, syncErrors.ErrMissingCredentials)
	assert.Empty(t, h.rt.Calls(), "no sandbox may be provisioned")
	assert.Empty(t, h.rt.Removed())
}

func TestUnrequiredCredentialsReachSubjectTool(t *testing.T) {
	h := newHarness(t, credentials.Static("", ""), func(o *Options) { o.RequireCredentials = false })

	res := h.runner.Run(context.Background(), mustScenario(t, "upload-download"))
	require.Error(t, res.Err)
	assert.Equal(t, "CommandFailure", syncErrors.Category(res.Err))
	h.assertReleased(t)
}

func TestMissingCredentialsScenarioIgnoresConfiguredCredentials(t *testing.T) {
	h := newHarness(t, credentials.Static("", ""), nil)

	res := h.runner.Run(context.Background(), mustScenario(t, "missing-credentials"))
	require.NoError(t, res.Err)
	h.assertReleased(t)
}

func TestMissingCredentialsScenarioFailsWhenSyncSucceeds(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.rt.ExitOverrides = map[string]int{subject.CommandSync: 0}

	res := h.runner.Run(context.Background(), mustScenario(t, "missing-credentials"))
	require.Error(t, res.Err)
	assert.Equal(t, "AssertionFailure", syncErrors.Category(res.Err))
}

func TestCommandFailureAbortsAndReleases(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.rt.ExitOverrides = map[string]int{subject.CommandSync: 7}

	res := h.runner.Run(context.Background(), mustScenario(t, "upload-download"))
	require.Error(t, res.Err)

	var cmdErr *syncErrors.CommandError
	require.True(t, errors.As(res.Err, &cmdErr))
	assert.Equal(t, 7, cmdErr.ExitCode)
	assert.Equal(t, "client-a", cmdErr.Client)
	assert.Len(t, h.rt.SubjectCalls(), 2, "nothing runs after the failing command")
	h.assertReleased(t)
}

func TestProvisioningFailure(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.rt.SetupExitCode = 1

	res := h.runner.Run(context.Background(), mustScenario(t, "upload-download"))
	require.Error(t, res.Err)
	assert.Equal(t, "ProvisioningFailure", syncErrors.Category(res.Err))
	h.assertReleased(t)
}

func TestAssertionFailureReportsDigests(t *testing.T) {
	h := newHarness(t, nil, nil)

	sc := Scenario{
		Name: "diverged",
		Run: func(ctx context.Context, env *Env) error {
			c, err := env.NewClient(ctx, "client-a")
			if err != nil {
				return err
			}
			if err := c.WriteDataFile("test1.txt", "secret-ish"); err != nil {
				return err
			}
			return env.Step(ctx, "verify", func() error { return ExpectDataFile(c, "test1.txt", "test1") })
		},
	}

	res := h.runner.Run(context.Background(), sc)
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, syncErrors.ErrAssertion)
	assert.NotContains(t, res.Err.Error(), "secret-ish")
	assert.Contains(t, res.Err.Error(), "blake3:")
	h.assertReleased(t)
}

func TestWrongSecretOnSecondClientFails(t *testing.T) {
	h := newHarness(t, nil, nil)

	sc := Scenario{
		Name: "mismatched-secret",
		Run: func(ctx context.Context, env *Env) error {
			a, b, err := pair(ctx, env, "client", env.Secret())
			if err != nil {
				return err
			}
			if err := b.SeedSecret("not-the-shared-key"); err != nil {
				return err
			}
			if err := a.WriteDataFile(canonicalFile, canonicalContent); err != nil {
				return err
			}
			if err := selectPaths(ctx, env, []string{canonicalFile}, a, b); err != nil {
				return err
			}
			if err := a.Sync(ctx); err != nil {
				return err
			}
			return b.Sync(ctx)
		},
	}

	res := h.runner.Run(context.Background(), sc)
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, syncErrors.ErrCommand)
}

func TestPanicIsConvertedAndReleases(t *testing.T) {
	h := newHarness(t, nil, nil)

	sc := Scenario{
		Name: "panics",
		Run: func(ctx context.Context, env *Env) error {
			if _, err := env.NewClient(ctx, "client-a"); err != nil {
				return err
			}
			panic("boom")
		},
	}

	res := h.runner.Run(context.Background(), sc)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "boom")
	h.assertReleased(t)
}

func TestCleanupRunsInReverseOrder(t *testing.T) {
	h := newHarness(t, nil, nil)
	var order []string

	sc := Scenario{
		Name: "ordered-cleanup",
		Run: func(ctx context.Context, env *Env) error {
			for _, name := range []string{"first", "second", "third"} {
				name := name
				env.Defer(name, func(context.Context) error {
					order = append(order, name)
					return nil
				})
			}
			return nil
		},
	}

	res := h.runner.Run(context.Background(), sc)
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"third", "second", "first"}, order)
}

func TestCleanupErrorFailsRun(t *testing.T) {
	h := newHarness(t, nil, nil)
	ran := false

	sc := Scenario{
		Name: "cleanup-error",
		Run: func(ctx context.Context, env *Env) error {
			env.Defer("after", func(context.Context) error { ran = true; return nil })
			env.Defer("broken", func(context.Context) error { return errors.New("stuck") })
			return nil
		},
	}

	res := h.runner.Run(context.Background(), sc)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "stuck")
	assert.True(t, ran, "a failing cleanup must not skip earlier entries")
}

func TestCrossSeedConvergesForManySeeds(t *testing.T) {
	for seed := int64(1); seed <= 8; seed++ {
		h := newHarness(t, nil, func(o *Options) { o.OrderSeed = seed })

		res := h.runner.Run(context.Background(), mustScenario(t, "cross-seed"))
		require.NoError(t, res.Err, "seed %d", seed)
		assert.Equal(t, seed, res.OrderSeed)
	}
}

func TestGeneratedSecretAndSeed(t *testing.T) {
	h := newHarness(t, nil, func(o *Options) {
		o.Secret = ""
		o.OrderSeed = 0
	})

	var secret string
	sc := Scenario{
		Name: "secret",
		Run: func(ctx context.Context, env *Env) error {
			secret = env.Secret()
			return nil
		},
	}

	res := h.runner.Run(context.Background(), sc)
	require.NoError(t, res.Err)
	assert.Len(t, secret, 64)
	assert.NotZero(t, res.OrderSeed)
}

type memoryRecorder struct {
	records []journal.RunRecord
}

func (m *memoryRecorder) Record(rec journal.RunRecord) error {
	m.records = append(m.records, rec)
	return nil
}

func TestRunAllJournalsEveryRun(t *testing.T) {
	h := newHarness(t, nil, nil)
	rec := &memoryRecorder{}
	h.runner.WithRecorder(rec)
	h.rt.ExitOverrides = map[string]int{subject.CommandDeleteRemote: 1}

	results := h.runner.RunAll(context.Background(), []Scenario{
		mustScenario(t, "upload-download"),
		mustScenario(t, "missing-credentials"),
	})
	require.Len(t, results, 2)
	require.Len(t, rec.records, 2)

	assert.Equal(t, journal.OutcomeFail, rec.records[0].Outcome)
	assert.Equal(t, "CommandFailure", rec.records[0].Category)
	assert.Equal(t, "upload-download", rec.records[0].Scenario)
	assert.Equal(t, journal.OutcomePass, rec.records[1].Outcome)
	assert.Empty(t, rec.records[1].Category)
	assert.NotEmpty(t, rec.records[1].Steps)
}

func TestRunAllStopsOnCancel(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := h.runner.RunAll(ctx, Builtin())
	assert.Empty(t, results)
}

func TestNewRunnerValidates(t *testing.T) {
	_, err := NewRunner(nil, credentials.Static("a", "b"), Options{})
	assert.Error(t, err)
}
