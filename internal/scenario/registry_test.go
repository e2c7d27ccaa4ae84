package scenario

import (
	"context"
	"testing"

	syncErrors "github.com/harunnryd/synccheck/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistryNames(t *testing.T) {
	names := DefaultRegistry().Names()
	assert.Equal(t, DefaultScenario, names[0])
	assert.ElementsMatch(t, []string{
		"upload-download",
		"idempotent-sync",
		"reset-completeness",
		"unmanaged-isolation",
		"missing-credentials",
		"symmetric-secret",
		"cross-seed",
	}, names)
}

func TestSelect(t *testing.T) {
	r := DefaultRegistry()

	selected, err := r.Select(nil, false)
	require.NoError(t, err)
	require.Len(t, selected, 1)
	assert.Equal(t, DefaultScenario, selected[0].Name)

	selected, err = r.Select([]string{"cross-seed", " upload-download ", "cross-seed", ""}, false)
	require.NoError(t, err)
	require.Len(t, selected, 2)
	assert.Equal(t, "cross-seed", selected[0].Name)
	assert.Equal(t, "upload-download", selected[1].Name)

	selected, err = r.Select(nil, true)
	require.NoError(t, err)
	assert.Len(t, selected, len(Builtin()))

	_, err = r.Select([]string{"nope"}, false)
	assert.ErrorIs(t, err, syncErrors.ErrNotFound)

	_, err = r.Select([]string{"cross-seed"}, true)
	assert.ErrorIs(t, err, syncErrors.ErrInvalidInput)
}

func TestRegisterRejectsDuplicatesAndEmpty(t *testing.T) {
	noop := func(context.Context, *Env) error { return nil }

	r, err := NewRegistry(Scenario{Name: "a", Run: noop})
	require.NoError(t, err)

	assert.ErrorIs(t, r.Register(Scenario{Name: "a", Run: noop}), syncErrors.ErrInvalidInput)
	assert.ErrorIs(t, r.Register(Scenario{Name: " ", Run: noop}), syncErrors.ErrInvalidInput)
	assert.ErrorIs(t, r.Register(Scenario{Name: "b"}), syncErrors.ErrInvalidInput)

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, syncErrors.ErrNotFound)
}

func TestGenerateSecretIsRandomHex(t *testing.T) {
	a, err := GenerateSecret()
	require.NoError(t, err)
	b, err := GenerateSecret()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Regexp(t, "^[0-9a-f]{64}$", a)
	assert.NotEqual(t, a, b)
}
