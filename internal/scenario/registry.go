package scenario

import (
	"fmt"
	"strings"

	syncErrors "github.com/harunnryd/synccheck/internal/errors"

	"github.com/samber/lo"
)

// DefaultScenario runs when no scenario is named.
const DefaultScenario = "upload-download"

type Registry struct {
	scenarios []Scenario
}

func NewRegistry(scenarios ...Scenario) (*Registry, error) {
	r := &Registry{}
	for _, sc := range scenarios {
		if err := r.Register(sc); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// DefaultRegistry holds the built-in scenarios.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(Builtin()...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Register(sc Scenario) error {
	name := strings.TrimSpace(sc.Name)
	if name == "" {
		return syncErrors.InvalidInput("scenario name is empty")
	}
	if sc.Run == nil {
		return syncErrors.InvalidInput(fmt.Sprintf("scenario %q has no steps", name))
	}
	if _, found := r.find(name); found {
		return syncErrors.InvalidInput(fmt.Sprintf("scenario %q already registered", name))
	}
	r.scenarios = append(r.scenarios, sc)
	return nil
}

func (r *Registry) Get(name string) (Scenario, error) {
	sc, found := r.find(strings.TrimSpace(name))
	if !found {
		return Scenario{}, syncErrors.NotFound(fmt.Sprintf("scenario %q (known: %s)", name, strings.Join(r.Names(), ", ")))
	}
	return sc, nil
}

// List returns scenarios in registration order.
func (r *Registry) List() []Scenario {
	return append([]Scenario(nil), r.scenarios...)
}

func (r *Registry) Names() []string {
	return lo.Map(r.scenarios, func(sc Scenario, _ int) string { return sc.Name })
}

// Select resolves names to scenarios, keeping first-mention order and dropping repeats.
// all selects every scenario; no names selects DefaultScenario.
func (r *Registry) Select(names []string, all bool) ([]Scenario, error) {
	if all {
		if len(names) > 0 {
			return nil, syncErrors.InvalidInput("scenario names cannot be combined with --all")
		}
		return r.List(), nil
	}

	names = lo.Uniq(lo.Compact(lo.Map(names, func(n string, _ int) string { return strings.TrimSpace(n) })))
	if len(names) == 0 {
		names = []string{DefaultScenario}
	}

	unknown := lo.Without(names, r.Names()...)
	if len(unknown) > 0 {
		return nil, syncErrors.NotFound(fmt.Sprintf("scenario %s (known: %s)", strings.Join(unknown, ", "), strings.Join(r.Names(), ", ")))
	}

	return lo.Map(names, func(n string, _ int) Scenario {
		sc, _ := r.find(n)
		return sc
	}), nil
}

func (r *Registry) find(name string) (Scenario, bool) {
	return lo.Find(r.scenarios, func(sc Scenario) bool { return sc.Name == name })
}
