package host

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/toejough/lambdafix/internal/fixture"
)

// Metafunc is handed to GenerateTests hooks for each collected test. Hooks
// parametrize it; every resulting call becomes one item.
type Metafunc struct {
	Function *TestFunc
	Node     Node

	// FixtureNames is the transitive closure of fixtures the test requests.
	FixtureNames []string

	// Defs maps each visible fixture name to its definitions, outermost first.
	Defs map[string][]*FixtureDef

	calls []*CallSpec
	empty bool
}

// CallSpec is one combination of parameter values for a test.
type CallSpec struct {
	// Funcargs are values substituted directly for fixtures.
	Funcargs map[string]any
	// Params are values handed to fixtures through their request.
	Params  map[string]any
	Indices map[string]int
	Scopes  map[string]fixture.Scope
	IDs     []string
}

// ParametrizeOption configures Metafunc.Parametrize.
type ParametrizeOption func(*parametrizeSettings)

// Indirect routes the values to the fixtures' requests instead of replacing
// the fixtures.
func Indirect() ParametrizeOption {
	return func(s *parametrizeSettings) { s.indirect = true }
}

// ParamIDFunc names each value.
func ParamIDFunc(fn func(any) string) ParametrizeOption {
	return func(s *parametrizeSettings) { s.idFunc = fn }
}

// ParamIDs names each parameter set; empty ids are generated.
func ParamIDs(ids ...string) ParametrizeOption {
	return func(s *parametrizeSettings) { s.ids = slices.Clone(ids) }
}

// ParamScope records the scope the values are bound at. Collection fails when
// a fixture of a wider scope depends on them.
func ParamScope(scope fixture.Scope) ParametrizeOption {
	return func(s *parametrizeSettings) { s.scope = scope }
}

// ID joins the ids of every parametrization applied.
func (c *CallSpec) ID() string {
	return strings.Join(c.IDs, "-")
}

// AddFixtureName adds name to the closure without the test itself
// requesting it. It reports whether the name was missing.
func (mf *Metafunc) AddFixtureName(name string) bool {
	if slices.Contains(mf.FixtureNames, name) {
		return false
	}

	mf.FixtureNames = append(mf.FixtureNames, name)

	return true
}

// Calls returns the parametrized calls so far.
func (mf *Metafunc) Calls() []*CallSpec {
	return slices.Clone(mf.calls)
}

// Parametrize multiplies the calls by sets, binding names to each set's
// values. Raw values are unpacked when there are several names.
func (mf *Metafunc) Parametrize(names []string, sets []any, opts ...ParametrizeOption) error {
	var settings parametrizeSettings
	for _, opt := range opts {
		opt(&settings)
	}

	if len(names) == 0 {
		return fmt.Errorf("%w: %s: no argument names", ErrInvalidParametrization, mf.Function.Name)
	}

	for _, name := range names {
		if !slices.Contains(mf.FixtureNames, name) {
			return fmt.Errorf("%w: in %q: %q", ErrUnusedArgument, mf.Function.Name, name)
		}
	}

	normalized := make([]fixture.ParamSet, len(sets))

	for i, raw := range sets {
		set, err := fixture.Normalize(raw, len(names))
		if err != nil {
			return fmt.Errorf("%w: %s set %d: %w", ErrInvalidParametrization, mf.Function.Name, i, err)
		}

		normalized[i] = set
	}

	if len(normalized) == 0 {
		mf.empty = true
	}

	ids := makeIDs(names, normalized, settings)

	base := mf.calls
	if len(base) == 0 {
		base = []*CallSpec{newCallSpec()}
	}

	next := make([]*CallSpec, 0, len(base)*len(normalized))

	for _, call := range base {
		for i, set := range normalized {
			spec := call.clone()

			for j, name := range names {
				if spec.has(name) {
					return fmt.Errorf("%w: %q in %s", ErrDuplicateParametrize, name, mf.Function.Name)
				}

				if settings.indirect {
					spec.Params[name] = set.Values[j]
				} else {
					spec.Funcargs[name] = set.Values[j]
				}

				spec.Indices[name] = i
				spec.Scopes[name] = settings.scope
			}

			spec.IDs = append(spec.IDs, ids[i])
			next = append(next, spec)
		}
	}

	mf.calls = next

	return nil
}

// Parametrized reports whether name is already bound by a parametrization.
func (mf *Metafunc) Parametrized(name string) bool {
	for _, call := range mf.calls {
		if call.has(name) {
			return true
		}
	}

	return false
}

type parametrizeSettings struct {
	indirect bool
	scope    fixture.Scope
	ids      []string
	idFunc   func(any) string
}

func (c *CallSpec) clone() *CallSpec {
	return &CallSpec{
		Funcargs: maps.Clone(c.Funcargs),
		Params:   maps.Clone(c.Params),
		Indices:  maps.Clone(c.Indices),
		Scopes:   maps.Clone(c.Scopes),
		IDs:      slices.Clone(c.IDs),
	}
}

func (c *CallSpec) has(name string) bool {
	_, direct := c.Funcargs[name]
	_, indirect := c.Params[name]

	return direct || indirect
}

// makeIDs names each set: its own id, then the ids option, then one id per
// value joined with "-". Duplicates get a numeric suffix.
func makeIDs(names []string, sets []fixture.ParamSet, settings parametrizeSettings) []string {
	ids := make([]string, len(sets))

	for i, set := range sets {
		switch {
		case set.ID != "":
			ids[i] = set.ID
		case i < len(settings.ids) && settings.ids[i] != "":
			ids[i] = settings.ids[i]
		default:
			parts := make([]string, len(set.Values))
			for j, value := range set.Values {
				parts[j] = valueID(names[j], i, value, settings.idFunc)
			}

			ids[i] = strings.Join(parts, "-")
		}
	}

	counts := make(map[string]int, len(ids))
	for _, id := range ids {
		counts[id]++
	}

	seen := make(map[string]int, len(ids))

	for i, id := range ids {
		if counts[id] > 1 {
			ids[i] = id + strconv.Itoa(seen[id])
			seen[id]++
		}
	}

	return ids
}

func newCallSpec() *CallSpec {
	return &CallSpec{
		Funcargs: map[string]any{},
		Params:   map[string]any{},
		Indices:  map[string]int{},
		Scopes:   map[string]fixture.Scope{},
	}
}

func valueID(name string, index int, value any, idFunc func(any) string) string {
	if idFunc != nil {
		if id := idFunc(value); id != "" {
			return id
		}
	}

	if value == nil {
		return "nil"
	}

	switch reflect.TypeOf(value).Kind() { //nolint:exhaustive // composite values get positional ids
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return fmt.Sprint(value)
	default:
		return name + strconv.Itoa(index)
	}
}
