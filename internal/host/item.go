package host

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/toejough/lambdafix/internal/fixture"
)

// SelfParam is the builtin fixture naming the test's class instance.
const SelfParam = "self"

// Item is one runnable test: a test function with one parametrization.
type Item struct {
	ID   string
	Test *TestFunc
	Node Node
	Skip string

	session  *Session
	names    []string
	defs     map[string][]*FixtureDef
	callspec *CallSpec
}

// CallSpec returns the parametrization the item runs with.
func (it *Item) CallSpec() *CallSpec {
	return it.callspec
}

// FixtureNames returns every fixture the item sets up.
func (it *Item) FixtureNames() []string {
	return append([]string(nil), it.names...)
}

// Run sets up every fixture in the item's closure and calls the test.
func (it *Item) Run(ctx context.Context, tb testing.TB) error {
	res := &resolver{
		item:   it,
		ctx:    ctx,
		tb:     tb,
		local:  make(map[*FixtureDef]any),
		active: make(map[*FixtureDef]bool),
	}

	for _, name := range it.names {
		if isBuiltin(name) {
			continue
		}

		_, err := res.lookup(name)
		if err != nil {
			return err
		}
	}

	args := make([]any, len(it.Test.Func.Params))

	for i, param := range it.Test.Func.Params {
		value, err := res.arg(param, it.Test.Name, "", -1)
		if err != nil {
			return err
		}

		args[i] = value
	}

	_, err := it.Test.Func.Call(ctx, args...)

	return err
}

type request struct {
	ctx      context.Context //nolint:containedctx // requests carry the running test's context
	name     string
	nodeID   string
	param    any
	hasParam bool
}

func (r *request) Context() context.Context {
	return r.ctx
}

func (r *request) FixtureName() string {
	return r.name
}

func (r *request) NodeID() string {
	return r.nodeID
}

func (r *request) Param() (any, bool) {
	return r.param, r.hasParam
}

// resolver computes fixture values for one item run.
type resolver struct {
	item     *Item
	ctx      context.Context //nolint:containedctx // scoped to one run
	tb       testing.TB
	local    map[*FixtureDef]any
	active   map[*FixtureDef]bool
	receiver any
	received bool
}

// arg produces the value for one param of the fixture or test named owner.
// index is the position of owner's definition, used when it requests its own
// name.
func (r *resolver) arg(param, owner, self string, index int) (any, error) {
	switch {
	case param == fixture.RequestParam:
		return r.request(owner), nil
	case param == fixture.TestingParam:
		return r.tb, nil
	case param == SelfParam:
		return r.instance(), nil
	case param == self:
		if _, ok := r.item.callspec.Funcargs[param]; ok {
			return r.item.callspec.Funcargs[param], nil
		}

		return r.lookupAt(param, index-1)
	default:
		return r.lookup(param)
	}
}

func (r *resolver) cacheKey(def *FixtureDef) cacheKey {
	key := cacheKey{def: def, params: r.paramKey(def)}

	switch r.item.session.scope(def) {
	case fixture.ScopeClass:
		key.scope = r.item.Node.NodeID()
	case fixture.ScopeModule:
		key.scope = r.item.Node.Module().NodeID()
	case fixture.ScopeSession, fixture.ScopeDefault, fixture.ScopeFunction:
	}

	return key
}

func (r *resolver) compute(def *FixtureDef, index int) (any, error) {
	if value, ok := r.local[def]; ok {
		return value, nil
	}

	shared := r.item.session.scope(def) != fixture.ScopeFunction
	key := r.cacheKey(def)

	if shared {
		if value, ok := r.item.session.load(key); ok {
			r.local[def] = value

			return value, nil
		}
	}

	if r.active[def] {
		return nil, fmt.Errorf("%w: %q", ErrRecursiveDependency, def.Name)
	}

	r.active[def] = true
	defer delete(r.active, def)

	args := make([]any, 0, len(def.Func.Params)+1)
	if def.Method() {
		args = append(args, r.instance())
	}

	for _, param := range def.Func.Params {
		value, err := r.arg(param, def.Name, def.Name, index)
		if err != nil {
			return nil, err
		}

		args = append(args, value)
	}

	r.item.session.log.WithFields(logrus.Fields{
		"fixture": def.Name,
		"item":    r.item.ID,
	}).Debug("setting up fixture")

	value, err := def.Func.Call(r.ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("fixture %q: %w", def.Name, err)
	}

	r.local[def] = value
	if shared {
		r.item.session.store(key, value)
	}

	return value, nil
}

func (r *resolver) instance() any {
	if !r.received {
		r.receiver = r.item.Node.Receiver()
		r.received = true
	}

	return r.receiver
}

func (r *resolver) lookup(name string) (any, error) {
	if value, ok := r.item.callspec.Funcargs[name]; ok {
		return value, nil
	}

	if isBuiltin(name) {
		return r.arg(name, r.item.Test.Name, "", -1)
	}

	return r.lookupAt(name, len(r.item.defs[name])-1)
}

func (r *resolver) lookupAt(name string, index int) (any, error) {
	chain := r.item.defs[name]
	if index < 0 || index >= len(chain) {
		return nil, fmt.Errorf("%w: %q (requested by %s)", ErrFixtureNotFound, name, r.item.ID)
	}

	return r.compute(chain[index], index)
}

// paramKey names the parameter set index of every parametrized fixture def
// depends on, itself included, so scoped values are cached per combination.
func (r *resolver) paramKey(def *FixtureDef) string {
	deps := r.item.session.closure(append([]string{def.Name}, def.Func.Params...), r.item.defs)

	var parts []string

	for _, name := range deps {
		if index, ok := r.item.callspec.Indices[name]; ok {
			parts = append(parts, name+"="+strconv.Itoa(index))
		}
	}

	slices.Sort(parts)

	return strings.Join(parts, ",")
}

func (r *resolver) request(name string) fixture.Request {
	param, ok := r.item.callspec.Params[name]

	return &request{ctx: r.ctx, name: name, nodeID: r.item.ID, param: param, hasParam: ok}
}

func isBuiltin(name string) bool {
	return name == fixture.RequestParam || name == fixture.TestingParam || name == SelfParam
}
