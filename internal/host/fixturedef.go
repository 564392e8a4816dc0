package host

import (
	"slices"

	"github.com/toejough/lambdafix/internal/fixture"
)

// FixtureDef is a registered fixture. Fixtures owned by a class receive the
// test's class instance as an implicit first argument to Func.
type FixtureDef struct {
	Name    string
	Func    fixture.Func
	Scope   fixture.Scope
	Autouse bool
	Params  []any
	IDs     []string
	IDFunc  func(any) string
	Owner   Node

	// Origin is whatever the fixture was converted from, for plugins to find
	// their own records again.
	Origin any
}

// DefOption configures a hand-written fixture.
type DefOption func(*FixtureDef)

// FixtureAutouse makes every test in scope request the fixture.
func FixtureAutouse() DefOption {
	return func(d *FixtureDef) { d.Autouse = true }
}

// FixtureIDs names the tests generated from the fixture's params.
func FixtureIDs(ids ...string) DefOption {
	return func(d *FixtureDef) { d.IDs = slices.Clone(ids) }
}

// FixtureParams parametrizes the fixture; it reads the current value from its
// request. No values at all skips every test using it.
func FixtureParams(values ...any) DefOption {
	return func(d *FixtureDef) { d.Params = append([]any{}, values...) }
}

// FixtureScope sets the caching scope.
func FixtureScope(scope fixture.Scope) DefOption {
	return func(d *FixtureDef) { d.Scope = scope }
}

// Method reports whether Func expects the class instance first.
func (d *FixtureDef) Method() bool {
	return d.Owner != nil && d.Owner.IsClass()
}

func newFixtureDef(name string, f fixture.Func, owner Node, opts []DefOption) *FixtureDef {
	def := &FixtureDef{Name: name, Func: f, Owner: owner}
	for _, opt := range opts {
		opt(def)
	}

	return def
}
