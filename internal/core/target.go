package core

import (
	"slices"

	"github.com/toejough/lambdafix/internal/fixture"
)

// Target is what a declaration forwards to: a function, one or more other
// fixtures by name, or a prebuilt fixture.Func. A nil Target defers to the
// name of the attribute holding the declaration.
type Target interface {
	build(name string, bind bool) (fixture.Func, error)
}

// Call targets a plain Go function whose arguments are the fixtures named in
// params, in order. With Bind, fn takes the owning instance as an extra
// leading argument.
func Call(fn any, params ...string) Target {
	return callTarget{fn: fn, params: slices.Clone(params)}
}

// Ref targets other fixtures by name. One name aliases that fixture; several
// names produce their values as an ordered []any.
func Ref(names ...string) Target {
	return refTarget{names: slices.Clone(names)}
}

// Spec targets a prebuilt fixture.Func. It cannot be combined with Bind.
func Spec(f fixture.Func) Target {
	return specTarget{f: f}
}

type callTarget struct {
	fn     any
	params []string
}

func (t callTarget) build(name string, bind bool) (fixture.Func, error) {
	if bind {
		return fixture.AdaptMethod(name, t.fn, t.params...)
	}

	return fixture.Adapt(name, t.fn, t.params...)
}

type refTarget struct {
	names []string
}

func (t refTarget) build(_ string, bind bool) (fixture.Func, error) {
	if bind {
		return fixture.Func{}, configErr("", "bind must be false if requesting a fixture by name")
	}

	if len(t.names) == 0 || slices.Contains(t.names, "") {
		return fixture.Func{}, configErr("", "if specified, all fixture names must be non-empty")
	}

	return fixture.Identity(identityName(t.names), t.names...), nil
}

type specTarget struct {
	f fixture.Func
}

func (t specTarget) build(name string, bind bool) (fixture.Func, error) {
	if bind {
		return fixture.Func{}, configErr(name, "bind must be false for a prebuilt fixture func; use Call instead")
	}

	if t.f.Invoke == nil {
		return fixture.Func{}, configErr(name, "fixture func has no implementation")
	}

	return t.f, nil
}

func identityName(names []string) string {
	name := "fixture"
	for _, n := range names {
		name += "__" + n
	}

	return name
}
