package core

import (
	"fmt"
	"slices"
	"strings"

	"github.com/toejough/lambdafix/internal/fixture"
)

// Fanout destructures a parametrized declaration into one child per position
// of its parameter sets. The first set decides the arity; every other set must
// agree with it.
type Fanout struct {
	source   *Declaration
	sets     []any
	arity    int
	children []*Declaration
	iterated bool
}

// Arity returns the number of children the declaration destructures into.
func (f *Fanout) Arity() int {
	return f.arity
}

// ChildNames returns the registered names of the children in creation order.
// Names are only known once the children have been contributed.
func (f *Fanout) ChildNames() []string {
	names := make([]string, len(f.children))
	for i, child := range f.children {
		names[i] = child.RegisteredName()
	}

	return names
}

// ContributedNames returns ChildNames, failing when a child was never
// assigned to an attribute.
func (f *Fanout) ContributedNames() ([]string, error) {
	names := f.ChildNames()

	for i, name := range names {
		if name != "" {
			continue
		}

		assigned := slices.DeleteFunc(slices.Clone(names), func(n string) bool { return n == "" })

		return nil, &ConfigurationError{
			Fixture: strings.Join(assigned, ", "),
			Reason: fmt.Sprintf("destructured fixture %d of %d was never assigned to an attribute",
				i+1, len(names)),
		}
	}

	return names, nil
}

// Children returns the children produced so far.
func (f *Fanout) Children() []*Declaration {
	return slices.Clone(f.children)
}

// Iter produces the children. It may only be called once.
func (f *Fanout) Iter() ([]*Declaration, error) {
	if f.iterated {
		return nil, ErrDestructure
	}

	f.iterated = true

	for range f.arity {
		child := &Declaration{source: f.source}
		child.impl = child.placeholder()
		f.children = append(f.children, child)
	}

	return slices.Clone(f.children), nil
}

// ParamSets returns the parameter sets normalized to the arity.
func (f *Fanout) ParamSets() []fixture.ParamSet {
	sets := make([]fixture.ParamSet, len(f.sets))
	for i, raw := range f.sets {
		// validated in newFanout
		sets[i], _ = fixture.Normalize(raw, f.arity)
	}

	return sets
}

// Source returns the declaration the children were destructured from.
func (f *Fanout) Source() *Declaration {
	return f.source
}

func newFanout(source *Declaration, sets []any) (*Fanout, error) {
	fanout := &Fanout{source: source, sets: slices.Clone(sets)}
	if len(sets) == 0 {
		return fanout, nil
	}

	fanout.arity = fixture.Width(sets[0])

	for i, raw := range sets {
		_, err := fixture.Normalize(raw, fanout.arity)
		if err != nil {
			return nil, configErr("", "parameter set %d does not match the %d values of the first set: %v",
				i, fanout.arity, err)
		}
	}

	return fanout, nil
}
