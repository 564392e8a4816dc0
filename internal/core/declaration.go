// Package core implements compact fixture declarations: proxies for fixtures
// whose implementation is a function, a reference to other fixtures by name,
// or the attribute name the declaration ends up under. Declarations are
// finalized during collection and handed to the host as fixture.Func values.
package core

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/toejough/lambdafix/internal/fixture"
)

// Declaration is a fixture declared by target rather than written out in
// full. It starts unresolved and becomes resolved either at construction (when
// the target is known) or when it is contributed to its owner.
type Declaration struct {
	target   Target
	bind     bool
	async    bool
	config   Config
	impl     fixture.Func
	resolved bool
	owner    Owner
	name     string
	source   *Declaration
	fanout   *Fanout
	children []*Declaration
}

// Owner is the module or class a declaration is assigned in.
type Owner interface {
	IsClass() bool
	Location() string
	OwnerName() string
	Receiver() any
}

// Declare creates a declaration for target. A nil target resolves to the
// attribute name at collection time, or, when Params is given, to the current
// parameter value.
func Declare(target Target, opts ...Option) (*Declaration, error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	decl := &Declaration{target: target, bind: s.bind, async: s.async, config: s.config}
	decl.impl = decl.placeholder()

	switch {
	case target != nil:
		err := decl.Resolve()
		if err != nil {
			return nil, err
		}

		if ref, ok := target.(refTarget); ok && len(ref.names) > 1 {
			decl.children = make([]*Declaration, 0, len(ref.names))

			for _, name := range ref.names {
				child, err := Declare(Ref(name))
				if err != nil {
					return nil, err
				}

				decl.children = append(decl.children, child)
			}
		}
	case decl.bind:
		return nil, configErr("", "bind requires a function target")
	case len(s.config.Params) > 0:
		fanout, err := newFanout(decl, s.config.Params)
		if err != nil {
			return nil, err
		}

		decl.fanout = fanout
		decl.impl = currentParam()
		decl.resolved = true
	}

	return decl, nil
}

// Bind reports whether the owning instance is passed as the first argument.
func (d *Declaration) Bind() bool {
	return d.bind
}

// Config returns the options to register the fixture with.
func (d *Declaration) Config() Config {
	cfg := d.config
	cfg.Params = slices.Clone(cfg.Params)
	cfg.IDs = slices.Clone(cfg.IDs)

	return cfg
}

// ContributeToParent finalizes the declaration as attribute name of owner.
// An implicit declaration resolves to the fixture of the same name, and
// destructured children stay unresolved since their values always come from
// parametrization. Contributing again under the same name, as happens for
// inherited attributes, is a no-op apart from the module-level bind check.
func (d *Declaration) ContributeToParent(owner Owner, name string) error {
	if d.bind && !owner.IsClass() {
		return &ConfigurationError{
			Fixture:  name,
			Location: owner.Location(),
			Reason:   "bind cannot be used at the module level; remove this option",
		}
	}

	if d.owner != nil {
		if d.name == name {
			return nil
		}

		return configErr(name, "already contributed to %s as %q", d.owner.OwnerName(), d.name)
	}

	d.name = name

	switch {
	case d.source != nil:
		d.impl = d.placeholder()
		d.resolved = false
	case !d.resolved:
		err := d.Resolve()
		if err != nil {
			return err
		}
	}

	d.impl.Name = name
	d.owner = owner

	return nil
}

// Fanout returns the iterator driving destructuring, if any.
func (d *Declaration) Fanout() *Fanout {
	return d.fanout
}

// FanoutSource returns the declaration this one was destructured from.
func (d *Declaration) FanoutSource() *Declaration {
	return d.source
}

// Func returns the resolved implementation, or a placeholder failing with
// ErrNotResolved.
func (d *Declaration) Func() fixture.Func {
	f := d.impl
	f.Params = slices.Clone(f.Params)

	return f
}

// Invoke calls the resolved implementation, prepending the owner's receiver
// when bound.
func (d *Declaration) Invoke(ctx context.Context, args ...any) (any, error) {
	if !d.resolved {
		return nil, fmt.Errorf("%w (%s)", ErrNotResolved, d.displayName())
	}

	if d.bind {
		if d.owner == nil {
			return nil, configErr(d.name, "bound declaration has no owner")
		}

		args = append([]any{d.owner.Receiver()}, args...)
	}

	return d.impl.Call(ctx, args...)
}

// IsAsync reports whether Awaitable results are awaited.
func (d *Declaration) IsAsync() bool {
	return d.async
}

// IsResolved reports whether the implementation is known.
func (d *Declaration) IsResolved() bool {
	return d.resolved
}

// Iter destructures the declaration: one child per referenced name for a
// tuple of names, one child per position for a parametrized declaration, and
// nothing otherwise.
func (d *Declaration) Iter() ([]*Declaration, error) {
	switch {
	case d.children != nil:
		return slices.Clone(d.children), nil
	case d.fanout != nil:
		return d.fanout.Iter()
	}

	return nil, nil
}

// Name returns the attribute name given at contribution.
func (d *Declaration) Name() string {
	return d.name
}

// Owner returns the module or class the declaration was contributed to.
func (d *Declaration) Owner() Owner {
	return d.owner
}

// RegisteredName returns the fixture name the host registers.
func (d *Declaration) RegisteredName() string {
	if d.config.Name != "" {
		return d.config.Name
	}

	return d.name
}

// Resolve turns the target into an implementation. It is idempotent, and a
// no-op for destructured children.
func (d *Declaration) Resolve() error {
	if d.resolved || d.source != nil {
		return nil
	}

	target := d.target
	if target == nil {
		if d.name == "" {
			return configErr("", "implicit fixture declarations resolve only once they have a name")
		}

		// Implicit declarations request the fixture of their own name, which
		// the host finds one scope out.
		target = Ref(d.name)
	}

	impl, err := target.build(d.displayName(), d.bind)
	if err != nil {
		var cfgErr *ConfigurationError
		if errors.As(err, &cfgErr) && cfgErr.Fixture == "" {
			cfgErr.Fixture = d.name
		}

		return err
	}

	switch target.(type) {
	case callTarget, specTarget:
		impl = d.insulate(impl)
	}

	d.impl = impl
	d.resolved = true

	return nil
}

func (d *Declaration) displayName() string {
	if d.name != "" {
		return d.name
	}

	return "<lambda-fixture>"
}

// insulate forwards to f under the same params, so renaming the result never
// touches f, and awaits Awaitable results of async declarations.
func (d *Declaration) insulate(f fixture.Func) fixture.Func {
	async := d.async

	return fixture.Func{
		Name:   f.Name,
		Params: slices.Clone(f.Params),
		Invoke: func(ctx context.Context, args []any) (any, error) {
			value, err := f.Invoke(ctx, args)
			if err != nil || !async {
				return value, err
			}

			return fixture.Await(ctx, value)
		},
	}
}

func (d *Declaration) placeholder() fixture.Func {
	return fixture.Func{
		Name: "<lambda-fixture>",
		Invoke: func(context.Context, []any) (any, error) {
			return nil, fmt.Errorf("%w (%s)", ErrNotResolved, d.displayName())
		},
	}
}

// currentParam yields the parameter value the host is running with.
func currentParam() fixture.Func {
	return fixture.Func{
		Name:   "<lambda-fixture>",
		Params: []string{fixture.RequestParam},
		Invoke: func(_ context.Context, args []any) (any, error) {
			req, ok := args[0].(fixture.Request)
			if !ok {
				return nil, fmt.Errorf("%w: expected a fixture.Request, got %T", fixture.ErrArgumentType, args[0])
			}

			value, _ := req.Param()

			return value, nil
		},
	}
}
