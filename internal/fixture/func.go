// Package fixture provides the descriptors shared by the fixture host and the
// declaration layer: callables with an explicit, ordered list of dependency
// names, parameter sets, fixture scopes and the request contract.
//
// A host decides what a fixture depends on by reading Func.Params. Everything
// that builds a Func (forwarders, aliases, wrappers) keeps that list exact so
// the host's dependency graph never goes blind.
package fixture

import (
	"context"
	"fmt"
	"reflect"
	"slices"
)

// Func is a callable together with the names of the fixtures it depends on.
// Invoke receives the dependency values in the order of Params.
type Func struct {
	Name   string
	Params []string
	Invoke func(ctx context.Context, args []any) (any, error)
}

// Adapt wraps a plain Go function so that its arguments are supplied by name.
// The function must take exactly len(params) arguments and return nothing, a
// value, an error, or a value and an error.
func Adapt(name string, fn any, params ...string) (Func, error) {
	return adapt(name, fn, 0, params)
}

// AdaptMethod is Adapt for functions that take an extra leading receiver
// argument which is not named in params. The host supplies the receiver.
func AdaptMethod(name string, fn any, params ...string) (Func, error) {
	return adapt(name, fn, 1, params)
}

// DropFirst returns a Func with the same declared params as f, whose Invoke
// expects one extra leading argument and discards it before calling f.
func DropFirst(name string, f Func) Func {
	return Func{
		Name:   name,
		Params: slices.Clone(f.Params),
		Invoke: func(ctx context.Context, args []any) (any, error) {
			if len(args) == 0 {
				return nil, fmt.Errorf("%w: %s expects a leading receiver argument", ErrArity, name)
			}

			return f.Call(ctx, args[1:]...)
		},
	}
}

// Identity returns a Func that requests each of names and returns their
// values unchanged: the value itself for a single name, or a []any tuple in
// order for several.
func Identity(name string, names ...string) Func {
	params := slices.Clone(names)

	return Func{
		Name:   name,
		Params: params,
		Invoke: func(_ context.Context, args []any) (any, error) {
			if len(args) != len(params) {
				return nil, fmt.Errorf("%w: %s expects %d args, got %d", ErrArity, name, len(params), len(args))
			}

			if len(args) == 1 {
				return args[0], nil
			}

			return slices.Clone(args), nil
		},
	}
}

// Value returns a Func with no dependencies which always returns v.
func Value(name string, v any) Func {
	return Func{
		Name: name,
		Invoke: func(context.Context, []any) (any, error) {
			return v, nil
		},
	}
}

// Call invokes f with positional args.
func (f Func) Call(ctx context.Context, args ...any) (any, error) {
	if f.Invoke == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoImplementation, f.Name)
	}

	return f.Invoke(ctx, args)
}

// CallNamed invokes f, picking each declared param out of kwargs.
func (f Func) CallNamed(ctx context.Context, kwargs Kwargs) (any, error) {
	args := make([]any, len(f.Params))

	for i, param := range f.Params {
		value, ok := kwargs[param]
		if !ok {
			return nil, fmt.Errorf("%w: %q for %s", ErrMissingArgument, param, f.Name)
		}

		args[i] = value
	}

	return f.Call(ctx, args...)
}

// Requests reports whether name is one of f's declared params.
func (f Func) Requests(name string) bool {
	return slices.Contains(f.Params, name)
}

// Kwargs maps fixture names to values.
type Kwargs map[string]any

// unexported variables.
var (
	//nolint:gochecknoglobals // cached reflect type
	errorType = reflect.TypeFor[error]()
)

func adapt(name string, fn any, leading int, params []string) (Func, error) {
	fnVal := reflect.ValueOf(fn)
	if !fnVal.IsValid() || fnVal.Kind() != reflect.Func || fnVal.IsNil() {
		return Func{}, fmt.Errorf("%w: got %T", ErrNotFunc, fn)
	}

	fnType := fnVal.Type()
	if fnType.IsVariadic() {
		return Func{}, fmt.Errorf("%w: %s is variadic", ErrArity, name)
	}

	want := len(params) + leading
	if fnType.NumIn() != want {
		return Func{}, fmt.Errorf("%w: %s takes %d args but %d were named", ErrArity, name, fnType.NumIn(), want)
	}

	if err := checkResults(fnType); err != nil {
		return Func{}, fmt.Errorf("%s: %w", name, err)
	}

	invoke := func(_ context.Context, args []any) (any, error) {
		if len(args) != fnType.NumIn() {
			return nil, fmt.Errorf("%w: %s expects %d args, got %d", ErrArity, name, fnType.NumIn(), len(args))
		}

		rArgs := make([]reflect.Value, len(args))

		for i, arg := range args {
			rArg, err := argValue(arg, fnType.In(i))
			if err != nil {
				return nil, fmt.Errorf("%s arg %d: %w", name, i, err)
			}

			rArgs[i] = rArg
		}

		return unpackResults(fnVal.Call(rArgs))
	}

	return Func{Name: name, Params: slices.Clone(params), Invoke: invoke}, nil
}

// argValue converts arg to a reflect.Value usable as a parameter of type want.
func argValue(arg any, want reflect.Type) (reflect.Value, error) {
	if arg == nil {
		return reflect.Zero(want), nil
	}

	rArg := reflect.ValueOf(arg)

	switch {
	case rArg.Type().AssignableTo(want):
		return rArg, nil
	case rArg.Type().ConvertibleTo(want) && rArg.Kind() != reflect.String && want.Kind() != reflect.String:
		return rArg.Convert(want), nil
	}

	return reflect.Value{}, fmt.Errorf("%w: cannot use %T as %s", ErrArgumentType, arg, want)
}

func checkResults(fnType reflect.Type) error {
	switch fnType.NumOut() {
	case 0, 1:
		return nil
	case 2: //nolint:mnd // value, error
		if fnType.Out(1) == errorType {
			return nil
		}
	}

	return fmt.Errorf("%w: %s", ErrUnsupportedResults, fnType)
}

func unpackResults(results []reflect.Value) (any, error) {
	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		if results[0].Type() == errorType {
			return nil, asError(results[0])
		}

		return results[0].Interface(), nil
	default:
		return results[0].Interface(), asError(results[1])
	}
}

func asError(v reflect.Value) error {
	if v.IsNil() {
		return nil
	}

	err, _ := v.Interface().(error)

	return err
}
