package core

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/toejough/lambdafix/internal/fixture"
)

// Wrapped calls the wrapped fixture. With no arguments it reuses the values
// the extension received for the wrapped fixture's params; any kwargs given
// override them.
type Wrapped func(overrides ...fixture.Kwargs) (any, error)

// WrapOption configures Wrap.
type WrapOption func(*wrapSettings)

// Ignore drops names from the wrapped fixture's params, so they are not
// requested from the host and must be passed as overrides instead.
func Ignore(names ...string) WrapOption {
	return func(s *wrapSettings) { s.ignore = append(s.ignore, names...) }
}

// WrappedParam names the param the extension receives the Wrapped callable
// under. The default is "wrapped".
func WrappedParam(name string) WrapOption {
	return func(s *wrapSettings) { s.wrappedParam = name }
}

// Wrap extends base with a decorated function. The result requests the
// decorated function's params (minus the wrapped param) first, then base's
// params (minus ignored ones), then the request, so the host still sees every
// real dependency. The decorated function receives a Wrapped callable for
// base under the wrapped param.
func Wrap(base fixture.Func, opts ...WrapOption) func(decorated fixture.Func) (fixture.Func, error) {
	s := wrapSettings{wrappedParam: defaultWrappedParam}
	for _, opt := range opts {
		opt(&s)
	}

	baseParams := make([]string, 0, len(base.Params))

	for _, param := range base.Params {
		if !slices.Contains(s.ignore, param) {
			baseParams = append(baseParams, param)
		}
	}

	return func(decorated fixture.Func) (fixture.Func, error) {
		if !decorated.Requests(s.wrappedParam) {
			return fixture.Func{}, fmt.Errorf(
				"%w: %s must include an arg named %s as the wrapped fixture func",
				ErrSignature, decorated.Name, s.wrappedParam)
		}

		decoratedParams := slices.DeleteFunc(slices.Clone(decorated.Params), func(p string) bool {
			return p == s.wrappedParam
		})

		all := slices.Clone(decoratedParams)
		for _, param := range append(slices.Clone(baseParams), fixture.RequestParam) {
			if !slices.Contains(all, param) {
				all = append(all, param)
			}
		}

		invoke := func(ctx context.Context, args []any) (any, error) {
			if len(args) != len(all) {
				return nil, fmt.Errorf("%w: %s expects %d args, got %d", fixture.ErrArity, decorated.Name, len(all), len(args))
			}

			given := make(fixture.Kwargs, len(all))
			for i, param := range all {
				given[param] = args[i]
			}

			if req, ok := given[fixture.RequestParam].(fixture.Request); ok && req.Context() != nil {
				ctx = req.Context()
			}

			baseArgs := pick(given, baseParams)
			decoratedArgs := pick(given, decoratedParams)

			decoratedArgs[s.wrappedParam] = Wrapped(func(overrides ...fixture.Kwargs) (any, error) {
				kwargs := maps.Clone(baseArgs)
				for _, override := range overrides {
					maps.Copy(kwargs, override)
				}

				return base.CallNamed(ctx, kwargs)
			})

			return decorated.CallNamed(ctx, decoratedArgs)
		}

		return fixture.Func{Name: decorated.Name, Params: all, Invoke: invoke}, nil
	}
}

// unexported constants.
const (
	defaultWrappedParam = "wrapped"
)

type wrapSettings struct {
	wrappedParam string
	ignore       []string
}

func pick(kwargs fixture.Kwargs, names []string) fixture.Kwargs {
	picked := make(fixture.Kwargs, len(names))
	for _, name := range names {
		picked[name] = kwargs[name]
	}

	return picked
}
