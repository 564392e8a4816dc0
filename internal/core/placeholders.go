package core

import (
	"context"
	"fmt"

	"github.com/toejough/lambdafix/internal/fixture"
)

// Disabled declares a fixture whose use is an error in the current context.
// Requesting it fails with a DisabledFixtureError naming the fixture.
func Disabled(opts ...Option) (*Declaration, error) {
	build := fixture.Func{
		Name:   "build_disabled_fixture_error",
		Params: []string{fixture.RequestParam},
		Invoke: func(_ context.Context, args []any) (any, error) {
			return &DisabledFixtureError{Fixture: requestedName(args[0])}, nil
		},
	}

	return ErrorFixture(Spec(build), opts...)
}

// ErrorFixture declares a fixture that fails when used. build is a function
// target which may request fixtures and returns the error to fail with; a nil
// error makes the fixture yield nil instead.
func ErrorFixture(build Target, opts ...Option) (*Declaration, error) {
	switch build.(type) {
	case callTarget, specTarget:
	default:
		return nil, configErr("", "error fixtures need a function target, got %T", build)
	}

	buildFunc, err := build.build("error_fn", false)
	if err != nil {
		return nil, err
	}

	raise := fixture.Func{
		Name:   "raise_exception",
		Params: buildFunc.Params,
		Invoke: func(ctx context.Context, args []any) (any, error) {
			result, err := buildFunc.Invoke(ctx, args)
			if err != nil {
				return nil, err
			}

			if result == nil {
				return nil, nil
			}

			failure, ok := result.(error)
			if !ok {
				return nil, fmt.Errorf("%w: error fixture built %T, not an error", fixture.ErrArgumentType, result)
			}

			return nil, failure
		},
	}

	return Declare(Spec(raise), opts...)
}

// NotImplemented declares an abstract fixture which must be overridden before
// use. Requesting it fails with a NotImplementedFixtureError.
func NotImplemented(opts ...Option) (*Declaration, error) {
	build := fixture.Func{
		Name:   "build_not_implemented_fixture_error",
		Params: []string{fixture.RequestParam},
		Invoke: func(_ context.Context, args []any) (any, error) {
			return &NotImplementedFixtureError{Fixture: requestedName(args[0])}, nil
		},
	}

	return ErrorFixture(Spec(build), opts...)
}

// Static declares a fixture that always yields value.
func Static(value any, opts ...Option) (*Declaration, error) {
	return Declare(Spec(fixture.Value("static", value)), opts...)
}

func requestedName(arg any) string {
	if req, ok := arg.(fixture.Request); ok {
		return req.FixtureName()
	}

	return "<unknown>"
}
