package core

import (
	"slices"

	"github.com/toejough/lambdafix/internal/fixture"
)

// Config holds the options handed on to the host when a declaration is
// registered as a fixture.
type Config struct {
	Scope   fixture.Scope
	Autouse bool
	Params  []any
	IDs     []string
	IDFunc  func(any) string
	Name    string
}

// Option configures a declaration.
type Option func(*settings)

// Async makes the declaration wait on Awaitable results before returning them.
func Async() Option {
	return func(s *settings) { s.async = true }
}

// Autouse makes every test in the declaring scope request the fixture.
func Autouse() Option {
	return func(s *settings) { s.config.Autouse = true }
}

// Bind passes the owning class instance as the first argument of a function
// target.
func Bind() Option {
	return func(s *settings) { s.bind = true }
}

// IDFunc names generated tests from each parameter value.
func IDFunc(fn func(any) string) Option {
	return func(s *settings) { s.config.IDFunc = fn }
}

// IDs names generated tests, one id per parameter set. Empty ids fall back to
// generated ones.
func IDs(ids ...string) Option {
	return func(s *settings) { s.config.IDs = slices.Clone(ids) }
}

// Name registers the fixture under name instead of its attribute name.
func Name(name string) Option {
	return func(s *settings) { s.config.Name = name }
}

// Params parametrizes the fixture. Each value is a raw value or a
// fixture.ParamSet. Without a target the fixture yields the current value, and
// the declaration can be destructured into one child per position.
func Params(values ...any) Option {
	return func(s *settings) { s.config.Params = slices.Clone(values) }
}

// WithScope sets the caching scope of the fixture.
func WithScope(scope fixture.Scope) Option {
	return func(s *settings) { s.config.Scope = scope }
}

type settings struct {
	bind   bool
	async  bool
	config Config
}
