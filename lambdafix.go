// Package lambdafix declares test fixtures compactly: as a call of a plain
// function, as an alias of other fixtures, as a parametrized value that can be
// destructured into several fixtures, or implicitly by the attribute name it
// is assigned to. Declarations are assigned into modules and classes and
// turned into real fixtures when a session collects them.
//
// This is the public API entry point. Implementation lives in internal/.
package lambdafix

import (
	"io"
	"os"
	"testing"

	"github.com/toejough/lambdafix/internal/config"
	"github.com/toejough/lambdafix/internal/core"
	"github.com/toejough/lambdafix/internal/fixture"
	"github.com/toejough/lambdafix/internal/host"
	"github.com/toejough/lambdafix/internal/plugin"
)

// Awaitable is a value whose result arrives later.
type Awaitable = fixture.Awaitable

// Class is a node nested in a module or another class.
type Class = host.Class

// Config holds session settings.
type Config = config.Config

// ConfigurationError reports an invalid combination of declaration options.
type ConfigurationError = core.ConfigurationError

// Declaration is a fixture declared by target rather than written out in full.
type Declaration = core.Declaration

// DisabledFixtureError is raised when a disabled fixture is requested.
type DisabledFixtureError = core.DisabledFixtureError

// FixtureFunc is a callable together with the names of the fixtures it
// depends on.
type FixtureFunc = fixture.Func

// Future is an Awaitable fed by a single goroutine.
type Future[T any] = fixture.Future[T]

// Kwargs maps fixture names to values.
type Kwargs = fixture.Kwargs

// Module is the outermost node, the equivalent of one test file.
type Module = host.Module

// Node is a module or class.
type Node = host.Node

// NotImplementedFixtureError is raised when an abstract fixture is requested
// without having been overridden.
type NotImplementedFixtureError = core.NotImplementedFixtureError

// Option configures a declaration.
type Option = core.Option

// ParamSet is one row of parametrization values.
type ParamSet = fixture.ParamSet

// Request describes the fixture currently being computed.
type Request = fixture.Request

// Scope controls how long a fixture's value is cached.
type Scope = fixture.Scope

// Session collects and runs the tests of its modules.
type Session = host.Session

// Target is what a declaration forwards to.
type Target = core.Target

// WrapOption configures Wrap.
type WrapOption = core.WrapOption

// Wrapped calls the fixture an extension wraps.
type Wrapped = core.Wrapped

// Scopes.
const (
	ScopeDefault  = fixture.ScopeDefault
	ScopeFunction = fixture.ScopeFunction
	ScopeClass    = fixture.ScopeClass
	ScopeModule   = fixture.ScopeModule
	ScopeSession  = fixture.ScopeSession
)

// Exported variables.
var (
	ErrConfiguration         = core.ErrConfiguration
	ErrDestructure           = core.ErrDestructure
	ErrDisabledFixture       = core.ErrDisabledFixture
	ErrNotImplementedFixture = core.ErrNotImplementedFixture
	ErrNotResolved           = core.ErrNotResolved
	ErrSignature             = core.ErrSignature
	ErrFixtureNotFound       = host.ErrFixtureNotFound
	ErrRecursiveDependency   = host.ErrRecursiveDependency
	ErrArgumentType          = fixture.ErrArgumentType
)

// Adapt wraps a plain Go function whose arguments are the fixtures named in
// params.
func Adapt(name string, fn any, params ...string) (FixtureFunc, error) {
	return fixture.Adapt(name, fn, params...)
}

// Async makes the declaration wait on Awaitable results.
func Async() Option {
	return core.Async()
}

// Autouse makes every test in the declaring scope request the fixture.
func Autouse() Option {
	return core.Autouse()
}

// Bind passes the owning class instance as the first argument of a function
// target.
func Bind() Option {
	return core.Bind()
}

// Declare creates a declaration, reporting misconfiguration as an error.
func Declare(target Target, opts ...Option) (*Declaration, error) {
	return core.Declare(target, opts...)
}

// Disabled declares a fixture whose use fails with a DisabledFixtureError.
func Disabled(opts ...Option) *Declaration {
	return must(core.Disabled(opts...))
}

// ErrorFixture declares a fixture failing with the error build returns.
func ErrorFixture(build Target, opts ...Option) *Declaration {
	return must(core.ErrorFixture(build, opts...))
}

// Fixture is Declare for package-level declarations: it panics on
// misconfiguration.
func Fixture(target Target, opts ...Option) *Declaration {
	return must(core.Declare(target, opts...))
}

// Func targets a plain Go function whose arguments are the fixtures named in
// params.
func Func(fn any, params ...string) Target {
	return core.Call(fn, params...)
}

// Go runs fn in a new goroutine and returns a Future for its result.
func Go[T any](fn func() (T, error)) *Future[T] {
	return fixture.Go(fn)
}

// IDFunc names generated tests from each parameter value.
func IDFunc(fn func(any) string) Option {
	return core.IDFunc(fn)
}

// IDs names generated tests, one id per parameter set.
func IDs(ids ...string) Option {
	return core.IDs(ids...)
}

// Ignore drops names from the wrapped fixture's params.
func Ignore(names ...string) WrapOption {
	return core.Ignore(names...)
}

// LoadStatic declares one static fixture per top-level key of the YAML
// mapping read from r and assigns them into node.
func LoadStatic(node Node, r io.Reader, opts ...Option) error {
	return core.LoadStatic(node, r, opts...)
}

// MustAdapt is Adapt for test bodies and fixtures built at package level.
func MustAdapt(name string, fn any, params ...string) FixtureFunc {
	f, err := fixture.Adapt(name, fn, params...)
	if err != nil {
		panic(err)
	}

	return f
}

// Name registers the fixture under name instead of its attribute name.
func Name(name string) Option {
	return core.Name(name)
}

// NewModule creates an empty module.
func NewModule(name string) *Module {
	return host.NewModule(name)
}

// NotImplemented declares an abstract fixture whose use fails with a
// NotImplementedFixtureError until it is overridden.
func NotImplemented(opts ...Option) *Declaration {
	return must(core.NotImplemented(opts...))
}

// Param builds a parameter set from values.
func Param(values ...any) ParamSet {
	return fixture.Param(values...)
}

// Params parametrizes the fixture.
func Params(values ...any) Option {
	return core.Params(values...)
}

// Ready returns an already completed Future holding v.
func Ready[T any](v T) *Future[T] {
	return fixture.Ready(v)
}

// Ref targets other fixtures by name.
func Ref(names ...string) Target {
	return core.Ref(names...)
}

// Spec targets a prebuilt FixtureFunc.
func Spec(f FixtureFunc) Target {
	return core.Spec(f)
}

// Static declares a fixture that always yields value.
func Static(value any, opts ...Option) *Declaration {
	return must(core.Static(value, opts...))
}

// WithScope sets the caching scope of the fixture.
func WithScope(scope Scope) Option {
	return core.WithScope(scope)
}

// Wrap extends base with a decorated function that receives base as a
// Wrapped callable.
func Wrap(base FixtureFunc, opts ...WrapOption) func(decorated FixtureFunc) (FixtureFunc, error) {
	return core.Wrap(base, opts...)
}

// WrappedParam names the param the extension receives the Wrapped callable
// under.
func WrappedParam(name string) WrapOption {
	return core.WrappedParam(name)
}

// SessionOption configures NewSession.
type SessionOption func(*sessionSettings)

// WithConfig uses cfg instead of the environment.
func WithConfig(cfg Config) SessionOption {
	return func(s *sessionSettings) {
		s.config = cfg
		s.configured = true
	}
}

// WithConftest adds modules whose fixtures every test module sees.
func WithConftest(modules ...*Module) SessionOption {
	return func(s *sessionSettings) { s.conftests = append(s.conftests, modules...) }
}

// WithLogOutput sends session logs to out instead of stderr.
func WithLogOutput(out io.Writer) SessionOption {
	return func(s *sessionSettings) { s.out = out }
}

// NewSession creates a session with the declaration plugin installed,
// configured from the environment unless WithConfig is given.
func NewSession(opts ...SessionOption) (*Session, error) {
	settings := sessionSettings{out: os.Stderr}
	for _, opt := range opts {
		opt(&settings)
	}

	cfg := settings.config
	if !settings.configured {
		var err error

		cfg, err = config.FromEnv()
		if err != nil {
			return nil, err
		}
	}

	log, err := cfg.Logger(settings.out)
	if err != nil {
		return nil, err
	}

	scope, err := cfg.Scope()
	if err != nil {
		return nil, err
	}

	session := host.NewSession(
		host.WithLogger(log),
		host.WithDefaultScope(scope),
		host.WithPlugins(plugin.New(log)),
	)
	session.AddConftest(settings.conftests...)

	return session, nil
}

// Run collects modules in the session registered for t and runs each test as
// a subtest of t.
func Run(t *testing.T, modules ...*Module) {
	t.Helper()

	session := SessionFor(t)
	session.AddModule(modules...)
	session.Run(t)
}

type sessionSettings struct {
	config     Config
	configured bool
	conftests  []*Module
	out        io.Writer
}

func must(decl *Declaration, err error) *Declaration {
	if err != nil {
		panic(err)
	}

	return decl
}
