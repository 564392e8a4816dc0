// Package host is a small fixture-injection test host: modules and classes
// hold fixtures and tests, fixtures are found by parameter name through the
// enclosing scopes, tests are parametrized through a Metafunc, and each
// resulting item runs as a subtest. Plugins hook into collection and
// parametrization.
package host

import (
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/toejough/lambdafix/internal/fixture"
)

// CollectStartHook is called for every module before its tests are collected.
type CollectStartHook interface {
	CollectStart(module *Module) error
}

// MakeItemHook is called for every class discovered in a module or class.
type MakeItemHook interface {
	MakeItem(class *Class) error
}

// GenerateTestsHook is called for every collected test.
type GenerateTestsHook interface {
	GenerateTests(mf *Metafunc) error
}

// TryFirstHook marks a plugin whose hooks run before the others.
type TryFirstHook interface {
	TryFirst() bool
}

// Session collects and runs the tests of its modules.
type Session struct {
	log          *logrus.Logger
	defaultScope fixture.Scope
	plugins      []any
	conftests    []*Module
	modules      []*Module

	cacheMu sync.Mutex
	cache   map[cacheKey]any
}

// Option configures a Session.
type Option func(*Session)

// WithDefaultScope sets the scope of fixtures declared without one.
func WithDefaultScope(scope fixture.Scope) Option {
	return func(s *Session) { s.defaultScope = scope }
}

// WithLogger sets the session logger.
func WithLogger(log *logrus.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithPlugins registers plugins. A plugin implements any of the hook
// interfaces.
func WithPlugins(plugins ...any) Option {
	return func(s *Session) { s.plugins = append(s.plugins, plugins...) }
}

// NewSession creates a session.
func NewSession(opts ...Option) *Session {
	session := &Session{
		defaultScope: fixture.ScopeFunction,
		cache:        make(map[cacheKey]any),
	}

	for _, opt := range opts {
		opt(session)
	}

	if session.log == nil {
		session.log = logrus.New()
		session.log.SetLevel(logrus.WarnLevel)
	}

	if session.defaultScope == fixture.ScopeDefault {
		session.defaultScope = fixture.ScopeFunction
	}

	slices.SortStableFunc(session.plugins, func(a, b any) int {
		return tryFirstRank(a) - tryFirstRank(b)
	})

	return session
}

// AddConftest adds a module whose fixtures are visible to every module and
// whose tests are not collected.
func (s *Session) AddConftest(modules ...*Module) {
	s.conftests = append(s.conftests, modules...)
}

// AddModule adds test modules.
func (s *Session) AddModule(modules ...*Module) {
	s.modules = append(s.modules, modules...)
}

// Collect runs the collection hooks over every module and class, then
// generates the items of every test. Any collection error fails the whole
// collection before anything runs.
func (s *Session) Collect() ([]*Item, error) {
	var errs *multierror.Error

	for _, module := range slices.Concat(s.conftests, s.modules) {
		errs = multierror.Append(errs, s.collectModule(module))
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCollection, err)
	}

	var items []*Item

	for _, module := range s.modules {
		for _, test := range module.Tests() {
			generated, err := s.generate(module, test)
			errs = multierror.Append(errs, err)
			items = append(items, generated...)
		}

		for _, class := range module.Classes() {
			generated, err := s.generateClass(class)
			errs = multierror.Append(errs, err)
			items = append(items, generated...)
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCollection, err)
	}

	return items, nil
}

// Logger returns the session logger.
func (s *Session) Logger() *logrus.Logger {
	return s.log
}

// Run collects and runs every item as a subtest of t.
func (s *Session) Run(t *testing.T) {
	t.Helper()

	items, err := s.Collect()
	if err != nil {
		t.Fatal(err)
	}

	for _, item := range items {
		t.Run(item.ID, func(t *testing.T) {
			if item.Skip != "" {
				t.Skip(item.Skip)
			}

			err := item.Run(t.Context(), t)
			if err != nil {
				t.Fatal(err)
			}
		})
	}
}

type cacheKey struct {
	def    *FixtureDef
	scope  string
	params string
}

// chain returns the nodes whose fixtures node can see, outermost first.
func (s *Session) chain(node Node) []Node {
	var nodes []Node
	for n := node; n != nil; n = n.Parent() {
		nodes = append(nodes, n)
	}

	for _, conftest := range slices.Backward(s.conftests) {
		nodes = append(nodes, conftest)
	}

	slices.Reverse(nodes)

	return nodes
}

func (s *Session) collectClass(class *Class) error {
	var errs *multierror.Error

	for _, hook := range s.plugins {
		if h, ok := hook.(MakeItemHook); ok {
			errs = multierror.Append(errs, h.MakeItem(class))
		}
	}

	for _, nested := range class.Classes() {
		errs = multierror.Append(errs, s.collectClass(nested))
	}

	return errs.ErrorOrNil()
}

func (s *Session) collectModule(module *Module) error {
	s.log.WithField("module", module.Name()).Debug("collecting module")

	var errs *multierror.Error

	for _, hook := range s.plugins {
		if h, ok := hook.(CollectStartHook); ok {
			errs = multierror.Append(errs, h.CollectStart(module))
		}
	}

	for _, class := range module.Classes() {
		errs = multierror.Append(errs, s.collectClass(class))
	}

	return errs.ErrorOrNil()
}

// checkScopes rejects a fixture that depends on values parametrized at a
// narrower scope than its own. Parametrizations without a scope never
// mismatch.
func (s *Session) checkScopes(mf *Metafunc) error {
	if len(mf.calls) == 0 {
		return nil
	}

	call := mf.calls[0]

	for _, name := range mf.FixtureNames {
		chain := mf.Defs[name]
		if len(chain) == 0 {
			continue
		}

		if _, ok := call.Funcargs[name]; ok {
			continue
		}

		def := chain[len(chain)-1]
		scope := s.scope(def)

		for _, dep := range s.closure(def.Func.Params, mf.Defs) {
			bound, ok := call.Scopes[dep]
			if ok && bound != fixture.ScopeDefault && bound < scope {
				return fmt.Errorf("%w: %s fixture %q depends on %q parametrized at %s scope",
					ErrScopeMismatch, scope, name, dep, bound)
			}
		}
	}

	return nil
}

// closure adds, transitively, every fixture the initial names depend on. A
// fixture requesting its own name also pulls in the dependencies of the next
// definition out.
func (s *Session) closure(initial []string, defs map[string][]*FixtureDef) []string {
	var names []string

	for _, name := range initial {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}

	for i := 0; i < len(names); i++ {
		name := names[i]
		chain := defs[name]

		for j := len(chain) - 1; j >= 0; j-- {
			for _, param := range chain[j].Func.Params {
				if !slices.Contains(names, param) {
					names = append(names, param)
				}
			}

			if !chain[j].Func.Requests(name) {
				break
			}
		}
	}

	return names
}

// fixtureParams parametrizes, indirectly, every fixture in the closure that
// declares params and is not already bound by a parametrization.
func (s *Session) fixtureParams(mf *Metafunc) error {
	for _, name := range mf.FixtureNames {
		if mf.Parametrized(name) {
			continue
		}

		chain := mf.Defs[name]
		for j := len(chain) - 1; j >= 0; j-- {
			def := chain[j]

			if def.Params != nil {
				err := mf.Parametrize([]string{name}, def.Params,
					Indirect(), ParamScope(def.Scope), ParamIDs(def.IDs...), ParamIDFunc(def.IDFunc))
				if err != nil {
					return err
				}

				break
			}

			if !def.Func.Requests(name) {
				break
			}
		}
	}

	return nil
}

func (s *Session) generate(node Node, test *TestFunc) ([]*Item, error) {
	chain := s.chain(node)
	defs := visibleDefs(chain)

	initial := autouseNames(chain)
	initial = append(initial, test.Func.Params...)

	mf := &Metafunc{
		Function:     test,
		Node:         node,
		FixtureNames: s.closure(initial, defs),
		Defs:         defs,
	}

	for _, hook := range s.plugins {
		if h, ok := hook.(GenerateTestsHook); ok {
			err := h.GenerateTests(mf)
			if err != nil {
				return nil, fmt.Errorf("%s::%s: %w", node.NodeID(), test.Name, err)
			}
		}
	}

	err := s.fixtureParams(mf)
	if err != nil {
		return nil, fmt.Errorf("%s::%s: %w", node.NodeID(), test.Name, err)
	}

	err = s.checkScopes(mf)
	if err != nil {
		return nil, fmt.Errorf("%s::%s: %w", node.NodeID(), test.Name, err)
	}

	baseID := node.NodeID() + "::" + test.Name

	if mf.empty {
		return []*Item{{
			ID: baseID, Test: test, Node: node, session: s,
			names: mf.FixtureNames, defs: defs, callspec: newCallSpec(),
			Skip: "got empty parameter set",
		}}, nil
	}

	calls := mf.calls
	if len(calls) == 0 {
		calls = []*CallSpec{newCallSpec()}
	}

	items := make([]*Item, 0, len(calls))

	for _, call := range calls {
		id := baseID
		if len(call.IDs) > 0 {
			id += "[" + call.ID() + "]"
		}

		items = append(items, &Item{
			ID: id, Test: test, Node: node, session: s,
			names: mf.FixtureNames, defs: defs, callspec: call,
		})
	}

	s.log.WithFields(logrus.Fields{"test": baseID, "items": len(items)}).Debug("generated items")

	return items, nil
}

func (s *Session) generateClass(class *Class) ([]*Item, error) {
	var (
		errs  *multierror.Error
		items []*Item
	)

	for _, test := range class.Tests() {
		generated, err := s.generate(class, test)
		errs = multierror.Append(errs, err)
		items = append(items, generated...)
	}

	for _, nested := range class.Classes() {
		generated, err := s.generateClass(nested)
		errs = multierror.Append(errs, err)
		items = append(items, generated...)
	}

	return items, errs.ErrorOrNil()
}

func (s *Session) load(key cacheKey) (any, bool) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	value, ok := s.cache[key]

	return value, ok
}

func (s *Session) scope(def *FixtureDef) fixture.Scope {
	if def.Scope == fixture.ScopeDefault {
		return s.defaultScope
	}

	return def.Scope
}

func (s *Session) store(key cacheKey, value any) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	s.cache[key] = value
}

// autouseNames lists autouse fixtures visible from the chain, outermost first.
func autouseNames(chain []Node) []string {
	var names []string

	for _, node := range chain {
		for _, attr := range node.Members() {
			if def, ok := attr.Value.(*FixtureDef); ok && def.Autouse && !slices.Contains(names, def.Name) {
				names = append(names, def.Name)
			}
		}
	}

	return names
}

func tryFirstRank(plugin any) int {
	if h, ok := plugin.(TryFirstHook); ok && h.TryFirst() {
		return 0
	}

	return 1
}

// visibleDefs maps fixture names to their definitions along the chain,
// outermost first.
func visibleDefs(chain []Node) map[string][]*FixtureDef {
	defs := make(map[string][]*FixtureDef)

	for _, node := range chain {
		for _, attr := range node.Members() {
			if def, ok := attr.Value.(*FixtureDef); ok && !slices.Contains(defs[def.Name], def) {
				defs[def.Name] = append(defs[def.Name], def)
			}
		}
	}

	return defs
}
