package host

import (
	"github.com/toejough/lambdafix/internal/fixture"
)

// Node is a module or class: a named scope holding attributes, tests and
// nested classes.
type Node interface {
	Get(name string) (any, bool)
	IsClass() bool
	Location() string
	Members() []Attr
	Module() *Module
	Name() string
	NodeID() string
	OwnerName() string
	Parent() Node
	Receiver() any
	Set(name string, value any)
}

// Attr is one named attribute of a node.
type Attr struct {
	Name  string
	Value any
}

// TestFunc is a test collected from a node. Its params name the fixtures it
// requests.
type TestFunc struct {
	Name string
	Func fixture.Func
}

// Module is the outermost node, the equivalent of one test file.
type Module struct {
	name    string
	file    string
	attrs   table
	classes []*Class
	tests   []*TestFunc
}

// ModuleOption configures a Module.
type ModuleOption func(*Module)

// WithFile records the source file a module stands for, used in diagnostics.
func WithFile(path string) ModuleOption {
	return func(m *Module) { m.file = path }
}

// NewModule creates an empty module.
func NewModule(name string, opts ...ModuleOption) *Module {
	module := &Module{name: name}
	for _, opt := range opts {
		opt(module)
	}

	return module
}

// Class adds a nested class. newInstance builds the per-test instance and may
// be nil.
func (m *Module) Class(name string, newInstance func() any) *Class {
	class := newClass(name, m, newInstance)
	m.classes = append(m.classes, class)

	return class
}

// Classes returns the classes declared directly in the module.
func (m *Module) Classes() []*Class {
	return append([]*Class(nil), m.classes...)
}

// Fixture registers a hand-written fixture.
func (m *Module) Fixture(name string, f fixture.Func, opts ...DefOption) *FixtureDef {
	def := newFixtureDef(name, f, m, opts)
	m.Set(name, def)

	return def
}

// Get returns the attribute stored under name.
func (m *Module) Get(name string) (any, bool) {
	return m.attrs.get(name)
}

// IsClass is false for modules.
func (m *Module) IsClass() bool {
	return false
}

// Location returns the module's file, or its name when no file was given.
func (m *Module) Location() string {
	if m.file != "" {
		return m.file
	}

	return m.name
}

// Members returns the module's attributes in assignment order.
func (m *Module) Members() []Attr {
	return m.attrs.list()
}

// Module returns m.
func (m *Module) Module() *Module {
	return m
}

// Name returns the module name.
func (m *Module) Name() string {
	return m.name
}

// NodeID returns the module name.
func (m *Module) NodeID() string {
	return m.name
}

// OwnerName returns the module name.
func (m *Module) OwnerName() string {
	return m.name
}

// Parent is nil for modules.
func (m *Module) Parent() Node {
	return nil
}

// Receiver is nil for modules.
func (m *Module) Receiver() any {
	return nil
}

// Set assigns an attribute. Fixture definitions without an owner are adopted.
func (m *Module) Set(name string, value any) {
	adopt(value, m)
	m.attrs.set(name, value)
}

// Test adds a test.
func (m *Module) Test(name string, f fixture.Func) {
	m.tests = append(m.tests, &TestFunc{Name: name, Func: f})
}

// Tests returns the module's tests.
func (m *Module) Tests() []*TestFunc {
	return append([]*TestFunc(nil), m.tests...)
}

// Class is a node nested in a module or another class. Classes inherit the
// attributes and tests of their bases, with their own taking precedence.
type Class struct {
	name        string
	parent      Node
	bases       []*Class
	newInstance func() any
	attrs       table
	classes     []*Class
	tests       []*TestFunc
}

// Class adds a nested class.
func (c *Class) Class(name string, newInstance func() any) *Class {
	class := newClass(name, c, newInstance)
	c.classes = append(c.classes, class)

	return class
}

// Classes returns the classes nested directly in c.
func (c *Class) Classes() []*Class {
	return append([]*Class(nil), c.classes...)
}

// Fixture registers a hand-written fixture. f receives the class instance as
// its first argument.
func (c *Class) Fixture(name string, f fixture.Func, opts ...DefOption) *FixtureDef {
	def := newFixtureDef(name, f, c, opts)
	c.Set(name, def)

	return def
}

// Get returns the attribute stored under name, own or inherited.
func (c *Class) Get(name string) (any, bool) {
	if value, ok := c.attrs.get(name); ok {
		return value, true
	}

	for _, base := range c.bases {
		if value, ok := base.Get(name); ok {
			return value, true
		}
	}

	return nil, false
}

// Inherit adds base classes, searched in order after c itself.
func (c *Class) Inherit(bases ...*Class) *Class {
	c.bases = append(c.bases, bases...)

	return c
}

// IsClass is true for classes.
func (c *Class) IsClass() bool {
	return true
}

// Location returns the file of the enclosing module.
func (c *Class) Location() string {
	return c.Module().Location()
}

// Members returns own attributes followed by inherited ones not overridden.
func (c *Class) Members() []Attr {
	seen := make(map[string]bool)

	var members []Attr

	c.walk(func(k *Class) {
		for _, attr := range k.attrs.list() {
			if !seen[attr.Name] {
				seen[attr.Name] = true

				members = append(members, attr)
			}
		}
	})

	return members
}

// Module returns the enclosing module.
func (c *Class) Module() *Module {
	return c.parent.Module()
}

// Name returns the class name.
func (c *Class) Name() string {
	return c.name
}

// NodeID returns the path of the class from its module.
func (c *Class) NodeID() string {
	return c.parent.NodeID() + "::" + c.name
}

// OwnerName returns the node id.
func (c *Class) OwnerName() string {
	return c.NodeID()
}

// Parent returns the enclosing node.
func (c *Class) Parent() Node {
	return c.parent
}

// Receiver builds a fresh instance, or nil when the class has no constructor.
func (c *Class) Receiver() any {
	if c.newInstance == nil {
		return nil
	}

	return c.newInstance()
}

// Set assigns an attribute. Fixture definitions without an owner are adopted.
func (c *Class) Set(name string, value any) {
	adopt(value, c)
	c.attrs.set(name, value)
}

// Test adds a test.
func (c *Class) Test(name string, f fixture.Func) {
	c.tests = append(c.tests, &TestFunc{Name: name, Func: f})
}

// Tests returns own tests followed by inherited ones not overridden.
func (c *Class) Tests() []*TestFunc {
	seen := make(map[string]bool)

	var tests []*TestFunc

	c.walk(func(k *Class) {
		for _, test := range k.tests {
			if !seen[test.Name] {
				seen[test.Name] = true

				tests = append(tests, test)
			}
		}
	})

	return tests
}

// walk visits c, then its bases depth-first, each class once.
func (c *Class) walk(visit func(*Class)) {
	visited := make(map[*Class]bool)

	var step func(*Class)

	step = func(k *Class) {
		if visited[k] {
			return
		}

		visited[k] = true

		visit(k)

		for _, base := range k.bases {
			step(base)
		}
	}

	step(c)
}

func adopt(value any, owner Node) {
	if def, ok := value.(*FixtureDef); ok && def.Owner == nil {
		def.Owner = owner
	}
}

func newClass(name string, parent Node, newInstance func() any) *Class {
	return &Class{name: name, parent: parent, newInstance: newInstance}
}

// table keeps attributes in first-assignment order.
type table struct {
	names  []string
	values map[string]any
}

func (t *table) get(name string) (any, bool) {
	value, ok := t.values[name]

	return value, ok
}

func (t *table) list() []Attr {
	attrs := make([]Attr, len(t.names))
	for i, name := range t.names {
		attrs[i] = Attr{Name: name, Value: t.values[name]}
	}

	return attrs
}

func (t *table) set(name string, value any) {
	if t.values == nil {
		t.values = make(map[string]any)
	}

	if _, ok := t.values[name]; !ok {
		t.names = append(t.names, name)
	}

	t.values[name] = value
}
