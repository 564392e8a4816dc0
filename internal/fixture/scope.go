package fixture

import (
	"context"
	"fmt"
)

// Scope controls how long a host caches a fixture's value.
type Scope int

// Scope values. ScopeDefault defers to the host's configured default.
const (
	ScopeDefault Scope = iota
	ScopeFunction
	ScopeClass
	ScopeModule
	ScopeSession
)

// Names of the fixtures every host provides.
const (
	RequestParam = "request"
	TestingParam = "t"
)

// Request describes the fixture currently being computed. Fixtures get one by
// declaring a param named RequestParam.
type Request interface {
	Context() context.Context
	FixtureName() string
	NodeID() string
	Param() (any, bool)
}

// ParseScope parses a scope name as written in configuration.
func ParseScope(name string) (Scope, error) {
	switch name {
	case "", "default":
		return ScopeDefault, nil
	case "function":
		return ScopeFunction, nil
	case "class":
		return ScopeClass, nil
	case "module":
		return ScopeModule, nil
	case "session":
		return ScopeSession, nil
	}

	return ScopeDefault, fmt.Errorf("%w: %q", ErrUnknownScope, name)
}

func (s Scope) String() string {
	switch s {
	case ScopeDefault:
		return "default"
	case ScopeFunction:
		return "function"
	case ScopeClass:
		return "class"
	case ScopeModule:
		return "module"
	case ScopeSession:
		return "session"
	}

	return fmt.Sprintf("Scope(%d)", int(s))
}
