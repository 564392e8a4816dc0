package core

import (
	"errors"
	"fmt"
)

// Exported variables.
var (
	ErrConfiguration         = errors.New("invalid fixture declaration")
	ErrDestructure           = errors.New("lambda fixtures may only be destructured once")
	ErrDisabledFixture       = errors.New("fixture disabled")
	ErrNotImplementedFixture = errors.New("fixture not implemented")
	ErrNotResolved           = errors.New(
		"the fixture func for this declaration has not been defined; this is a catastrophic error",
	)
	ErrSignature = errors.New("invalid wrapped fixture signature")
)

// ConfigurationError reports an invalid combination of declaration options.
// It is raised while declaring or collecting, never while running tests.
type ConfigurationError struct {
	Fixture  string
	Location string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	switch {
	case e.Fixture != "" && e.Location != "":
		return fmt.Sprintf("%s: fixture %q in %s: %s", ErrConfiguration, e.Fixture, e.Location, e.Reason)
	case e.Fixture != "":
		return fmt.Sprintf("%s: fixture %q: %s", ErrConfiguration, e.Fixture, e.Reason)
	default:
		return fmt.Sprintf("%s: %s", ErrConfiguration, e.Reason)
	}
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// DisabledFixtureError is raised when a disabled fixture is requested.
type DisabledFixtureError struct {
	Fixture string
}

func (e *DisabledFixtureError) Error() string {
	return fmt.Sprintf("Usage of the %s fixture has been disabled in the current context.", e.Fixture)
}

func (e *DisabledFixtureError) Unwrap() error {
	return ErrDisabledFixture
}

// NotImplementedFixtureError is raised when an abstract fixture is requested
// without having been overridden.
type NotImplementedFixtureError struct {
	Fixture string
}

func (e *NotImplementedFixtureError) Error() string {
	return fmt.Sprintf("Please define/override the %s fixture in the current context.", e.Fixture)
}

func (e *NotImplementedFixtureError) Unwrap() error {
	return ErrNotImplementedFixture
}

func configErr(fixture, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Fixture: fixture, Reason: fmt.Sprintf(format, args...)}
}
