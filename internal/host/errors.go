package host

import "errors"

// Exported variables.
var (
	ErrCollection             = errors.New("collection failed")
	ErrDuplicateParametrize   = errors.New("argument parametrized more than once")
	ErrFixtureNotFound        = errors.New("fixture not found")
	ErrRecursiveDependency    = errors.New("recursive dependency involving fixture")
	ErrUnusedArgument         = errors.New("function uses no argument")
	ErrInvalidParametrization = errors.New("invalid parametrization")
	ErrScopeMismatch          = errors.New("scope mismatch")
)
