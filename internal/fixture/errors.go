package fixture

import "errors"

// Exported variables.
var (
	ErrArgumentType       = errors.New("argument type mismatch")
	ErrArity              = errors.New("argument count mismatch")
	ErrMissingArgument    = errors.New("missing argument")
	ErrNoImplementation   = errors.New("fixture func has no implementation")
	ErrNotFunc            = errors.New("fixture implementation must be a function")
	ErrUnknownScope       = errors.New("unknown fixture scope")
	ErrUnsupportedResults = errors.New("fixture functions must return nothing, a value, an error, or a value and an error")
	ErrWidth              = errors.New("parameter set width mismatch")
)
