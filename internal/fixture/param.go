package fixture

import (
	"fmt"
	"reflect"
	"slices"
)

// ParamSet is one row of parametrization values, optionally carrying the id
// used for the generated test.
type ParamSet struct {
	Values []any
	ID     string
}

// Param builds a ParamSet from values.
func Param(values ...any) ParamSet {
	return ParamSet{Values: slices.Clone(values)}
}

// WithID returns a copy of p carrying id.
func (p ParamSet) WithID(id string) ParamSet {
	p.Values = slices.Clone(p.Values)
	p.ID = id

	return p
}

// Normalize turns a raw parametrization value into a ParamSet of the given
// width. With width 1 a raw value is used whole; with more, it must be a
// slice or array of exactly width elements.
func Normalize(v any, width int) (ParamSet, error) {
	if set, ok := v.(ParamSet); ok {
		if len(set.Values) != width {
			return ParamSet{}, fmt.Errorf("%w: expected %d values, got %d", ErrWidth, width, len(set.Values))
		}

		return set, nil
	}

	if width == 1 {
		return Param(v), nil
	}

	rv := reflect.ValueOf(v)
	if !isSequence(v) || rv.Len() != width {
		return ParamSet{}, fmt.Errorf("%w: expected %d values, got %d", ErrWidth, width, Width(v))
	}

	values := make([]any, rv.Len())
	for i := range values {
		values[i] = rv.Index(i).Interface()
	}

	return Param(values...), nil
}

// Width reports how many names a parametrization value destructures into:
// the number of values for a ParamSet, the length of a slice or array, and 1
// for anything else, strings and byte slices included.
func Width(v any) int {
	if set, ok := v.(ParamSet); ok {
		return len(set.Values)
	}

	if isSequence(v) {
		return reflect.ValueOf(v).Len()
	}

	return 1
}

func isSequence(v any) bool {
	if v == nil {
		return false
	}

	if _, ok := v.([]byte); ok {
		return false
	}

	switch reflect.TypeOf(v).Kind() { //nolint:exhaustive // everything else is a scalar
	case reflect.Slice, reflect.Array:
		return true
	default:
		return false
	}
}
