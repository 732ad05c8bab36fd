package driver

import (
	"github.com/ember-lang/ember/pkg/errors"
	"github.com/ember-lang/ember/pkg/source"
	"github.com/ember-lang/ember/pkg/vm"
)

// Unit is the extraction target for none results.
type Unit struct{}

// Extract converts a runtime value to a Go value of type T. Supported
// targets are bool, int64, float64, string, Unit and vm.Value itself; an
// Integer extracts to float64 but not the reverse. A tag mismatch yields a
// TypeMismatch error.
func Extract[T any](v vm.Value) (T, error) {
	var out T
	switch p := any(&out).(type) {
	case *vm.Value:
		*p = v
		return out, nil
	case *bool:
		if b, ok := v.AsBoolean(); ok {
			*p = b
			return out, nil
		}
	case *int64:
		if i, ok := v.AsInteger(); ok {
			*p = i
			return out, nil
		}
	case *float64:
		if f, ok := v.AsFloat(); ok {
			*p = f
			return out, nil
		}
		if i, ok := v.AsInteger(); ok {
			*p = float64(i)
			return out, nil
		}
	case *string:
		if s, ok := v.AsString(); ok {
			*p = s
			return out, nil
		}
	case *Unit:
		if v.IsNone() {
			return out, nil
		}
	default:
		return out, errors.NewRuntimeError(errors.KindTypeMismatch, source.NoSpan,
			"cannot extract %T from a runtime value", out)
	}
	return out, errors.NewRuntimeError(errors.KindTypeMismatch, source.NoSpan,
		"cannot extract %T from a %s value", out, v.Type())
}
