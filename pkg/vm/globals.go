package vm

import (
	"fmt"
	"strings"
	"time"
)

// DefineGlobal binds a name in the global scope, creating or replacing it.
func (iso *Isolate) DefineGlobal(name string, v Value) {
	iso.globals[name] = v
}

// GetGlobal looks up a global by name.
func (iso *Isolate) GetGlobal(name string) (Value, bool) {
	v, ok := iso.globals[name]
	return v, ok
}

// GlobalNames returns every bound global name, for seeding the compiler's
// top-level scope.
func (iso *Isolate) GlobalNames() []string {
	names := make([]string, 0, len(iso.globals))
	for name := range iso.globals {
		names = append(names, name)
	}
	return names
}

// RegisterNative binds a Go function as a global. Arity -1 accepts any
// number of arguments; otherwise the count is checked at the call site.
func (iso *Isolate) RegisterNative(name string, arity int, fn func(args []Value) (Value, error)) {
	iso.DefineGlobal(name, NativeValue(&NativeFunction{Name: name, Arity: arity, Fn: fn}))
}

func (iso *Isolate) installBuiltins() {
	iso.RegisterNative("print", -1, func(args []Value) (Value, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = a.Inspect()
		}
		fmt.Fprintln(iso.stdout, strings.Join(parts, " "))
		return None, nil
	})
	iso.RegisterNative("type", 1, func(args []Value) (Value, error) {
		return StringValue(args[0].Type().String()), nil
	})
	iso.RegisterNative("clock", 0, func(args []Value) (Value, error) {
		return FloatValue(float64(time.Now().UnixNano()) / 1e9), nil
	})
}
