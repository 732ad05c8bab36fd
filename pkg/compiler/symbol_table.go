package compiler

import (
	"github.com/ember-lang/ember/pkg/source"
	"github.com/ember-lang/ember/pkg/vm"
)

type symbolKind uint8

const (
	symGlobal symbolKind = iota
	symLocal
	symCapture
)

// symbol is one resolved binding: a global name, a frame-local slot, or a
// capture slot of the current function.
type symbol struct {
	name string
	kind symbolKind
	slot Register // local slot or capture index; unused for globals
	decl source.Span
}

// scope is one lexical scope's name table.
type scope struct {
	names map[string]*symbol
}

func newScope() *scope {
	return &scope{names: make(map[string]*symbol)}
}

// declareLocal binds a name to a fresh slot in the innermost scope.
// Shadowing an outer scope's binding is fine; redeclaring within the same
// scope is reported by the caller.
func (fc *funcCompiler) declareLocal(name string, slot Register, decl source.Span) *symbol {
	s := &symbol{name: name, kind: symLocal, slot: slot, decl: decl}
	fc.scopes[len(fc.scopes)-1].names[name] = s
	return s
}

// declaredInCurrentScope checks only the innermost scope, for duplicate
// detection.
func (fc *funcCompiler) declaredInCurrentScope(name string) (*symbol, bool) {
	s, ok := fc.scopes[len(fc.scopes)-1].names[name]
	return s, ok
}

// resolve finds a name: innermost scope outward, then enclosing functions
// (adding a capture), then the global table. The boolean is false when the
// name is undefined everywhere.
func (fc *funcCompiler) resolve(name string) (*symbol, bool) {
	for i := len(fc.scopes) - 1; i >= 0; i-- {
		if s, ok := fc.scopes[i].names[name]; ok {
			return s, true
		}
	}
	if fc.enclosing != nil {
		if enc, ok := fc.enclosing.resolve(name); ok {
			switch enc.kind {
			case symGlobal:
				return enc, true
			case symLocal:
				return fc.addCapture(name, vm.CaptureRef{FromEnclosing: false, Index: enc.slot}), true
			case symCapture:
				return fc.addCapture(name, vm.CaptureRef{FromEnclosing: true, Index: enc.slot}), true
			}
		}
	}
	if fc.c.globals[name] {
		return &symbol{name: name, kind: symGlobal}, true
	}
	return nil, false
}

// addCapture records a capture plan entry, reusing an existing slot when
// the same name was captured before.
func (fc *funcCompiler) addCapture(name string, ref vm.CaptureRef) *symbol {
	if s, ok := fc.captures[name]; ok {
		return s
	}
	idx := Register(len(fc.proto.Captures))
	fc.proto.Captures = append(fc.proto.Captures, ref)
	s := &symbol{name: name, kind: symCapture, slot: idx}
	fc.captures[name] = s
	return s
}
