package compiler

import (
	"github.com/ember-lang/ember/pkg/ast"
	"github.com/ember-lang/ember/pkg/errors"
	"github.com/ember-lang/ember/pkg/vm"
)

// literalValue evaluates a constant literal at compile time. Field defaults
// are restricted to literals, so this is total.
func literalValue(lit ast.Literal) vm.Value {
	switch l := lit.(type) {
	case *ast.IntLit:
		return vm.IntegerValue(l.Value)
	case *ast.FloatLit:
		return vm.FloatValue(l.Value)
	case *ast.StringLit:
		return vm.StringValue(l.Value)
	case *ast.BoolLit:
		return vm.BooleanValue(l.Value)
	default:
		return vm.None
	}
}

// compileClassDecl builds a class descriptor: field templates with their
// constant defaults and one proto per method. When a superclass is named it
// is loaded into the accumulator first; MakeClass consumes it.
func (fc *funcCompiler) compileClassDecl(s *ast.ClassDecl) {
	desc := vm.ClassDesc{
		Name:     s.Name.Name,
		HasSuper: s.Super != nil,
	}

	seenFields := make(map[string]bool, len(s.Fields))
	for _, fd := range s.Fields {
		if seenFields[fd.Name] {
			fc.c.reportf(errors.KindDuplicateDeclaration, fd.Span(),
				"field %s is already declared on class %s", fd.Name, s.Name.Name)
			continue
		}
		seenFields[fd.Name] = true
		desc.Fields = append(desc.Fields, vm.FieldTemplate{
			Name:    fd.Name,
			Default: literalValue(fd.Default),
		})
	}

	seenMethods := make(map[string]bool, len(s.Methods))
	for _, md := range s.Methods {
		if seenMethods[md.Name] {
			fc.c.reportf(errors.KindDuplicateDeclaration, md.Span(),
				"method %s is already declared on class %s", md.Name, s.Name.Name)
			continue
		}
		if seenFields[md.Name] {
			fc.c.reportf(errors.KindDuplicateDeclaration, md.Span(),
				"%s is declared as both a field and a method on class %s", md.Name, s.Name.Name)
			continue
		}
		seenMethods[md.Name] = true
		isMethod := len(md.Params) > 0 && md.Params[0].Name == "self"
		qualified := s.Name.Name + "." + md.Name
		proto := fc.compileFunctionBody(qualified, md.Params, md.Body, isMethod, md.Span())
		idx := uint16(len(fc.prog.Protos))
		fc.prog.Protos = append(fc.prog.Protos, proto)
		desc.Methods = append(desc.Methods, vm.MethodDesc{Name: md.Name, Proto: idx})
	}

	if s.Super != nil {
		if s.Super.Name == s.Name.Name {
			fc.c.reportf(errors.KindDuplicateDeclaration, s.Super.Span(),
				"class %s cannot inherit from itself", s.Name.Name)
			fc.emit(vm.OpLoadNone, s.Super.Span())
		} else {
			fc.compileIdent(s.Super)
		}
	}

	idx := uint16(len(fc.prog.Classes))
	fc.prog.Classes = append(fc.prog.Classes, desc)
	fc.emitUint16(vm.OpMakeClass, idx, s.Span())
	fc.bindDeclaration(s.Name)
}
