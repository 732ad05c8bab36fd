package vm

import (
	"github.com/ember-lang/ember/pkg/errors"
	"github.com/ember-lang/ember/pkg/source"
)

// callValue dispatches a call. For user functions it pushes a frame and
// reports pushed=true so the dispatch loop switches to it; natives and
// class construction complete inline and hand back the result.
func (iso *Isolate) callValue(callee Value, args []Value, span source.Span) (pushed bool, result Value, err errors.EmberError) {
	if fn, ok := callee.AsFunction(); ok {
		expected := fn.Proto.Arity(fn.Bound())
		if len(args) != expected {
			return false, None, iso.fail(errors.KindArityMismatch, span,
				"%s expects %d arguments, got %d", fn.Proto.Name, expected, len(args))
		}
		if len(iso.frames) >= iso.maxDepth {
			return false, None, iso.fail(errors.KindStackOverflow, span,
				"maximum call depth of %d exceeded", iso.maxDepth)
		}
		nf := iso.pushFrame(fn)
		window := iso.window(nf)
		slot := 0
		if fn.Bound() && fn.Proto.IsMethod {
			window[0] = fn.Self
			slot = 1
		}
		copy(window[slot:], args)
		return true, None, nil
	}
	if nat, ok := callee.AsNative(); ok {
		if nat.Arity >= 0 && len(args) != nat.Arity {
			return false, None, iso.fail(errors.KindArityMismatch, span,
				"%s expects %d arguments, got %d", nat.Name, nat.Arity, len(args))
		}
		v, nerr := nat.Fn(args)
		if nerr != nil {
			ferr := iso.fail(errors.KindTypeMismatch, span, "%s: %v", nat.Name, nerr)
			ferr.Cause = nerr
			return false, None, ferr
		}
		return false, v, nil
	}
	if cls, ok := callee.AsClass(); ok {
		// Construction with keyword arguments routes through MakeInstance;
		// a plain call only ever builds the all-defaults instance.
		if len(args) != 0 {
			return false, None, iso.fail(errors.KindTypeMismatch, span,
				"class %s takes keyword arguments only", cls.Name)
		}
		return false, InstanceValue(NewInstance(cls)), nil
	}
	return false, None, iso.fail(errors.KindTypeMismatch, span, "%s value is not callable", callee.Type())
}

// makeFunction builds a function object from a proto, copying each captured
// value out of the creating frame. Captures are snapshots taken here, not
// references into the frame.
func (iso *Isolate) makeFunction(f *frame, regs []Value, proto *FunctionProto) *Function {
	fn := &Function{Proto: proto}
	if len(proto.Captures) > 0 {
		fn.Captures = make([]Value, len(proto.Captures))
		for i, ref := range proto.Captures {
			if ref.FromEnclosing {
				fn.Captures[i] = f.fn.Captures[ref.Index]
			} else {
				fn.Captures[i] = regs[ref.Index]
			}
		}
	}
	return fn
}

// makeClass realizes a class descriptor. The merged field template starts
// from the superclass and lets redeclared fields override their inherited
// default in place, keeping the inherited ordering.
func (iso *Isolate) makeClass(f *frame, regs []Value, desc *ClassDesc, superVal Value) (Value, errors.EmberError) {
	var super *Class
	if desc.HasSuper {
		sc, ok := superVal.AsClass()
		if !ok {
			return None, iso.fail(errors.KindTypeMismatch, f.prog.SpanAt(f.ip-3),
				"superclass of %s must be a class, got %s", desc.Name, superVal.Type())
		}
		super = sc
	}
	cls := &Class{
		Name:    desc.Name,
		Methods: make(map[string]*Function, len(desc.Methods)),
		Super:   super,
	}
	if super != nil {
		cls.Fields = append(cls.Fields, super.Fields...)
	}
	for _, fd := range desc.Fields {
		replaced := false
		for i := range cls.Fields {
			if cls.Fields[i].Name == fd.Name {
				cls.Fields[i].Default = fd.Default
				replaced = true
				break
			}
		}
		if !replaced {
			cls.Fields = append(cls.Fields, fd)
		}
	}
	for _, md := range desc.Methods {
		m := iso.makeFunction(f, regs, f.prog.Protos[md.Proto])
		m.Home = cls
		cls.Methods[md.Name] = m
	}
	return ClassValue(cls), nil
}

// makeInstance constructs an instance from a class in regs[clsReg] and
// keyword pairs laid out as (name, value) in the following registers. Every
// keyword must name a declared field; unnamed fields keep their defaults.
func (iso *Isolate) makeInstance(regs []Value, clsReg, pairs int, span source.Span) (Value, errors.EmberError) {
	cls, ok := regs[clsReg].AsClass()
	if !ok {
		return None, iso.fail(errors.KindTypeMismatch, span, "%s value is not a class", regs[clsReg].Type())
	}
	inst := NewInstance(cls)
	for i := 0; i < pairs; i++ {
		name, _ := regs[clsReg+1+2*i].AsString()
		val := regs[clsReg+2+2*i]
		if !cls.HasField(name) {
			return None, iso.fail(errors.KindUndefinedAttribute, span,
				"class %s has no field %q", cls.Name, name)
		}
		inst.Fields[name] = val
	}
	return InstanceValue(inst), nil
}

func (iso *Isolate) getField(target Value, name string, span source.Span) (Value, errors.EmberError) {
	if v, ok := getAttribute(target, name); ok {
		return v, nil
	}
	switch target.Type() {
	case TypeInstance:
		inst, _ := target.AsInstance()
		return None, iso.fail(errors.KindUndefinedAttribute, span,
			"instance of %s has no attribute %q", inst.Class.Name, name)
	case TypeClass:
		cls, _ := target.AsClass()
		return None, iso.fail(errors.KindUndefinedAttribute, span,
			"class %s has no method %q", cls.Name, name)
	default:
		return None, iso.fail(errors.KindTypeMismatch, span,
			"%s value has no attributes", target.Type())
	}
}

func (iso *Isolate) setField(target Value, name string, val Value, span source.Span) errors.EmberError {
	if setAttribute(target, name, val) {
		return nil
	}
	if inst, ok := target.AsInstance(); ok {
		return iso.fail(errors.KindUndefinedAttribute, span,
			"instance of %s has no field %q", inst.Class.Name, name)
	}
	return iso.fail(errors.KindTypeMismatch, span, "cannot assign attribute on %s value", target.Type())
}

// getSuper resolves a method on the superclass of the class that declared
// the running method and binds it to the current receiver. The receiver
// always lives in register 0 of a method frame.
func (iso *Isolate) getSuper(f *frame, regs []Value, name string, span source.Span) (Value, errors.EmberError) {
	home := f.fn.Home
	if home == nil || home.Super == nil {
		return None, iso.fail(errors.KindTypeMismatch, span, "%s has no superclass", f.fn.Proto.Name)
	}
	m, ok := home.Super.ResolveMethod(name)
	if !ok {
		return None, iso.fail(errors.KindUndefinedAttribute, span,
			"class %s has no method %q", home.Super.Name, name)
	}
	return FunctionValue(m.Bind(regs[0])), nil
}
