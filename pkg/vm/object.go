package vm

// CaptureRef tells the VM where to copy a captured value from when a
// function object is created: either a register of the creating frame or a
// capture slot of the creating function.
type CaptureRef struct {
	FromEnclosing bool
	Index         uint8
}

// FunctionProto is the immutable compile-time description of a function:
// its name, parameter list, capture plan and compiled body. Function objects
// share one proto.
type FunctionProto struct {
	Name     string
	Params   []string
	IsMethod bool // first parameter is the receiver
	Captures []CaptureRef
	Code     *Program
}

// Arity is the number of arguments a caller supplies. Methods called
// through an instance receive the receiver implicitly, so it is not counted
// there; calling the same method unbound through the class counts it.
func (p *FunctionProto) Arity(bound bool) int {
	n := len(p.Params)
	if bound && p.IsMethod {
		n--
	}
	return n
}

// Function is a runtime function object: a proto plus the captured values
// copied at creation time. Methods additionally carry the receiver they were
// bound to and the class whose declaration defines them, which anchors super
// dispatch.
type Function struct {
	Proto    *FunctionProto
	Captures []Value
	Self     Value // receiver for bound methods, None otherwise
	Home     *Class
}

// Bound reports whether the function carries a receiver.
func (f *Function) Bound() bool { return !f.Self.IsNone() }

// Bind returns a copy of the method bound to the given receiver. The copy
// shares the proto and capture slice.
func (f *Function) Bind(self Value) *Function {
	b := *f
	b.Self = self
	return &b
}

// NativeFunction is a function implemented in Go. Arity -1 accepts any
// number of arguments.
type NativeFunction struct {
	Name  string
	Arity int
	Fn    func(args []Value) (Value, error)
}

// FieldTemplate is one declared field of a class with its default value.
type FieldTemplate struct {
	Name    string
	Default Value
}

// Class is a runtime class object. Fields is the merged template, inherited
// fields first in declaration order, with subclass redeclarations
// overriding the inherited default in place. Methods holds only the
// class's own declarations; lookup walks Super.
type Class struct {
	Name    string
	Fields  []FieldTemplate
	Methods map[string]*Function
	Super   *Class
}

// ResolveMethod finds a method by name on the class or any ancestor.
func (c *Class) ResolveMethod(name string) (*Function, bool) {
	for k := c; k != nil; k = k.Super {
		if m, ok := k.Methods[name]; ok {
			return m, true
		}
	}
	return nil, false
}

// HasField reports whether the class declares or inherits the named field.
func (c *Class) HasField(name string) bool {
	for _, f := range c.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Instance is a runtime instance: its class and a per-instance copy of the
// field values. The field set is fixed at construction; only values change.
type Instance struct {
	Class  *Class
	Fields map[string]Value
}

// NewInstance creates an instance with every merged field set to its
// default.
func NewInstance(c *Class) *Instance {
	fields := make(map[string]Value, len(c.Fields))
	for _, f := range c.Fields {
		fields[f.Name] = f.Default
	}
	return &Instance{Class: c, Fields: fields}
}

// getAttribute resolves name on a value. For instances the per-instance
// field map is consulted first, then the class method chain; methods come
// back bound to the instance. For classes only methods resolve, unbound.
func getAttribute(v Value, name string) (Value, bool) {
	switch v.Type() {
	case TypeInstance:
		inst, _ := v.AsInstance()
		if fv, ok := inst.Fields[name]; ok {
			return fv, true
		}
		if m, ok := inst.Class.ResolveMethod(name); ok {
			return FunctionValue(m.Bind(v)), true
		}
	case TypeClass:
		cls, _ := v.AsClass()
		if m, ok := cls.ResolveMethod(name); ok {
			return FunctionValue(m), true
		}
	}
	return None, false
}

// setAttribute assigns to an instance field. Assignment never creates
// fields and never touches methods; the target must be an instance with the
// field already declared.
func setAttribute(v Value, name string, val Value) bool {
	inst, ok := v.AsInstance()
	if !ok {
		return false
	}
	if _, ok := inst.Fields[name]; !ok {
		return false
	}
	inst.Fields[name] = val
	return true
}
