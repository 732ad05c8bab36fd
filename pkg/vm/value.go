package vm

import (
	"fmt"
	"math"
	"strconv"
)

// ValueType discriminates the closed set of runtime value tags.
type ValueType uint8

const (
	TypeNone ValueType = iota
	TypeInteger
	TypeFloat
	TypeBoolean
	TypeString
	TypeFunction
	TypeClass
	TypeInstance
)

// String returns a human-readable name for the ValueType.
func (vt ValueType) String() string {
	switch vt {
	case TypeNone:
		return "none"
	case TypeInteger:
		return "integer"
	case TypeFloat:
		return "float"
	case TypeBoolean:
		return "boolean"
	case TypeString:
		return "string"
	case TypeFunction:
		return "function"
	case TypeClass:
		return "class"
	case TypeInstance:
		return "instance"
	default:
		return "unknown"
	}
}

// Value is the tagged runtime value. Exactly one tag is active and the tag
// never changes after construction. Integer, Float and Boolean payloads live
// in num; String lives in str; the heap tags share obj.
type Value struct {
	typ ValueType
	num uint64
	str string
	obj interface{} // *Function, *NativeFunction, *Class or *Instance
}

// None is the none value. The zero Value is None, so freshly cleared
// register windows are correctly initialized.
var None = Value{typ: TypeNone}

// True and False are the boolean values.
var (
	True  = Value{typ: TypeBoolean, num: 1}
	False = Value{typ: TypeBoolean, num: 0}
)

// IntegerValue creates an Integer value.
func IntegerValue(i int64) Value {
	return Value{typ: TypeInteger, num: uint64(i)}
}

// FloatValue creates a Float value.
func FloatValue(f float64) Value {
	return Value{typ: TypeFloat, num: math.Float64bits(f)}
}

// BooleanValue creates a Boolean value.
func BooleanValue(b bool) Value {
	if b {
		return True
	}
	return False
}

// StringValue creates a String value. Strings are immutable once created.
func StringValue(s string) Value {
	return Value{typ: TypeString, str: s}
}

// FunctionValue wraps a user-defined function or bound method.
func FunctionValue(f *Function) Value {
	return Value{typ: TypeFunction, obj: f}
}

// NativeValue wraps a Go-implemented function.
func NativeValue(f *NativeFunction) Value {
	return Value{typ: TypeFunction, obj: f}
}

// ClassValue wraps a class.
func ClassValue(c *Class) Value {
	return Value{typ: TypeClass, obj: c}
}

// InstanceValue wraps an instance.
func InstanceValue(i *Instance) Value {
	return Value{typ: TypeInstance, obj: i}
}

// Type returns the active tag.
func (v Value) Type() ValueType { return v.typ }

// IsNone reports whether the value is none.
func (v Value) IsNone() bool { return v.typ == TypeNone }

// AsInteger returns the integer payload when the tag is Integer.
func (v Value) AsInteger() (int64, bool) {
	if v.typ != TypeInteger {
		return 0, false
	}
	return int64(v.num), true
}

// AsFloat returns the float payload when the tag is Float.
func (v Value) AsFloat() (float64, bool) {
	if v.typ != TypeFloat {
		return 0, false
	}
	return math.Float64frombits(v.num), true
}

// AsBoolean returns the boolean payload when the tag is Boolean.
func (v Value) AsBoolean() (bool, bool) {
	if v.typ != TypeBoolean {
		return false, false
	}
	return v.num != 0, true
}

// AsString returns the string payload when the tag is String.
func (v Value) AsString() (string, bool) {
	if v.typ != TypeString {
		return "", false
	}
	return v.str, true
}

// AsFunction returns the user function payload, if present.
func (v Value) AsFunction() (*Function, bool) {
	if v.typ != TypeFunction {
		return nil, false
	}
	f, ok := v.obj.(*Function)
	return f, ok
}

// AsNative returns the native function payload, if present.
func (v Value) AsNative() (*NativeFunction, bool) {
	if v.typ != TypeFunction {
		return nil, false
	}
	f, ok := v.obj.(*NativeFunction)
	return f, ok
}

// AsClass returns the class payload when the tag is Class.
func (v Value) AsClass() (*Class, bool) {
	if v.typ != TypeClass {
		return nil, false
	}
	return v.obj.(*Class), true
}

// AsInstance returns the instance payload when the tag is Instance.
func (v Value) AsInstance() (*Instance, bool) {
	if v.typ != TypeInstance {
		return nil, false
	}
	return v.obj.(*Instance), true
}

// IsCallable reports whether calling the value can succeed at all.
func (v Value) IsCallable() bool {
	return v.typ == TypeFunction || v.typ == TypeClass
}

// IsTruthy maps the value to a boolean for conditional control flow: none,
// false, numeric zero and the empty string are falsy; everything else is
// truthy.
func (v Value) IsTruthy() bool {
	switch v.typ {
	case TypeNone:
		return false
	case TypeBoolean:
		return v.num != 0
	case TypeInteger:
		return int64(v.num) != 0
	case TypeFloat:
		return math.Float64frombits(v.num) != 0
	case TypeString:
		return v.str != ""
	default:
		return true
	}
}

// numeric returns the value as a float64 for mixed-type arithmetic.
func (v Value) numeric() (float64, bool) {
	switch v.typ {
	case TypeInteger:
		return float64(int64(v.num)), true
	case TypeFloat:
		return math.Float64frombits(v.num), true
	default:
		return 0, false
	}
}

// Is reports value equality: Integer and Float compare by numeric value
// (mixed tags allowed), String by content, Boolean and None by value, and
// the heap tags by reference identity.
func (v Value) Is(other Value) bool {
	// Two integers compare exactly; going through float64 would collapse
	// values past 2^53.
	if v.typ == TypeInteger && other.typ == TypeInteger {
		return v.num == other.num
	}
	if ln, lok := v.numeric(); lok {
		rn, rok := other.numeric()
		return rok && ln == rn
	}
	if v.typ != other.typ {
		return false
	}
	switch v.typ {
	case TypeNone:
		return true
	case TypeBoolean:
		return v.num == other.num
	case TypeString:
		return v.str == other.str
	default:
		return v.obj == other.obj
	}
}

// Inspect returns the external representation used by print.
func (v Value) Inspect() string {
	switch v.typ {
	case TypeNone:
		return "none"
	case TypeBoolean:
		if v.num != 0 {
			return "true"
		}
		return "false"
	case TypeInteger:
		return strconv.FormatInt(int64(v.num), 10)
	case TypeFloat:
		f := math.Float64frombits(v.num)
		s := strconv.FormatFloat(f, 'g', -1, 64)
		// Keep whole floats visibly floats.
		if !hasFloatMark(s) {
			s += ".0"
		}
		return s
	case TypeString:
		return v.str
	case TypeFunction:
		switch f := v.obj.(type) {
		case *Function:
			return fmt.Sprintf("<function %s>", f.Proto.Name)
		case *NativeFunction:
			return fmt.Sprintf("<native function %s>", f.Name)
		}
		return "<function>"
	case TypeClass:
		return fmt.Sprintf("<class %s>", v.obj.(*Class).Name)
	case TypeInstance:
		return fmt.Sprintf("<instance of %s>", v.obj.(*Instance).Class.Name)
	default:
		return "<unknown>"
	}
}

func hasFloatMark(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', 'e', 'E', 'N', 'n': // '.', exponent, NaN, Inf
			return true
		}
	}
	return false
}

func addOverflows(a, b, sum int64) bool  { return (a^sum)&(b^sum) < 0 }
func subOverflows(a, b, diff int64) bool { return (a^b)&(a^diff) < 0 }

func checkedAdd(a, b int64) (int64, bool) {
	sum := a + b
	return sum, !addOverflows(a, b, sum)
}

func checkedSub(a, b int64) (int64, bool) {
	diff := a - b
	return diff, !subOverflows(a, b, diff)
}

func checkedMul(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	prod := a * b
	if prod/b != a {
		return 0, false
	}
	if (a == math.MinInt64 && b == -1) || (b == math.MinInt64 && a == -1) {
		return 0, false
	}
	return prod, true
}
