package vm

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/ember-lang/ember/pkg/errors"
	"github.com/ember-lang/ember/pkg/source"
)

// DefaultMaxCallDepth bounds recursion when Options leaves it unset.
const DefaultMaxCallDepth = 1024

// Options configures an Isolate.
type Options struct {
	MaxCallDepth int
	Stdout       io.Writer
	Sink         errors.Sink
	Trace        bool
}

// frame is one activation record: the running function, an instruction
// pointer into its code, and the base of its register window on the shared
// stack.
type frame struct {
	fn   *Function
	prog *Program
	ip   int
	base int
}

// Isolate is a self-contained execution engine: a frame stack, a shared
// register stack carved into per-frame windows, and the global scope.
// Isolates are not safe for concurrent use.
type Isolate struct {
	frames   []frame
	stack    []Value
	globals  map[string]Value
	stdout   io.Writer
	sink     errors.Sink
	maxDepth int
	trace    bool
	traceOut io.Writer
}

// NewIsolate creates an isolate with the builtin globals installed.
func NewIsolate(opts Options) *Isolate {
	if opts.MaxCallDepth <= 0 {
		opts.MaxCallDepth = DefaultMaxCallDepth
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	iso := &Isolate{
		frames:   make([]frame, 0, 16),
		globals:  make(map[string]Value),
		stdout:   opts.Stdout,
		sink:     opts.Sink,
		maxDepth: opts.MaxCallDepth,
		trace:    opts.Trace,
		traceOut: os.Stderr,
	}
	iso.installBuiltins()
	return iso
}

// Evaluate validates and runs a compiled program to completion, returning
// the resulting value. On a runtime error the error is also reported to the
// configured sink and the returned value is none.
func (iso *Isolate) Evaluate(prog *Program) (Value, errors.EmberError) {
	if err := prog.Validate(); err != nil {
		verr := errors.NewRuntimeError(errors.KindTypeMismatch, source.NoSpan, "invalid program: %v", err)
		iso.report(verr)
		return None, verr
	}
	iso.frames = iso.frames[:0]
	iso.stack = iso.stack[:0]
	main := &Function{Proto: &FunctionProto{Name: prog.Name, Code: prog}}
	iso.pushFrame(main)
	v, rerr := iso.run()
	if rerr != nil {
		iso.report(rerr)
		return None, rerr
	}
	return v, nil
}

func (iso *Isolate) report(err errors.EmberError) {
	if iso.sink != nil {
		iso.sink.Report(errors.Diag(err))
	}
}

// pushFrame appends an activation record and clears its register window.
func (iso *Isolate) pushFrame(fn *Function) *frame {
	base := 0
	if n := len(iso.frames); n > 0 {
		top := &iso.frames[n-1]
		base = top.base + top.prog.NumRegisters
	}
	prog := fn.Proto.Code
	need := base + prog.NumRegisters
	for len(iso.stack) < need {
		iso.stack = append(iso.stack, None)
	}
	for i := base; i < need; i++ {
		iso.stack[i] = None
	}
	iso.frames = append(iso.frames, frame{fn: fn, prog: prog, base: base})
	return &iso.frames[len(iso.frames)-1]
}

func (iso *Isolate) window(f *frame) []Value {
	return iso.stack[f.base : f.base+f.prog.NumRegisters]
}

// stackTrace renders the active frames innermost first.
func (iso *Isolate) stackTrace() []string {
	trace := make([]string, 0, len(iso.frames))
	for i := len(iso.frames) - 1; i >= 0; i-- {
		trace = append(trace, iso.frames[i].fn.Proto.Name)
	}
	return trace
}

func (iso *Isolate) fail(kind string, span source.Span, format string, args ...interface{}) *errors.RuntimeError {
	err := errors.NewRuntimeError(kind, span, format, args...)
	err.Trace = iso.stackTrace()
	return err
}

// run drives the dispatch loop until the outermost frame returns.
func (iso *Isolate) run() (Value, errors.EmberError) {
	var acc Value
	f := &iso.frames[len(iso.frames)-1]
	code := f.prog.Code
	consts := f.prog.Constants
	regs := iso.window(f)

	for {
		opIP := f.ip
		op := OpCode(code[f.ip])
		f.ip++
		if iso.trace {
			iso.traceInstruction(f.prog, opIP, acc)
		}

		switch op {
		case OpLoadConst:
			acc = consts[readUint16(code, f.ip)]
			f.ip += 2
		case OpLoadNone:
			acc = None
		case OpLoadTrue:
			acc = True
		case OpLoadFalse:
			acc = False
		case OpLoadSmallInt:
			acc = IntegerValue(int64(int16(readUint16(code, f.ip))))
			f.ip += 2

		case OpLoadLocal:
			acc = regs[code[f.ip]]
			f.ip++
		case OpStoreLocal:
			regs[code[f.ip]] = acc
			f.ip++
		case OpLoadGlobal:
			name, _ := consts[readUint16(code, f.ip)].AsString()
			f.ip += 2
			v, ok := iso.globals[name]
			if !ok {
				return None, iso.fail(errors.KindUndefinedName, f.prog.SpanAt(opIP), "undefined global %q", name)
			}
			acc = v
		case OpStoreGlobal:
			name, _ := consts[readUint16(code, f.ip)].AsString()
			f.ip += 2
			iso.globals[name] = acc
		case OpLoadCapture:
			acc = f.fn.Captures[code[f.ip]]
			f.ip++
		case OpStoreCapture:
			f.fn.Captures[code[f.ip]] = acc
			f.ip++

		case OpAdd, OpSub, OpMul, OpDiv, OpMod:
			lhs := regs[code[f.ip]]
			f.ip++
			v, err := iso.arith(op, lhs, acc, f.prog.SpanAt(opIP))
			if err != nil {
				return None, err
			}
			acc = v
		case OpNegate:
			if i, ok := acc.AsInteger(); ok {
				if i == math.MinInt64 {
					return None, iso.fail(errors.KindIntegerOverflow, f.prog.SpanAt(opIP), "integer overflow in negation")
				}
				acc = IntegerValue(-i)
			} else if fl, ok := acc.AsFloat(); ok {
				acc = FloatValue(-fl)
			} else {
				return None, iso.fail(errors.KindTypeMismatch, f.prog.SpanAt(opIP), "unsupported operand type for -: %s", acc.Type())
			}
		case OpNot:
			acc = BooleanValue(!acc.IsTruthy())

		case OpCmpEq:
			acc = BooleanValue(regs[code[f.ip]].Is(acc))
			f.ip++
		case OpCmpNe:
			acc = BooleanValue(!regs[code[f.ip]].Is(acc))
			f.ip++
		case OpCmpLt, OpCmpLe, OpCmpGt, OpCmpGe:
			lhs := regs[code[f.ip]]
			f.ip++
			v, err := iso.compare(op, lhs, acc, f.prog.SpanAt(opIP))
			if err != nil {
				return None, err
			}
			acc = v

		case OpJump:
			f.ip = int(readUint16(code, f.ip))
		case OpJumpIfFalse:
			target := int(readUint16(code, f.ip))
			f.ip += 2
			if !acc.IsTruthy() {
				f.ip = target
			}

		case OpCall:
			fnReg := int(code[f.ip])
			argc := int(code[f.ip+1])
			f.ip += 2
			pushed, v, err := iso.callValue(regs[fnReg], regs[fnReg+1:fnReg+1+argc], f.prog.SpanAt(opIP))
			if err != nil {
				return None, err
			}
			if pushed {
				f = &iso.frames[len(iso.frames)-1]
				code = f.prog.Code
				consts = f.prog.Constants
				regs = iso.window(f)
				// A fresh frame starts with an empty accumulator; the
				// caller's in-flight value must not leak into the callee.
				acc = None
			} else {
				acc = v
			}
		case OpReturn:
			iso.frames = iso.frames[:len(iso.frames)-1]
			if len(iso.frames) == 0 {
				return acc, nil
			}
			f = &iso.frames[len(iso.frames)-1]
			code = f.prog.Code
			consts = f.prog.Constants
			regs = iso.window(f)

		case OpMakeFunction:
			proto := f.prog.Protos[readUint16(code, f.ip)]
			f.ip += 2
			acc = FunctionValue(iso.makeFunction(f, regs, proto))
		case OpMakeClass:
			desc := &f.prog.Classes[readUint16(code, f.ip)]
			f.ip += 2
			v, err := iso.makeClass(f, regs, desc, acc)
			if err != nil {
				return None, err
			}
			acc = v
		case OpMakeInstance:
			clsReg := int(code[f.ip])
			pairs := int(code[f.ip+1])
			f.ip += 2
			v, err := iso.makeInstance(regs, clsReg, pairs, f.prog.SpanAt(opIP))
			if err != nil {
				return None, err
			}
			acc = v

		case OpGetField, OpGetMethod:
			name, _ := consts[readUint16(code, f.ip)].AsString()
			f.ip += 2
			v, err := iso.getField(acc, name, f.prog.SpanAt(opIP))
			if err != nil {
				return None, err
			}
			if op == OpGetMethod && !v.IsCallable() {
				return None, iso.fail(errors.KindTypeMismatch, f.prog.SpanAt(opIP), "attribute %q is not callable", name)
			}
			acc = v
		case OpSetField:
			target := regs[code[f.ip]]
			name, _ := consts[readUint16(code, f.ip+1)].AsString()
			f.ip += 3
			if err := iso.setField(target, name, acc, f.prog.SpanAt(opIP)); err != nil {
				return None, err
			}
		case OpGetSuper:
			name, _ := consts[readUint16(code, f.ip)].AsString()
			f.ip += 2
			v, err := iso.getSuper(f, regs, name, f.prog.SpanAt(opIP))
			if err != nil {
				return None, err
			}
			acc = v

		case OpPrint:
			fmt.Fprintln(iso.stdout, acc.Inspect())
		case OpPrintN:
			first := int(code[f.ip])
			count := int(code[f.ip+1])
			f.ip += 2
			for i := 0; i < count; i++ {
				if i > 0 {
					fmt.Fprint(iso.stdout, " ")
				}
				fmt.Fprint(iso.stdout, regs[first+i].Inspect())
			}
			fmt.Fprintln(iso.stdout)

		default:
			return None, iso.fail(errors.KindTypeMismatch, f.prog.SpanAt(opIP), "unknown opcode %d", byte(op))
		}
	}
}

func (iso *Isolate) traceInstruction(prog *Program, ip int, acc Value) {
	var sb strings.Builder
	prog.disassembleInstruction(&sb, ip)
	fmt.Fprintf(iso.traceOut, "[%s] acc=%-20s %s", prog.Name, acc.Inspect(), sb.String())
}

// arith evaluates lhs op rhs. Two integers stay integral with checked
// overflow; any float operand promotes to float arithmetic; Add also joins
// two strings.
func (iso *Isolate) arith(op OpCode, lhs, rhs Value, span source.Span) (Value, errors.EmberError) {
	if li, lok := lhs.AsInteger(); lok {
		if ri, rok := rhs.AsInteger(); rok {
			return iso.intArith(op, li, ri, span)
		}
	}
	if ln, lok := lhs.numeric(); lok {
		if rn, rok := rhs.numeric(); rok {
			return floatArith(op, ln, rn), nil
		}
	}
	if op == OpAdd {
		if ls, lok := lhs.AsString(); lok {
			if rs, rok := rhs.AsString(); rok {
				return StringValue(ls + rs), nil
			}
		}
	}
	return None, iso.fail(errors.KindTypeMismatch, span,
		"unsupported operand types for %s: %s and %s", opSymbol(op), lhs.Type(), rhs.Type())
}

func (iso *Isolate) intArith(op OpCode, a, b int64, span source.Span) (Value, errors.EmberError) {
	var r int64
	ok := true
	switch op {
	case OpAdd:
		r, ok = checkedAdd(a, b)
	case OpSub:
		r, ok = checkedSub(a, b)
	case OpMul:
		r, ok = checkedMul(a, b)
	case OpDiv:
		if b == 0 {
			return None, iso.fail(errors.KindDivisionByZero, span, "integer division by zero")
		}
		if a == math.MinInt64 && b == -1 {
			ok = false
		} else {
			r = a / b
		}
	case OpMod:
		if b == 0 {
			return None, iso.fail(errors.KindDivisionByZero, span, "integer modulo by zero")
		}
		if a == math.MinInt64 && b == -1 {
			r = 0
		} else {
			r = a % b
		}
	}
	if !ok {
		return None, iso.fail(errors.KindIntegerOverflow, span, "integer overflow in %s", opSymbol(op))
	}
	return IntegerValue(r), nil
}

func floatArith(op OpCode, a, b float64) Value {
	switch op {
	case OpAdd:
		return FloatValue(a + b)
	case OpSub:
		return FloatValue(a - b)
	case OpMul:
		return FloatValue(a * b)
	case OpDiv:
		return FloatValue(a / b)
	default:
		return FloatValue(math.Mod(a, b))
	}
}

// compare orders two numbers or two strings. Two integers order exactly on
// their int64 payloads; the float path is for mixed or float operands only.
func (iso *Isolate) compare(op OpCode, lhs, rhs Value, span source.Span) (Value, errors.EmberError) {
	var cmp int
	if li, lok := lhs.AsInteger(); lok {
		if ri, rok := rhs.AsInteger(); rok {
			switch {
			case li < ri:
				cmp = -1
			case li > ri:
				cmp = 1
			}
			return orderResult(op, cmp), nil
		}
	}
	if ln, lok := lhs.numeric(); lok {
		rn, rok := rhs.numeric()
		if !rok {
			return None, iso.compareFail(op, lhs, rhs, span)
		}
		switch {
		case ln < rn:
			cmp = -1
		case ln > rn:
			cmp = 1
		}
	} else if ls, lok := lhs.AsString(); lok {
		rs, rok := rhs.AsString()
		if !rok {
			return None, iso.compareFail(op, lhs, rhs, span)
		}
		switch {
		case ls < rs:
			cmp = -1
		case ls > rs:
			cmp = 1
		}
	} else {
		return None, iso.compareFail(op, lhs, rhs, span)
	}
	return orderResult(op, cmp), nil
}

func orderResult(op OpCode, cmp int) Value {
	switch op {
	case OpCmpLt:
		return BooleanValue(cmp < 0)
	case OpCmpLe:
		return BooleanValue(cmp <= 0)
	case OpCmpGt:
		return BooleanValue(cmp > 0)
	default:
		return BooleanValue(cmp >= 0)
	}
}

func (iso *Isolate) compareFail(op OpCode, lhs, rhs Value, span source.Span) errors.EmberError {
	return iso.fail(errors.KindTypeMismatch, span,
		"unsupported operand types for %s: %s and %s", opSymbol(op), lhs.Type(), rhs.Type())
}

func opSymbol(op OpCode) string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpMod:
		return "%"
	case OpCmpLt:
		return "<"
	case OpCmpLe:
		return "<="
	case OpCmpGt:
		return ">"
	case OpCmpGe:
		return ">="
	default:
		return op.String()
	}
}
