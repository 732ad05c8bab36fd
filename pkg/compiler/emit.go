package compiler

import (
	"math"

	"github.com/ember-lang/ember/pkg/errors"
	"github.com/ember-lang/ember/pkg/source"
	"github.com/ember-lang/ember/pkg/vm"
)

// placeholderTarget fills jump operands until patchJump runs. Validation
// rejects it if a patch site is ever forgotten.
const placeholderTarget = 0xFFFF

func (fc *funcCompiler) emit(op vm.OpCode, span source.Span) {
	fc.prog.WriteOp(op, span)
}

func (fc *funcCompiler) emitReg(op vm.OpCode, r Register, span source.Span) {
	fc.prog.WriteOp(op, span)
	fc.prog.WriteByte(r, span)
}

func (fc *funcCompiler) emitRegPair(op vm.OpCode, a, b Register, span source.Span) {
	fc.prog.WriteOp(op, span)
	fc.prog.WriteByte(a, span)
	fc.prog.WriteByte(b, span)
}

func (fc *funcCompiler) emitUint16(op vm.OpCode, v uint16, span source.Span) {
	fc.prog.WriteOp(op, span)
	fc.prog.WriteUint16(v, span)
}

// constant interns v, reporting a diagnostic when the pool is full.
func (fc *funcCompiler) constant(v vm.Value, span source.Span) uint16 {
	if len(fc.prog.Constants) > math.MaxUint16 {
		fc.c.reportf(errors.KindLimitExceeded, span, "constant pool limit of %d exceeded", math.MaxUint16+1)
		return 0
	}
	return fc.prog.AddConstant(v)
}

// emitConst loads the interned constant into the accumulator.
func (fc *funcCompiler) emitConst(v vm.Value, span source.Span) {
	fc.emitUint16(vm.OpLoadConst, fc.constant(v, span), span)
}

// emitNameOp emits an opcode whose operand is an interned name constant.
func (fc *funcCompiler) emitNameOp(op vm.OpCode, name string, span source.Span) {
	fc.emitUint16(op, fc.constant(vm.StringValue(name), span), span)
}

// emitSetField stores the accumulator into a named field of the object in
// the given register.
func (fc *funcCompiler) emitSetField(obj Register, name string, span source.Span) {
	fc.prog.WriteOp(vm.OpSetField, span)
	fc.prog.WriteByte(obj, span)
	fc.prog.WriteUint16(fc.constant(vm.StringValue(name), span), span)
}

// emitJump writes a forward jump with a placeholder target and returns the
// operand offset for patchJump.
func (fc *funcCompiler) emitJump(op vm.OpCode, span source.Span) int {
	fc.prog.WriteOp(op, span)
	at := len(fc.prog.Code)
	fc.prog.WriteUint16(placeholderTarget, span)
	return at
}

// patchJump points a placeholder at the current end of code.
func (fc *funcCompiler) patchJump(operandAt int) {
	fc.prog.PatchUint16(operandAt, uint16(len(fc.prog.Code)))
}

// emitJumpTo writes a jump to an already-known target.
func (fc *funcCompiler) emitJumpTo(op vm.OpCode, target int, span source.Span) {
	fc.emitUint16(op, uint16(target), span)
}

// here is the offset the next instruction will occupy.
func (fc *funcCompiler) here() int {
	return len(fc.prog.Code)
}

// tempReg claims a temporary slot, reporting a diagnostic on frame
// overflow. The zero register is returned on failure so emission can limp
// on and surface every remaining error.
func (fc *funcCompiler) tempReg(span source.Span) Register {
	r, ok := fc.alloc.Alloc()
	if !ok {
		fc.overflowed = true
		fc.c.reportf(errors.KindLimitExceeded, span, "function %s needs more than %d registers", fc.proto.Name, MaxRegisters)
		return 0
	}
	return r
}

// tempRun claims n contiguous temporaries.
func (fc *funcCompiler) tempRun(n int, span source.Span) (Register, bool) {
	r, ok := fc.alloc.AllocRun(n)
	if !ok {
		fc.overflowed = true
		fc.c.reportf(errors.KindLimitExceeded, span, "function %s needs more than %d registers", fc.proto.Name, MaxRegisters)
		return 0, false
	}
	return r, true
}
