package vm

import (
	"strings"
	"testing"

	"github.com/ember-lang/ember/pkg/source"
)

func TestAddConstantDedup(t *testing.T) {
	p := &Program{}
	a := p.AddConstant(IntegerValue(1))
	b := p.AddConstant(IntegerValue(1))
	if a != b {
		t.Fatalf("equal integers interned at %d and %d", a, b)
	}
	// 1 and 1.0 compare equal but are distinct constants.
	c := p.AddConstant(FloatValue(1.0))
	if c == a {
		t.Fatal("integer and float constants must not share a pool slot")
	}
	d := p.AddConstant(StringValue("x"))
	e := p.AddConstant(StringValue("x"))
	if d != e {
		t.Fatalf("equal strings interned at %d and %d", d, e)
	}
	// Integers past 2^53 collapse under float64 comparison; the pool must
	// keep them apart.
	big := int64(1) << 53
	f := p.AddConstant(IntegerValue(big))
	g := p.AddConstant(IntegerValue(big + 1))
	if f == g {
		t.Fatalf("2^53 and 2^53+1 interned at the same slot %d", f)
	}
}

func TestSpanPerCodeByte(t *testing.T) {
	p := &Program{}
	span := source.Span{Start: 3, End: 9}
	p.WriteOp(OpLoadConst, span)
	p.WriteUint16(0, span)
	if len(p.Spans) != len(p.Code) {
		t.Fatalf("%d spans for %d code bytes", len(p.Spans), len(p.Code))
	}
	for off := range p.Code {
		if p.SpanAt(off) != span {
			t.Fatalf("span at %d = %v", off, p.SpanAt(off))
		}
	}
	if !p.SpanAt(99).IsZero() {
		t.Fatal("out of range offsets should map to the zero span")
	}
}

func validProgram() *Program {
	p := &Program{NumRegisters: 2}
	sp := source.NoSpan
	p.WriteOp(OpLoadSmallInt, sp)
	p.WriteUint16(1, sp)
	p.WriteOp(OpStoreLocal, sp)
	p.WriteByte(0, sp)
	p.WriteOp(OpLoadSmallInt, sp)
	p.WriteUint16(1, sp)
	p.WriteOp(OpAdd, sp)
	p.WriteByte(0, sp)
	p.WriteOp(OpReturn, sp)
	return p
}

func TestValidateAcceptsWellFormed(t *testing.T) {
	if err := validProgram().Validate(); err != nil {
		t.Fatalf("valid program rejected: %v", err)
	}
}

func TestValidateRejectsBadConstantIndex(t *testing.T) {
	p := &Program{NumRegisters: 1}
	p.WriteOp(OpLoadConst, source.NoSpan)
	p.WriteUint16(5, source.NoSpan)
	p.WriteOp(OpReturn, source.NoSpan)
	if err := p.Validate(); err == nil {
		t.Fatal("constant index past the pool should be rejected")
	}
}

func TestValidateRejectsBadRegister(t *testing.T) {
	p := &Program{NumRegisters: 1}
	p.WriteOp(OpLoadLocal, source.NoSpan)
	p.WriteByte(3, source.NoSpan)
	p.WriteOp(OpReturn, source.NoSpan)
	if err := p.Validate(); err == nil {
		t.Fatal("register past the frame size should be rejected")
	}
}

func TestValidateRejectsMidInstructionJump(t *testing.T) {
	p := &Program{NumRegisters: 1}
	p.WriteOp(OpJump, source.NoSpan)
	p.WriteUint16(1, source.NoSpan) // lands inside the Jump operand
	p.WriteOp(OpReturn, source.NoSpan)
	if err := p.Validate(); err == nil {
		t.Fatal("jump into the middle of an instruction should be rejected")
	}
}

func TestValidateRejectsTruncatedOperand(t *testing.T) {
	p := &Program{NumRegisters: 1}
	p.WriteOp(OpLoadConst, source.NoSpan)
	p.WriteByte(0, source.NoSpan) // one byte of a two-byte operand
	if err := p.Validate(); err == nil {
		t.Fatal("truncated operand should be rejected")
	}
}

func TestValidateRejectsCallPastFrame(t *testing.T) {
	p := &Program{NumRegisters: 2}
	p.WriteOp(OpCall, source.NoSpan)
	p.WriteByte(1, source.NoSpan)
	p.WriteByte(3, source.NoSpan) // callee at R1 plus 3 args needs R1..R4
	p.WriteOp(OpReturn, source.NoSpan)
	if err := p.Validate(); err == nil {
		t.Fatal("call window past the frame should be rejected")
	}
}

func TestValidateRejectsBadCapture(t *testing.T) {
	p := &Program{NumRegisters: 1, NumCaptures: 1}
	p.WriteOp(OpLoadCapture, source.NoSpan)
	p.WriteByte(2, source.NoSpan)
	p.WriteOp(OpReturn, source.NoSpan)
	if err := p.Validate(); err == nil {
		t.Fatal("capture index past the capture count should be rejected")
	}
}

func TestValidateRecursesIntoProtos(t *testing.T) {
	bad := &Program{Name: "inner", NumRegisters: 1}
	bad.WriteOp(OpLoadLocal, source.NoSpan)
	bad.WriteByte(7, source.NoSpan)
	bad.WriteOp(OpReturn, source.NoSpan)

	outer := validProgram()
	outer.Protos = append(outer.Protos, &FunctionProto{Name: "inner", Code: bad})
	if err := outer.Validate(); err == nil {
		t.Fatal("broken nested proto should be rejected")
	}
	if !strings.Contains(outer.Protos[0].Code.Name, "inner") {
		t.Fatal("sanity")
	}
}

func TestDisassembleFormat(t *testing.T) {
	p := validProgram()
	p.Name = "demo"
	out := p.Disassemble()
	for _, want := range []string{"== demo ==", "LoadSmallInt", "StoreLocal", "R0", "Add", "Return", "0000"} {
		if !strings.Contains(out, want) {
			t.Fatalf("disassembly missing %q:\n%s", want, out)
		}
	}
}

func TestPatchUint16(t *testing.T) {
	p := &Program{NumRegisters: 1}
	sp := source.NoSpan
	p.WriteOp(OpJump, sp)
	at := len(p.Code)
	p.WriteUint16(0xFFFF, sp)
	p.WriteOp(OpReturn, sp)
	p.PatchUint16(at, uint16(len(p.Code)-1))
	if err := p.Validate(); err != nil {
		t.Fatalf("patched jump rejected: %v", err)
	}
}
