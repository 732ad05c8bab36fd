package vm

import (
	"fmt"
	"strings"

	"github.com/ember-lang/ember/pkg/source"
)

// OpCode identifies a VM instruction. Operands follow the opcode byte;
// 16-bit operands are big-endian.
type OpCode byte

const (
	// Constants and immediates. The accumulator receives the result.
	OpLoadConst    OpCode = iota // k16: acc = constants[k]
	OpLoadNone                   // acc = none
	OpLoadTrue                   // acc = true
	OpLoadFalse                  // acc = false
	OpLoadSmallInt               // i16: acc = signed immediate

	// Register and slot traffic.
	OpLoadLocal    // s8: acc = reg[s]
	OpStoreLocal   // s8: reg[s] = acc
	OpLoadGlobal   // k16: acc = globals[constants[k]]
	OpStoreGlobal  // k16: globals[constants[k]] = acc
	OpLoadCapture  // c8: acc = captures[c]
	OpStoreCapture // c8: captures[c] = acc

	// Arithmetic and logic, left operand in a register, right in acc.
	OpAdd    // r8: acc = reg[r] + acc
	OpSub    // r8
	OpMul    // r8
	OpDiv    // r8
	OpMod    // r8
	OpNegate // acc = -acc
	OpNot    // acc = !truthy(acc)

	// Comparison, same operand convention as arithmetic.
	OpCmpEq // r8
	OpCmpNe // r8
	OpCmpLt // r8
	OpCmpLe // r8
	OpCmpGt // r8
	OpCmpGe // r8

	// Control flow. Targets are absolute code offsets.
	OpJump        // t16
	OpJumpIfFalse // t16: branch when acc is falsy; acc is preserved

	// Calls. Callee in reg[f], arguments in reg[f+1..f+n].
	OpCall   // f8 n8: acc = result
	OpReturn // return acc to the caller

	// Object model.
	OpMakeFunction // p16: acc = function from protos[p]
	OpMakeClass    // d16: acc = class from classes[d]; superclass in acc when derived
	OpMakeInstance // f8 n8: class in reg[f], n keyword pairs in reg[f+1..f+2n]
	OpGetField     // k16: acc = attribute constants[k] of acc
	OpSetField     // r8 k16: field constants[k] of reg[r] = acc
	OpGetMethod    // k16: like GetField but the result must be callable
	OpGetSuper     // k16: acc = superclass method constants[k] bound to the receiver

	// Output.
	OpPrint  // print acc
	OpPrintN // f8 n8: print reg[f..f+n) space-separated
)

// operand kinds drive validation and disassembly.
type opKind uint8

const (
	kConst   opKind = iota // u16 index into Constants
	kJump                  // u16 absolute target, must hit an instruction boundary
	kImm16                 // i16 immediate
	kReg                   // u8 register, < NumRegisters
	kCapture               // u8 capture slot, < NumCaptures
	kCount                 // u8 count, checked together with its base register
	kProto                 // u16 index into Protos
	kClass                 // u16 index into Classes
)

type opInfo struct {
	name     string
	operands []opKind
}

var opTable = map[OpCode]opInfo{
	OpLoadConst:    {"LoadConst", []opKind{kConst}},
	OpLoadNone:     {"LoadNone", nil},
	OpLoadTrue:     {"LoadTrue", nil},
	OpLoadFalse:    {"LoadFalse", nil},
	OpLoadSmallInt: {"LoadSmallInt", []opKind{kImm16}},
	OpLoadLocal:    {"LoadLocal", []opKind{kReg}},
	OpStoreLocal:   {"StoreLocal", []opKind{kReg}},
	OpLoadGlobal:   {"LoadGlobal", []opKind{kConst}},
	OpStoreGlobal:  {"StoreGlobal", []opKind{kConst}},
	OpLoadCapture:  {"LoadCapture", []opKind{kCapture}},
	OpStoreCapture: {"StoreCapture", []opKind{kCapture}},
	OpAdd:          {"Add", []opKind{kReg}},
	OpSub:          {"Sub", []opKind{kReg}},
	OpMul:          {"Mul", []opKind{kReg}},
	OpDiv:          {"Div", []opKind{kReg}},
	OpMod:          {"Mod", []opKind{kReg}},
	OpNegate:       {"Negate", nil},
	OpNot:          {"Not", nil},
	OpCmpEq:        {"CmpEq", []opKind{kReg}},
	OpCmpNe:        {"CmpNe", []opKind{kReg}},
	OpCmpLt:        {"CmpLt", []opKind{kReg}},
	OpCmpLe:        {"CmpLe", []opKind{kReg}},
	OpCmpGt:        {"CmpGt", []opKind{kReg}},
	OpCmpGe:        {"CmpGe", []opKind{kReg}},
	OpJump:         {"Jump", []opKind{kJump}},
	OpJumpIfFalse:  {"JumpIfFalse", []opKind{kJump}},
	OpCall:         {"Call", []opKind{kReg, kCount}},
	OpReturn:       {"Return", nil},
	OpMakeFunction: {"MakeFunction", []opKind{kProto}},
	OpMakeClass:    {"MakeClass", []opKind{kClass}},
	OpMakeInstance: {"MakeInstance", []opKind{kReg, kCount}},
	OpGetField:     {"GetField", []opKind{kConst}},
	OpSetField:     {"SetField", []opKind{kReg, kConst}},
	OpGetMethod:    {"GetMethod", []opKind{kConst}},
	OpGetSuper:     {"GetSuper", []opKind{kConst}},
	OpPrint:        {"Print", nil},
	OpPrintN:       {"PrintN", []opKind{kReg, kCount}},
}

// String returns the mnemonic.
func (op OpCode) String() string {
	if info, ok := opTable[op]; ok {
		return info.name
	}
	return fmt.Sprintf("Op(%d)", byte(op))
}

func operandSize(k opKind) int {
	switch k {
	case kConst, kJump, kImm16, kProto, kClass:
		return 2
	default:
		return 1
	}
}

// MethodDesc names a method and points at the proto holding its body.
type MethodDesc struct {
	Name  string
	Proto uint16
}

// ClassDesc is the compile-time description a MakeClass instantiates:
// the class name, its own field templates (defaults are constants), its
// method table, and whether a superclass value is expected in the
// accumulator.
type ClassDesc struct {
	Name     string
	HasSuper bool
	Fields   []FieldTemplate
	Methods  []MethodDesc
}

// Program is one compiled function body: code, the constants it references,
// the protos and class descriptors it instantiates, and a span per code
// byte for diagnostics. The register and capture counts bound every operand.
type Program struct {
	Name         string
	Code         []byte
	Constants    []Value
	Protos       []*FunctionProto
	Classes      []ClassDesc
	Spans        []source.Span
	NumRegisters int
	NumCaptures  int

	validated bool
}

// WriteOp appends an opcode byte with its source span.
func (p *Program) WriteOp(op OpCode, span source.Span) {
	p.Code = append(p.Code, byte(op))
	p.Spans = append(p.Spans, span)
}

// WriteByte appends a one-byte operand.
func (p *Program) WriteByte(b byte, span source.Span) {
	p.Code = append(p.Code, b)
	p.Spans = append(p.Spans, span)
}

// WriteUint16 appends a two-byte big-endian operand.
func (p *Program) WriteUint16(v uint16, span source.Span) {
	p.Code = append(p.Code, byte(v>>8), byte(v))
	p.Spans = append(p.Spans, span, span)
}

// PatchUint16 overwrites a previously written two-byte operand in place.
func (p *Program) PatchUint16(offset int, v uint16) {
	p.Code[offset] = byte(v >> 8)
	p.Code[offset+1] = byte(v)
}

// AddConstant interns a value in the constant pool, reusing an existing
// entry when one with the same tag and value is present.
func (p *Program) AddConstant(v Value) uint16 {
	for i, c := range p.Constants {
		if c.Type() == v.Type() && c.Is(v) {
			return uint16(i)
		}
	}
	p.Constants = append(p.Constants, v)
	return uint16(len(p.Constants) - 1)
}

// SpanAt returns the source span recorded for the given code offset.
func (p *Program) SpanAt(offset int) source.Span {
	if offset < 0 || offset >= len(p.Spans) {
		return source.NoSpan
	}
	return p.Spans[offset]
}

func readUint16(code []byte, at int) uint16 {
	return uint16(code[at])<<8 | uint16(code[at+1])
}

// Validate range-checks every operand: constant, proto and class indices
// against their tables, registers against the frame size, captures against
// the capture count, and jump targets against instruction boundaries.
// Nested protos are validated too. A validated program executes without
// per-instruction bounds checks failing.
func (p *Program) Validate() error {
	if p.validated {
		return nil
	}
	boundaries := make(map[int]bool, len(p.Code)/2)
	type jumpSite struct{ at, target int }
	var jumps []jumpSite

	for ip := 0; ip < len(p.Code); {
		boundaries[ip] = true
		op := OpCode(p.Code[ip])
		info, ok := opTable[op]
		if !ok {
			return fmt.Errorf("%s: unknown opcode %d at offset %d", p.Name, p.Code[ip], ip)
		}
		at := ip + 1
		var baseReg, count int = -1, -1
		for _, kind := range info.operands {
			size := operandSize(kind)
			if at+size > len(p.Code) {
				return fmt.Errorf("%s: truncated %s at offset %d", p.Name, info.name, ip)
			}
			switch kind {
			case kConst:
				k := int(readUint16(p.Code, at))
				if k >= len(p.Constants) {
					return fmt.Errorf("%s: %s at offset %d: constant %d out of range (pool size %d)", p.Name, info.name, ip, k, len(p.Constants))
				}
			case kJump:
				jumps = append(jumps, jumpSite{ip, int(readUint16(p.Code, at))})
			case kProto:
				k := int(readUint16(p.Code, at))
				if k >= len(p.Protos) {
					return fmt.Errorf("%s: %s at offset %d: proto %d out of range", p.Name, info.name, ip, k)
				}
			case kClass:
				k := int(readUint16(p.Code, at))
				if k >= len(p.Classes) {
					return fmt.Errorf("%s: %s at offset %d: class %d out of range", p.Name, info.name, ip, k)
				}
			case kReg:
				r := int(p.Code[at])
				if r >= p.NumRegisters {
					return fmt.Errorf("%s: %s at offset %d: register %d out of range (frame size %d)", p.Name, info.name, ip, r, p.NumRegisters)
				}
				baseReg = r
			case kCapture:
				c := int(p.Code[at])
				if c >= p.NumCaptures {
					return fmt.Errorf("%s: %s at offset %d: capture %d out of range", p.Name, info.name, ip, c)
				}
			case kCount:
				count = int(p.Code[at])
			}
			at += size
		}
		if count >= 0 && baseReg >= 0 {
			span := count
			if op == OpCall {
				span = count + 1 // callee plus arguments
			}
			if op == OpMakeInstance {
				span = 2*count + 1 // class plus keyword pairs
			}
			if baseReg+span > p.NumRegisters {
				return fmt.Errorf("%s: %s at offset %d: registers %d..%d exceed frame size %d", p.Name, info.name, ip, baseReg, baseReg+span-1, p.NumRegisters)
			}
		}
		ip = at
	}
	for _, j := range jumps {
		if !boundaries[j.target] {
			return fmt.Errorf("%s: jump at offset %d targets %d, not an instruction boundary", p.Name, j.at, j.target)
		}
	}
	for _, desc := range p.Classes {
		for _, m := range desc.Methods {
			if int(m.Proto) >= len(p.Protos) {
				return fmt.Errorf("%s: class %s method %s: proto %d out of range", p.Name, desc.Name, m.Name, m.Proto)
			}
		}
	}
	for _, proto := range p.Protos {
		if proto.Code == nil {
			return fmt.Errorf("%s: proto %s has no code", p.Name, proto.Name)
		}
		if len(proto.Captures) != proto.Code.NumCaptures {
			return fmt.Errorf("%s: proto %s declares %d captures but its code expects %d", p.Name, proto.Name, len(proto.Captures), proto.Code.NumCaptures)
		}
		if err := proto.Code.Validate(); err != nil {
			return err
		}
	}
	p.validated = true
	return nil
}

// Disassemble renders the program and every nested proto as text.
func (p *Program) Disassemble() string {
	var sb strings.Builder
	p.disassemble(&sb)
	return sb.String()
}

func (p *Program) disassemble(sb *strings.Builder) {
	fmt.Fprintf(sb, "== %s == (%d registers, %d constants)\n", p.Name, p.NumRegisters, len(p.Constants))
	for ip := 0; ip < len(p.Code); {
		ip = p.disassembleInstruction(sb, ip)
	}
	for _, proto := range p.Protos {
		sb.WriteByte('\n')
		proto.Code.disassemble(sb)
	}
}

func (p *Program) disassembleInstruction(sb *strings.Builder, ip int) int {
	op := OpCode(p.Code[ip])
	info, ok := opTable[op]
	if !ok {
		fmt.Fprintf(sb, "%04d %-16s\n", ip, fmt.Sprintf("Op(%d)", p.Code[ip]))
		return ip + 1
	}
	fmt.Fprintf(sb, "%04d %-16s", ip, info.name)
	at := ip + 1
	for _, kind := range info.operands {
		switch kind {
		case kConst:
			k := readUint16(p.Code, at)
			fmt.Fprintf(sb, " %d (%s)", k, p.Constants[k].Inspect())
		case kJump:
			fmt.Fprintf(sb, " -> %d", readUint16(p.Code, at))
		case kImm16:
			fmt.Fprintf(sb, " %d", int16(readUint16(p.Code, at)))
		case kProto:
			k := readUint16(p.Code, at)
			fmt.Fprintf(sb, " %d (%s)", k, p.Protos[k].Name)
		case kClass:
			k := readUint16(p.Code, at)
			fmt.Fprintf(sb, " %d (%s)", k, p.Classes[k].Name)
		case kReg:
			fmt.Fprintf(sb, " R%d", p.Code[at])
		case kCapture:
			fmt.Fprintf(sb, " C%d", p.Code[at])
		case kCount:
			fmt.Fprintf(sb, " #%d", p.Code[at])
		}
		at += operandSize(kind)
	}
	sb.WriteByte('\n')
	return at
}
