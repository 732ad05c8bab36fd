package compiler

import (
	"math"

	"github.com/ember-lang/ember/pkg/ast"
	"github.com/ember-lang/ember/pkg/errors"
	"github.com/ember-lang/ember/pkg/vm"
)

// compileExpr emits code leaving the expression's value in the accumulator.
// On a diagnostic the accumulator is loaded with none so emission can
// continue and report every error in one pass.
func (fc *funcCompiler) compileExpr(expr ast.Expr) {
	switch e := expr.(type) {
	case *ast.IntLit:
		if e.Value >= math.MinInt16 && e.Value <= math.MaxInt16 {
			fc.emitUint16(vm.OpLoadSmallInt, uint16(int16(e.Value)), e.Span())
		} else {
			fc.emitConst(vm.IntegerValue(e.Value), e.Span())
		}
	case *ast.FloatLit:
		fc.emitConst(vm.FloatValue(e.Value), e.Span())
	case *ast.StringLit:
		fc.emitConst(vm.StringValue(e.Value), e.Span())
	case *ast.BoolLit:
		if e.Value {
			fc.emit(vm.OpLoadTrue, e.Span())
		} else {
			fc.emit(vm.OpLoadFalse, e.Span())
		}
	case *ast.NoneLit:
		fc.emit(vm.OpLoadNone, e.Span())
	case *ast.Ident:
		fc.compileIdent(e)
	case *ast.SelfExpr:
		fc.compileSelf(e)
	case *ast.Unary:
		fc.compileExpr(e.Right)
		switch e.Op {
		case ast.OpNeg:
			fc.emit(vm.OpNegate, e.Span())
		case ast.OpNot:
			fc.emit(vm.OpNot, e.Span())
		}
	case *ast.Binary:
		fc.compileBinary(e)
	case *ast.FieldAccess:
		fc.compileExpr(e.Target)
		fc.emitNameOp(vm.OpGetField, e.Name, e.Span())
	case *ast.SuperAccess:
		fc.compileSuper(e)
	case *ast.Call:
		fc.compileCall(e)
	default:
		fc.c.reportf(errors.KindInvalidAssignmentTarget, expr.Span(), "unsupported expression %T", expr)
		fc.emit(vm.OpLoadNone, expr.Span())
	}
}

func (fc *funcCompiler) compileIdent(e *ast.Ident) {
	sym, ok := fc.resolve(e.Name)
	if !ok {
		fc.c.reportf(errors.KindUndefinedName, e.Span(), "undefined name %s", e.Name)
		fc.emit(vm.OpLoadNone, e.Span())
		return
	}
	switch sym.kind {
	case symGlobal:
		fc.emitNameOp(vm.OpLoadGlobal, e.Name, e.Span())
	case symLocal:
		fc.emitReg(vm.OpLoadLocal, sym.slot, e.Span())
	case symCapture:
		fc.emitReg(vm.OpLoadCapture, sym.slot, e.Span())
	}
}

// compileSelf loads the receiver, which is only bound inside a method whose
// first parameter is named self.
func (fc *funcCompiler) compileSelf(e *ast.SelfExpr) {
	sym, ok := fc.resolve("self")
	if !ok {
		fc.c.reportf(errors.KindUndefinedName, e.Span(), "self used outside a method")
		fc.emit(vm.OpLoadNone, e.Span())
		return
	}
	switch sym.kind {
	case symLocal:
		fc.emitReg(vm.OpLoadLocal, sym.slot, e.Span())
	case symCapture:
		fc.emitReg(vm.OpLoadCapture, sym.slot, e.Span())
	default:
		fc.c.reportf(errors.KindUndefinedName, e.Span(), "self used outside a method")
		fc.emit(vm.OpLoadNone, e.Span())
	}
}

func (fc *funcCompiler) compileSuper(e *ast.SuperAccess) {
	// Home-class dispatch needs the running function itself to be a
	// method; closures nested inside one cannot use super.
	if !fc.proto.IsMethod {
		fc.c.reportf(errors.KindUndefinedName, e.Span(), "super used outside a method")
		fc.emit(vm.OpLoadNone, e.Span())
		return
	}
	fc.emitNameOp(vm.OpGetSuper, e.Name, e.Span())
}

// compileBinary evaluates the left operand into a spilled temporary, the
// right operand into the accumulator, then applies the register-accumulator
// instruction. and/or short-circuit instead.
func (fc *funcCompiler) compileBinary(e *ast.Binary) {
	switch e.Op {
	case ast.OpAnd:
		fc.compileExpr(e.Left)
		end := fc.emitJump(vm.OpJumpIfFalse, e.Span())
		fc.compileExpr(e.Right)
		fc.patchJump(end)
		return
	case ast.OpOr:
		fc.compileExpr(e.Left)
		rhs := fc.emitJump(vm.OpJumpIfFalse, e.Span())
		end := fc.emitJump(vm.OpJump, e.Span())
		fc.patchJump(rhs)
		fc.compileExpr(e.Right)
		fc.patchJump(end)
		return
	}

	fc.compileExpr(e.Left)
	lhs := fc.tempReg(e.Left.Span())
	fc.emitReg(vm.OpStoreLocal, lhs, e.Left.Span())
	fc.compileExpr(e.Right)
	var op vm.OpCode
	switch e.Op {
	case ast.OpAdd:
		op = vm.OpAdd
	case ast.OpSub:
		op = vm.OpSub
	case ast.OpMul:
		op = vm.OpMul
	case ast.OpDiv:
		op = vm.OpDiv
	case ast.OpMod:
		op = vm.OpMod
	case ast.OpEq:
		op = vm.OpCmpEq
	case ast.OpNe:
		op = vm.OpCmpNe
	case ast.OpLt:
		op = vm.OpCmpLt
	case ast.OpLe:
		op = vm.OpCmpLe
	case ast.OpGt:
		op = vm.OpCmpGt
	case ast.OpGe:
		op = vm.OpCmpGe
	}
	fc.emitReg(op, lhs, e.Span())
	fc.freeTemp(lhs)
}

// compileCall lays the callee and arguments out in a contiguous register
// run. Keyword arguments compile to class construction; a field-access
// callee resolves through GetMethod so non-callable attributes fail at the
// lookup with a clear message.
func (fc *funcCompiler) compileCall(e *ast.Call) {
	if len(e.KwArgs) > 0 {
		fc.compileConstruction(e)
		return
	}
	if len(e.Args) > MaxParams {
		fc.c.reportf(errors.KindArityDeclaration, e.Span(),
			"call passes %d arguments; the limit is %d", len(e.Args), MaxParams)
		fc.emit(vm.OpLoadNone, e.Span())
		return
	}
	base, ok := fc.tempRun(1+len(e.Args), e.Span())
	if !ok {
		fc.emit(vm.OpLoadNone, e.Span())
		return
	}
	if fa, isMethod := e.Callee.(*ast.FieldAccess); isMethod {
		fc.compileExpr(fa.Target)
		fc.emitNameOp(vm.OpGetMethod, fa.Name, fa.Span())
	} else {
		fc.compileExpr(e.Callee)
	}
	fc.emitReg(vm.OpStoreLocal, base, e.Callee.Span())
	for i, arg := range e.Args {
		fc.compileExpr(arg)
		fc.emitReg(vm.OpStoreLocal, base+1+Register(i), arg.Span())
	}
	fc.emitRegPair(vm.OpCall, base, Register(len(e.Args)), e.Span())
	fc.freeRun(base, 1+len(e.Args))
}

// compileConstruction emits MakeInstance: the class value followed by
// (name, value) register pairs for each keyword override.
func (fc *funcCompiler) compileConstruction(e *ast.Call) {
	if len(e.Args) > 0 {
		fc.c.reportf(errors.KindInvalidAssignmentTarget, e.Span(),
			"cannot mix positional and keyword arguments")
		fc.emit(vm.OpLoadNone, e.Span())
		return
	}
	if len(e.KwArgs) > MaxParams/2 {
		fc.c.reportf(errors.KindArityDeclaration, e.Span(),
			"construction passes %d keyword arguments; the limit is %d", len(e.KwArgs), MaxParams/2)
		fc.emit(vm.OpLoadNone, e.Span())
		return
	}
	seen := make(map[string]bool, len(e.KwArgs))
	for _, kw := range e.KwArgs {
		if seen[kw.Name] {
			fc.c.reportf(errors.KindDuplicateDeclaration, kw.Span(),
				"keyword argument %s given more than once", kw.Name)
		}
		seen[kw.Name] = true
	}
	base, ok := fc.tempRun(1+2*len(e.KwArgs), e.Span())
	if !ok {
		fc.emit(vm.OpLoadNone, e.Span())
		return
	}
	fc.compileExpr(e.Callee)
	fc.emitReg(vm.OpStoreLocal, base, e.Callee.Span())
	for i, kw := range e.KwArgs {
		fc.emitConst(vm.StringValue(kw.Name), kw.Span())
		fc.emitReg(vm.OpStoreLocal, base+1+Register(2*i), kw.Span())
		fc.compileExpr(kw.Value)
		fc.emitReg(vm.OpStoreLocal, base+2+Register(2*i), kw.Value.Span())
	}
	fc.emitRegPair(vm.OpMakeInstance, base, Register(len(e.KwArgs)), e.Span())
	fc.freeRun(base, 1+2*len(e.KwArgs))
}
