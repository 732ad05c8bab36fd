package compiler

import (
	"github.com/ember-lang/ember/pkg/ast"
	"github.com/ember-lang/ember/pkg/errors"
	"github.com/ember-lang/ember/pkg/source"
	"github.com/ember-lang/ember/pkg/vm"
)

// MaxParams bounds the declared parameter count; call sites encode the
// argument count in one byte.
const MaxParams = 255

// Options configures a compilation.
type Options struct {
	// GlobalNames seeds the global scope with names the host has already
	// bound (builtins, embedder natives). References to them compile to
	// global loads instead of UndefinedName diagnostics.
	GlobalNames []string
}

// Compiler turns a resolved syntax tree into an executable Program.
// Diagnostics accumulate: a failed construct compiles to a placeholder and
// compilation continues, so one pass reports every error in the tree.
type Compiler struct {
	opts    Options
	globals map[string]bool
	errs    []errors.EmberError
}

// New creates a compiler.
func New(opts Options) *Compiler {
	c := &Compiler{opts: opts, globals: make(map[string]bool)}
	for _, name := range opts.GlobalNames {
		c.globals[name] = true
	}
	return c
}

// Compile compiles one program tree. The returned Program is complete and
// validated whenever the error slice is empty; with diagnostics present it
// must not be executed.
func (c *Compiler) Compile(prog *ast.Program) (*vm.Program, []errors.EmberError) {
	c.predeclareGlobals(prog)

	fc := newFuncCompiler(c, nil, "<main>", false)
	fc.enterScope()
	for _, stmt := range prog.Statements {
		fc.compileStmt(stmt)
	}
	// The value of a trailing expression statement is the program result.
	var endSpan source.Span
	if n := len(prog.Statements); n > 0 {
		endSpan = prog.Statements[n-1].Span()
	}
	if !endsWithExprStmt(prog.Statements) {
		fc.emit(vm.OpLoadNone, endSpan)
	}
	fc.emit(vm.OpReturn, endSpan)
	fc.leaveScope()
	fc.finish()

	if len(c.errs) > 0 {
		return nil, c.errs
	}
	if err := fc.prog.Validate(); err != nil {
		// A validation failure on clean input is a compiler bug; surface it
		// rather than handing the VM a broken program.
		c.reportf(errors.KindLimitExceeded, source.NoSpan, "internal error: %v", err)
		return nil, c.errs
	}
	return fc.prog, nil
}

func endsWithExprStmt(stmts []ast.Stmt) bool {
	if len(stmts) == 0 {
		return false
	}
	_, ok := stmts[len(stmts)-1].(*ast.ExprStmt)
	return ok
}

// predeclareGlobals enters every top-level declared name into the global
// table before any body compiles, so definitions may reference globals
// declared later in the script. Duplicates are reported here.
func (c *Compiler) predeclareGlobals(prog *ast.Program) {
	declared := make(map[string]source.Span)
	for _, stmt := range prog.Statements {
		var name *ast.Ident
		switch s := stmt.(type) {
		case *ast.VarDecl:
			name = s.Name
		case *ast.FuncDecl:
			name = s.Name
		case *ast.ClassDecl:
			name = s.Name
		default:
			continue
		}
		if prev, ok := declared[name.Name]; ok {
			c.reportf(errors.KindDuplicateDeclaration, name.Span(),
				"%s is already declared at this scope (previous declaration at offset %d)", name.Name, prev.Start)
			continue
		}
		declared[name.Name] = name.Span()
		c.globals[name.Name] = true
	}
}

func (c *Compiler) reportf(kind string, span source.Span, format string, args ...interface{}) {
	c.errs = append(c.errs, errors.NewCompileError(kind, span, format, args...))
}

// loopContext tracks the innermost loop's jump targets while its body
// compiles. The continue target is known up front; break sites are patched
// when the loop closes.
type loopContext struct {
	continueTarget int
	breakSites     []int
}

// funcCompiler compiles one function body. Nested declarations get their
// own funcCompiler chained through enclosing for capture resolution.
type funcCompiler struct {
	c          *Compiler
	enclosing  *funcCompiler
	prog       *vm.Program
	proto      *vm.FunctionProto
	alloc      *Allocator
	scopes     []*scope
	captures   map[string]*symbol
	loops      []loopContext
	overflowed bool
}

func newFuncCompiler(c *Compiler, enclosing *funcCompiler, name string, isMethod bool) *funcCompiler {
	prog := &vm.Program{Name: name}
	return &funcCompiler{
		c:         c,
		enclosing: enclosing,
		prog:      prog,
		proto:     &vm.FunctionProto{Name: name, IsMethod: isMethod, Code: prog},
		alloc:     NewAllocator(),
		captures:  map[string]*symbol{},
	}
}

// finish seals the program once emission is done.
func (fc *funcCompiler) finish() {
	fc.prog.NumRegisters = fc.alloc.High()
	fc.prog.NumCaptures = len(fc.proto.Captures)
}

func (fc *funcCompiler) enterScope() {
	fc.alloc.EnterScope()
	fc.scopes = append(fc.scopes, newScope())
}

func (fc *funcCompiler) leaveScope() {
	fc.scopes = fc.scopes[:len(fc.scopes)-1]
	fc.alloc.LeaveScope()
}

// atTopLevel reports whether a declaration here creates a global.
func (fc *funcCompiler) atTopLevel() bool {
	return fc.enclosing == nil && len(fc.scopes) == 1
}

func (fc *funcCompiler) freeTemp(r Register) {
	if fc.overflowed {
		return
	}
	fc.alloc.Free(r)
}

func (fc *funcCompiler) freeRun(r Register, n int) {
	if fc.overflowed {
		return
	}
	fc.alloc.FreeRun(r, n)
}

// --- Statements ---

func (fc *funcCompiler) compileStmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.VarDecl:
		fc.compileVarDecl(s)
	case *ast.Assign:
		fc.compileAssign(s)
	case *ast.ExprStmt:
		fc.compileExpr(s.Value)
	case *ast.Block:
		fc.enterScope()
		for _, inner := range s.Statements {
			fc.compileStmt(inner)
		}
		fc.leaveScope()
	case *ast.If:
		fc.compileIf(s)
	case *ast.While:
		fc.compileWhile(s)
	case *ast.Loop:
		fc.compileLoop(s)
	case *ast.Break:
		fc.compileBreak(s)
	case *ast.Continue:
		fc.compileContinue(s)
	case *ast.Return:
		if s.Value != nil {
			fc.compileExpr(s.Value)
		} else {
			fc.emit(vm.OpLoadNone, s.Span())
		}
		fc.emit(vm.OpReturn, s.Span())
	case *ast.Print:
		fc.compilePrint(s)
	case *ast.FuncDecl:
		fc.compileFuncDecl(s)
	case *ast.ClassDecl:
		fc.compileClassDecl(s)
	default:
		fc.c.reportf(errors.KindInvalidAssignmentTarget, stmt.Span(), "unsupported statement %T", stmt)
	}
}

func (fc *funcCompiler) compileVarDecl(s *ast.VarDecl) {
	fc.compileExpr(s.Value)
	if fc.atTopLevel() {
		// Predeclared; just bind the value.
		fc.emitNameOp(vm.OpStoreGlobal, s.Name.Name, s.Name.Span())
		return
	}
	if prev, ok := fc.declaredInCurrentScope(s.Name.Name); ok {
		fc.c.reportf(errors.KindDuplicateDeclaration, s.Name.Span(),
			"%s is already declared at this scope (previous declaration at offset %d)", s.Name.Name, prev.decl.Start)
		fc.emitReg(vm.OpStoreLocal, prev.slot, s.Name.Span())
		return
	}
	slot := fc.tempReg(s.Name.Span())
	fc.declareLocal(s.Name.Name, slot, s.Name.Span())
	fc.emitReg(vm.OpStoreLocal, slot, s.Name.Span())
}

func (fc *funcCompiler) compileAssign(s *ast.Assign) {
	switch target := s.Target.(type) {
	case *ast.Ident:
		fc.compileExpr(s.Value)
		sym, ok := fc.resolve(target.Name)
		if !ok {
			fc.c.reportf(errors.KindUndefinedName, target.Span(), "undefined name %s", target.Name)
			return
		}
		switch sym.kind {
		case symGlobal:
			fc.emitNameOp(vm.OpStoreGlobal, target.Name, target.Span())
		case symLocal:
			fc.emitReg(vm.OpStoreLocal, sym.slot, target.Span())
		case symCapture:
			fc.emitReg(vm.OpStoreCapture, sym.slot, target.Span())
		}
	case *ast.FieldAccess:
		fc.compileExpr(target.Target)
		obj := fc.tempReg(target.Span())
		fc.emitReg(vm.OpStoreLocal, obj, target.Span())
		fc.compileExpr(s.Value)
		fc.emitSetField(obj, target.Name, target.Span())
		fc.freeTemp(obj)
	default:
		fc.c.reportf(errors.KindInvalidAssignmentTarget, s.Target.Span(),
			"cannot assign to this expression")
		fc.compileExpr(s.Value)
	}
}

func (fc *funcCompiler) compileIf(s *ast.If) {
	fc.compileExpr(s.Cond)
	elseJump := fc.emitJump(vm.OpJumpIfFalse, s.Cond.Span())
	fc.compileStmt(s.Then)
	if s.Else != nil {
		endJump := fc.emitJump(vm.OpJump, s.Span())
		fc.patchJump(elseJump)
		fc.compileStmt(s.Else)
		fc.patchJump(endJump)
	} else {
		fc.patchJump(elseJump)
	}
}

func (fc *funcCompiler) compileWhile(s *ast.While) {
	condStart := fc.here()
	fc.compileExpr(s.Cond)
	exitJump := fc.emitJump(vm.OpJumpIfFalse, s.Cond.Span())
	fc.loops = append(fc.loops, loopContext{continueTarget: condStart})
	fc.compileStmt(s.Body)
	fc.emitJumpTo(vm.OpJump, condStart, s.Span())
	fc.patchJump(exitJump)
	fc.closeLoop()
}

func (fc *funcCompiler) compileLoop(s *ast.Loop) {
	start := fc.here()
	fc.loops = append(fc.loops, loopContext{continueTarget: start})
	fc.compileStmt(s.Body)
	fc.emitJumpTo(vm.OpJump, start, s.Span())
	fc.closeLoop()
}

// closeLoop pops the loop context and lands its break sites here.
func (fc *funcCompiler) closeLoop() {
	ctx := fc.loops[len(fc.loops)-1]
	fc.loops = fc.loops[:len(fc.loops)-1]
	for _, site := range ctx.breakSites {
		fc.patchJump(site)
	}
}

func (fc *funcCompiler) compileBreak(s *ast.Break) {
	if len(fc.loops) == 0 {
		fc.c.reportf(errors.KindBreakOrContinueOutsideLoop, s.Span(), "break outside a loop")
		return
	}
	ctx := &fc.loops[len(fc.loops)-1]
	ctx.breakSites = append(ctx.breakSites, fc.emitJump(vm.OpJump, s.Span()))
}

func (fc *funcCompiler) compileContinue(s *ast.Continue) {
	if len(fc.loops) == 0 {
		fc.c.reportf(errors.KindBreakOrContinueOutsideLoop, s.Span(), "continue outside a loop")
		return
	}
	fc.emitJumpTo(vm.OpJump, fc.loops[len(fc.loops)-1].continueTarget, s.Span())
}

func (fc *funcCompiler) compilePrint(s *ast.Print) {
	switch len(s.Values) {
	case 0:
		fc.emitConst(vm.StringValue(""), s.Span())
		fc.emit(vm.OpPrint, s.Span())
	case 1:
		fc.compileExpr(s.Values[0])
		fc.emit(vm.OpPrint, s.Span())
	default:
		base, ok := fc.tempRun(len(s.Values), s.Span())
		if !ok {
			return
		}
		for i, v := range s.Values {
			fc.compileExpr(v)
			fc.emitReg(vm.OpStoreLocal, base+Register(i), v.Span())
		}
		fc.emitRegPair(vm.OpPrintN, base, Register(len(s.Values)), s.Span())
		fc.freeRun(base, len(s.Values))
	}
}

func (fc *funcCompiler) compileFuncDecl(s *ast.FuncDecl) {
	proto := fc.compileFunctionBody(s.Name.Name, s.Params, s.Body, false, s.Span())
	idx := uint16(len(fc.prog.Protos))
	fc.prog.Protos = append(fc.prog.Protos, proto)
	fc.emitUint16(vm.OpMakeFunction, idx, s.Span())
	fc.bindDeclaration(s.Name)
}

// bindDeclaration stores the accumulator under a declared name: a global
// at the top level, a fresh local slot otherwise.
func (fc *funcCompiler) bindDeclaration(name *ast.Ident) {
	if fc.atTopLevel() {
		fc.emitNameOp(vm.OpStoreGlobal, name.Name, name.Span())
		return
	}
	if prev, ok := fc.declaredInCurrentScope(name.Name); ok {
		fc.c.reportf(errors.KindDuplicateDeclaration, name.Span(),
			"%s is already declared at this scope (previous declaration at offset %d)", name.Name, prev.decl.Start)
		fc.emitReg(vm.OpStoreLocal, prev.slot, name.Span())
		return
	}
	slot := fc.tempReg(name.Span())
	fc.declareLocal(name.Name, slot, name.Span())
	fc.emitReg(vm.OpStoreLocal, slot, name.Span())
}

// compileFunctionBody compiles a nested function or method into its own
// proto. Parameters occupy the first register slots in declaration order.
func (fc *funcCompiler) compileFunctionBody(name string, params []*ast.Param, body *ast.Block, isMethod bool, span source.Span) *vm.FunctionProto {
	if len(params) > MaxParams {
		fc.c.reportf(errors.KindArityDeclaration, span,
			"%s declares %d parameters; the limit is %d", name, len(params), MaxParams)
		params = params[:MaxParams]
	}
	nested := newFuncCompiler(fc.c, fc, name, isMethod)
	nested.enterScope()
	seen := make(map[string]bool, len(params))
	for _, p := range params {
		if seen[p.Name] {
			fc.c.reportf(errors.KindArityDeclaration, p.Span(),
				"%s declares parameter %s more than once", name, p.Name)
			continue
		}
		seen[p.Name] = true
		nested.proto.Params = append(nested.proto.Params, p.Name)
		slot := nested.tempReg(p.Span())
		nested.declareLocal(p.Name, slot, p.Span())
	}
	for _, stmt := range body.Statements {
		nested.compileStmt(stmt)
	}
	nested.emit(vm.OpLoadNone, span)
	nested.emit(vm.OpReturn, span)
	nested.leaveScope()
	nested.finish()
	return nested.proto
}
