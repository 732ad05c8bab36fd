package driver

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/ember-lang/ember/pkg/ast"
	"github.com/ember-lang/ember/pkg/errors"
	"github.com/ember-lang/ember/pkg/source"
	"github.com/ember-lang/ember/pkg/vm"
)

var sp = source.Span{Start: 0, End: 1}

func id(name string) *ast.Ident            { return ast.NewIdent(sp, name) }
func num(v int64) *ast.IntLit              { return ast.NewInt(sp, v) }
func flt(v float64) *ast.FloatLit          { return ast.NewFloat(sp, v) }
func str(v string) *ast.StringLit          { return ast.NewString(sp, v) }
func bin(op ast.BinaryOp, l, r ast.Expr) *ast.Binary {
	return ast.NewBinary(sp, op, l, r)
}
func block(stmts ...ast.Stmt) *ast.Block { return ast.NewBlock(sp, stmts...) }
func expr(e ast.Expr) *ast.ExprStmt      { return ast.NewExprStmt(e) }
func decl(name string, v ast.Expr) *ast.VarDecl {
	return ast.NewVarDecl(sp, name, v)
}
func params(names ...string) []*ast.Param {
	ps := make([]*ast.Param, len(names))
	for i, n := range names {
		ps[i] = ast.NewParam(sp, n)
	}
	return ps
}

// eval runs a program in a fresh session and returns the result, any
// diagnostics, and everything printed.
func eval(t *testing.T, stmts ...ast.Stmt) (vm.Value, []errors.EmberError, string) {
	t.Helper()
	var out bytes.Buffer
	session := NewSession(Options{Stdout: &out, MaxCallDepth: 64})
	v, errs := session.Evaluate(ast.NewProgram(stmts...))
	return v, errs, out.String()
}

func evalOK(t *testing.T, stmts ...ast.Stmt) (vm.Value, string) {
	t.Helper()
	v, errs, out := eval(t, stmts...)
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	return v, out
}

func wantKind(t *testing.T, errs []errors.EmberError, kind string) {
	t.Helper()
	if len(errs) == 0 {
		t.Fatalf("expected a %s error, got none", kind)
	}
	for _, e := range errs {
		if e.Kind() == kind {
			return
		}
	}
	t.Fatalf("expected a %s error, got %v", kind, errs)
}

func TestIntegerAddition(t *testing.T) {
	v, _ := evalOK(t, expr(bin(ast.OpAdd, num(1), num(1))))
	got, err := Extract[int64](v)
	if err != nil {
		t.Fatal(err)
	}
	if got != 2 {
		t.Fatalf("1+1 = %d, want 2", got)
	}
}

func TestMixedArithmeticPromotesToFloat(t *testing.T) {
	v, _ := evalOK(t, expr(bin(ast.OpAdd, num(1), flt(2.5))))
	got, err := Extract[float64](v)
	if err != nil {
		t.Fatal(err)
	}
	if got != 3.5 {
		t.Fatalf("1+2.5 = %v, want 3.5", got)
	}
}

func TestIntegerDivisionTruncates(t *testing.T) {
	v, _ := evalOK(t, expr(bin(ast.OpDiv, num(7), num(2))))
	got, _ := Extract[int64](v)
	if got != 3 {
		t.Fatalf("7/2 = %d, want 3", got)
	}
}

func TestStringConcat(t *testing.T) {
	v, _ := evalOK(t, expr(bin(ast.OpAdd, str("foo"), str("bar"))))
	got, _ := Extract[string](v)
	if got != "foobar" {
		t.Fatalf("got %q", got)
	}
}

func TestIntegerOverflow(t *testing.T) {
	_, errs, _ := eval(t, expr(bin(ast.OpAdd, num(math.MaxInt64), num(1))))
	wantKind(t, errs, errors.KindIntegerOverflow)
}

func TestDivisionByZero(t *testing.T) {
	_, errs, _ := eval(t, expr(bin(ast.OpDiv, num(1), num(0))))
	wantKind(t, errs, errors.KindDivisionByZero)
}

func TestTypeMismatchOnAdd(t *testing.T) {
	_, errs, _ := eval(t, expr(bin(ast.OpAdd, num(1), str("x"))))
	wantKind(t, errs, errors.KindTypeMismatch)
}

func TestUndefinedNameIsCompileError(t *testing.T) {
	_, errs, out := eval(t, expr(id("nope")))
	wantKind(t, errs, errors.KindUndefinedName)
	if out != "" {
		t.Fatalf("program with compile errors must not run, printed %q", out)
	}
}

func TestAllCompileErrorsReported(t *testing.T) {
	_, errs, _ := eval(t,
		expr(id("first")),
		expr(id("second")),
	)
	if len(errs) != 2 {
		t.Fatalf("want both UndefinedName diagnostics, got %v", errs)
	}
}

func TestShortCircuitAnd(t *testing.T) {
	// The right side divides by zero; and must not evaluate it.
	v, _ := evalOK(t, expr(bin(ast.OpAnd,
		bin(ast.OpEq, num(1), num(2)),
		bin(ast.OpDiv, num(1), num(0)))))
	got, err := Extract[bool](v)
	if err != nil {
		t.Fatal(err)
	}
	if got {
		t.Fatal("1==2 and ... should be false")
	}
}

func TestShortCircuitOr(t *testing.T) {
	v, _ := evalOK(t, expr(bin(ast.OpOr,
		bin(ast.OpEq, num(1), num(1)),
		bin(ast.OpDiv, num(1), num(0)))))
	got, err := Extract[bool](v)
	if err != nil {
		t.Fatal(err)
	}
	if !got {
		t.Fatal("1==1 or ... should be true")
	}
}

func TestWhileLoopSum(t *testing.T) {
	// total := 0; i := 0; while i < 5 { total = total + i; i = i + 1 }; total
	v, _ := evalOK(t,
		decl("total", num(0)),
		decl("i", num(0)),
		ast.NewWhile(sp, bin(ast.OpLt, id("i"), num(5)), block(
			ast.NewAssign(sp, id("total"), bin(ast.OpAdd, id("total"), id("i"))),
			ast.NewAssign(sp, id("i"), bin(ast.OpAdd, id("i"), num(1))),
		)),
		expr(id("total")),
	)
	got, _ := Extract[int64](v)
	if got != 10 {
		t.Fatalf("sum = %d, want 10", got)
	}
}

func TestLoopBreakAndContinue(t *testing.T) {
	// Sum odd i < 10 using continue, break once i reaches 10.
	v, _ := evalOK(t,
		decl("total", num(0)),
		decl("i", num(0)),
		ast.NewLoop(sp, block(
			ast.NewAssign(sp, id("i"), bin(ast.OpAdd, id("i"), num(1))),
			ast.NewIf(sp, bin(ast.OpGe, id("i"), num(10)), block(ast.NewBreak(sp)), nil),
			ast.NewIf(sp, bin(ast.OpEq, bin(ast.OpMod, id("i"), num(2)), num(0)),
				block(ast.NewContinue(sp)), nil),
			ast.NewAssign(sp, id("total"), bin(ast.OpAdd, id("total"), id("i"))),
		)),
		expr(id("total")),
	)
	got, _ := Extract[int64](v)
	if got != 25 { // 1+3+5+7+9
		t.Fatalf("total = %d, want 25", got)
	}
}

func TestBreakOutsideLoop(t *testing.T) {
	_, errs, _ := eval(t, ast.NewBreak(sp))
	wantKind(t, errs, errors.KindBreakOrContinueOutsideLoop)
}

func TestRecursionFib(t *testing.T) {
	// fn fib(n) { if n < 2 { return n }; return fib(n-1) + fib(n-2) }
	fib := ast.NewFuncDecl(sp, "fib", params("n"), block(
		ast.NewIf(sp, bin(ast.OpLt, id("n"), num(2)),
			block(ast.NewReturn(sp, id("n"))), nil),
		ast.NewReturn(sp, bin(ast.OpAdd,
			ast.NewCall(sp, id("fib"), bin(ast.OpSub, id("n"), num(1))),
			ast.NewCall(sp, id("fib"), bin(ast.OpSub, id("n"), num(2))))),
	))
	v, _ := evalOK(t, fib, expr(ast.NewCall(sp, id("fib"), num(10))))
	got, _ := Extract[int64](v)
	if got != 55 {
		t.Fatalf("fib(10) = %d, want 55", got)
	}
}

func TestForwardGlobalReference(t *testing.T) {
	// f calls g although g is declared after f.
	f := ast.NewFuncDecl(sp, "f", nil, block(
		ast.NewReturn(sp, ast.NewCall(sp, id("g"))),
	))
	g := ast.NewFuncDecl(sp, "g", nil, block(
		ast.NewReturn(sp, num(5)),
	))
	v, _ := evalOK(t, f, g, expr(ast.NewCall(sp, id("f"))))
	got, _ := Extract[int64](v)
	if got != 5 {
		t.Fatalf("f() = %d, want 5", got)
	}
}

func TestArityMismatch(t *testing.T) {
	add := ast.NewFuncDecl(sp, "add", params("a", "b"), block(
		ast.NewReturn(sp, bin(ast.OpAdd, id("a"), id("b"))),
	))
	_, errs, _ := eval(t, add, expr(ast.NewCall(sp, id("add"), num(1))))
	wantKind(t, errs, errors.KindArityMismatch)
}

func TestStackOverflow(t *testing.T) {
	f := ast.NewFuncDecl(sp, "f", nil, block(
		ast.NewReturn(sp, ast.NewCall(sp, id("f"))),
	))
	_, errs, _ := eval(t, f, expr(ast.NewCall(sp, id("f"))))
	wantKind(t, errs, errors.KindStackOverflow)
}

func TestClosureCapturesByValue(t *testing.T) {
	// inner captures a when it is created; the later reassignment of the
	// outer local is invisible to it.
	outer := ast.NewFuncDecl(sp, "outer", nil, block(
		decl("a", num(10)),
		ast.NewFuncDecl(sp, "inner", nil, block(
			ast.NewReturn(sp, id("a")),
		)),
		ast.NewAssign(sp, id("a"), num(20)),
		ast.NewReturn(sp, ast.NewCall(sp, id("inner"))),
	))
	v, _ := evalOK(t, outer, expr(ast.NewCall(sp, id("outer"))))
	got, _ := Extract[int64](v)
	if got != 10 {
		t.Fatalf("captured value = %d, want 10", got)
	}
}

func TestShadowingInNestedScope(t *testing.T) {
	// x := 1; { x := 2; print x }; x
	v, out := evalOK(t,
		decl("x", num(1)),
		block(
			decl("x", num(2)),
			ast.NewPrint(sp, id("x")),
		),
		expr(id("x")),
	)
	if strings.TrimSpace(out) != "2" {
		t.Fatalf("inner print = %q, want 2", out)
	}
	got, _ := Extract[int64](v)
	if got != 1 {
		t.Fatalf("outer x = %d, want 1", got)
	}
}

func TestDuplicateDeclarationSameScope(t *testing.T) {
	_, errs, _ := eval(t,
		decl("x", num(1)),
		decl("x", num(2)),
	)
	wantKind(t, errs, errors.KindDuplicateDeclaration)
}

func TestPrintRepresentations(t *testing.T) {
	_, out := evalOK(t,
		ast.NewPrint(sp, ast.NewNone(sp)),
		ast.NewPrint(sp, num(42)),
		ast.NewPrint(sp, flt(1.0)),
		ast.NewPrint(sp, ast.NewBool(sp, true)),
		ast.NewPrint(sp, str("hi"), num(1), num(2)),
	)
	want := "none\n42\n1.0\ntrue\nhi 1 2\n"
	if out != want {
		t.Fatalf("printed %q, want %q", out, want)
	}
}

func classTest() *ast.ClassDecl {
	// class Test { v = 100; fn get(self) { return self.v } }
	return ast.NewClassDecl(sp, "Test", nil,
		[]*ast.FieldDef{ast.NewFieldDef(sp, "v", num(100))},
		[]*ast.MethodDef{
			ast.NewMethodDef(sp, "get", params("self"), block(
				ast.NewReturn(sp, ast.NewFieldAccess(sp, ast.NewSelf(sp), "v")),
			)),
		},
	)
}

func TestClassFieldDefaultAndMutation(t *testing.T) {
	// t := Test(); print t.get(); t.v = 20; print t.get()
	_, out := evalOK(t,
		classTest(),
		decl("t", ast.NewCall(sp, id("Test"))),
		ast.NewPrint(sp, ast.NewCall(sp, ast.NewFieldAccess(sp, id("t"), "get"))),
		ast.NewAssign(sp, ast.NewFieldAccess(sp, id("t"), "v"), num(20)),
		ast.NewPrint(sp, ast.NewCall(sp, ast.NewFieldAccess(sp, id("t"), "get"))),
	)
	if out != "100\n20\n" {
		t.Fatalf("printed %q, want \"100\\n20\\n\"", out)
	}
}

func TestConstructionKeywordOverride(t *testing.T) {
	v, _ := evalOK(t,
		classTest(),
		decl("t", ast.NewKwCall(sp, id("Test"), ast.NewKwArg(sp, "v", num(20)))),
		expr(ast.NewCall(sp, ast.NewFieldAccess(sp, id("t"), "get"))),
	)
	got, _ := Extract[int64](v)
	if got != 20 {
		t.Fatalf("Test(v=20).get() = %d, want 20", got)
	}
}

func TestConstructionUnknownKeyword(t *testing.T) {
	_, errs, _ := eval(t,
		classTest(),
		expr(ast.NewKwCall(sp, id("Test"), ast.NewKwArg(sp, "w", num(1)))),
	)
	wantKind(t, errs, errors.KindUndefinedAttribute)
}

func TestUndefinedAttribute(t *testing.T) {
	_, errs, _ := eval(t,
		classTest(),
		decl("t", ast.NewCall(sp, id("Test"))),
		expr(ast.NewFieldAccess(sp, id("t"), "missing")),
	)
	wantKind(t, errs, errors.KindUndefinedAttribute)
}

func TestAssignmentNeverCreatesFields(t *testing.T) {
	_, errs, _ := eval(t,
		classTest(),
		decl("t", ast.NewCall(sp, id("Test"))),
		ast.NewAssign(sp, ast.NewFieldAccess(sp, id("t"), "missing"), num(1)),
	)
	wantKind(t, errs, errors.KindUndefinedAttribute)
}

func TestInheritanceChainWithSuper(t *testing.T) {
	// class A { fn name(self) { return "A" } }
	// class B(A) { fn name(self) { return "B" + super.name() } }
	// class C(B) { fn name(self) { return "C" + super.name() } }
	nameMethod := func(ret ast.Expr) *ast.MethodDef {
		return ast.NewMethodDef(sp, "name", params("self"), block(ast.NewReturn(sp, ret)))
	}
	a := ast.NewClassDecl(sp, "A", nil, nil, []*ast.MethodDef{nameMethod(str("A"))})
	b := ast.NewClassDecl(sp, "B", id("A"), nil, []*ast.MethodDef{
		nameMethod(bin(ast.OpAdd, str("B"), ast.NewCall(sp, ast.NewSuperAccess(sp, "name")))),
	})
	c := ast.NewClassDecl(sp, "C", id("B"), nil, []*ast.MethodDef{
		nameMethod(bin(ast.OpAdd, str("C"), ast.NewCall(sp, ast.NewSuperAccess(sp, "name")))),
	})
	v, _ := evalOK(t, a, b, c,
		decl("obj", ast.NewCall(sp, id("C"))),
		expr(ast.NewCall(sp, ast.NewFieldAccess(sp, id("obj"), "name"))),
	)
	got, _ := Extract[string](v)
	if got != "CBA" {
		t.Fatalf("C().name() = %q, want CBA", got)
	}
}

func TestInheritedFieldDefaults(t *testing.T) {
	// class A { x = 1 }  class B(A) { y = 2; x = 7 }
	a := ast.NewClassDecl(sp, "A", nil,
		[]*ast.FieldDef{ast.NewFieldDef(sp, "x", num(1))}, nil)
	b := ast.NewClassDecl(sp, "B", id("A"),
		[]*ast.FieldDef{
			ast.NewFieldDef(sp, "y", num(2)),
			ast.NewFieldDef(sp, "x", num(7)),
		}, nil)
	v, _ := evalOK(t, a, b,
		decl("bv", ast.NewCall(sp, id("B"))),
		expr(bin(ast.OpAdd,
			ast.NewFieldAccess(sp, id("bv"), "x"),
			ast.NewFieldAccess(sp, id("bv"), "y"))),
	)
	got, _ := Extract[int64](v)
	if got != 9 {
		t.Fatalf("x+y = %d, want 9", got)
	}
}

func TestSuperOutsideMethod(t *testing.T) {
	_, errs, _ := eval(t, expr(ast.NewSuperAccess(sp, "name")))
	wantKind(t, errs, errors.KindUndefinedName)
}

func TestRuntimeErrorCarriesTrace(t *testing.T) {
	boom := ast.NewFuncDecl(sp, "boom", nil, block(
		ast.NewReturn(sp, bin(ast.OpDiv, num(1), num(0))),
	))
	_, errs, _ := eval(t, boom, expr(ast.NewCall(sp, id("boom"))))
	if len(errs) != 1 {
		t.Fatalf("want one error, got %v", errs)
	}
	rerr, ok := errs[0].(*errors.RuntimeError)
	if !ok {
		t.Fatalf("want *errors.RuntimeError, got %T", errs[0])
	}
	if len(rerr.Trace) == 0 || rerr.Trace[0] != "boom" {
		t.Fatalf("trace = %v, want innermost frame boom", rerr.Trace)
	}
}

func TestSessionStatePersists(t *testing.T) {
	var out bytes.Buffer
	session := NewSession(Options{Stdout: &out})
	if _, errs := session.Evaluate(ast.NewProgram(decl("x", num(40)))); len(errs) > 0 {
		t.Fatalf("first evaluation failed: %v", errs)
	}
	v, errs := session.Evaluate(ast.NewProgram(expr(bin(ast.OpAdd, id("x"), num(2)))))
	if len(errs) > 0 {
		t.Fatalf("second evaluation failed: %v", errs)
	}
	got, _ := Extract[int64](v)
	if got != 42 {
		t.Fatalf("x+2 = %d, want 42", got)
	}
}

func TestExtractUnitAndMismatch(t *testing.T) {
	v, _ := evalOK(t, decl("x", num(1)))
	if _, err := Extract[Unit](v); err != nil {
		t.Fatalf("statement program should evaluate to none: %v", err)
	}
	if _, err := Extract[string](v); err == nil {
		t.Fatal("extracting string from none should fail")
	}
}

func TestNativeFunction(t *testing.T) {
	var out bytes.Buffer
	session := NewSession(Options{Stdout: &out})
	session.Isolate().RegisterNative("double", 1, func(args []vm.Value) (vm.Value, error) {
		n, _ := args[0].AsInteger()
		return vm.IntegerValue(2 * n), nil
	})
	v, errs := session.Evaluate(ast.NewProgram(expr(ast.NewCall(sp, id("double"), num(21)))))
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	got, _ := Extract[int64](v)
	if got != 42 {
		t.Fatalf("double(21) = %d, want 42", got)
	}
}
