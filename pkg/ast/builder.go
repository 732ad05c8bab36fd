package ast

import "github.com/ember-lang/ember/pkg/source"

// Construction helpers for hosts (and tests) that build trees directly
// instead of going through a front end. Each helper takes the node's span
// first; pass source.NoSpan for synthesized nodes.

func NewProgram(stmts ...Stmt) *Program {
	return &Program{Statements: stmts}
}

func NewBlock(span source.Span, stmts ...Stmt) *Block {
	return &Block{base: base{span}, Statements: stmts}
}

func NewIdent(span source.Span, name string) *Ident {
	return &Ident{base: base{span}, Name: name}
}

func NewVarDecl(span source.Span, name string, value Expr) *VarDecl {
	return &VarDecl{base: base{span}, Name: NewIdent(span, name), Value: value}
}

func NewAssign(span source.Span, target Expr, value Expr) *Assign {
	return &Assign{base: base{span}, Target: target, Value: value}
}

func NewExprStmt(value Expr) *ExprStmt {
	return &ExprStmt{base: base{value.Span()}, Value: value}
}

func NewIf(span source.Span, cond Expr, then, els *Block) *If {
	return &If{base: base{span}, Cond: cond, Then: then, Else: els}
}

func NewWhile(span source.Span, cond Expr, body *Block) *While {
	return &While{base: base{span}, Cond: cond, Body: body}
}

func NewLoop(span source.Span, body *Block) *Loop {
	return &Loop{base: base{span}, Body: body}
}

func NewBreak(span source.Span) *Break       { return &Break{base: base{span}} }
func NewContinue(span source.Span) *Continue { return &Continue{base: base{span}} }

func NewReturn(span source.Span, value Expr) *Return {
	return &Return{base: base{span}, Value: value}
}

func NewPrint(span source.Span, values ...Expr) *Print {
	return &Print{base: base{span}, Values: values}
}

func NewParam(span source.Span, name string) *Param {
	return &Param{base: base{span}, Name: name}
}

func NewFuncDecl(span source.Span, name string, params []*Param, body *Block) *FuncDecl {
	return &FuncDecl{base: base{span}, Name: NewIdent(span, name), Params: params, Body: body}
}

func NewFieldDef(span source.Span, name string, def Literal) *FieldDef {
	return &FieldDef{base: base{span}, Name: name, Default: def}
}

func NewMethodDef(span source.Span, name string, params []*Param, body *Block) *MethodDef {
	return &MethodDef{base: base{span}, Name: name, Params: params, Body: body}
}

func NewClassDecl(span source.Span, name string, super *Ident, fields []*FieldDef, methods []*MethodDef) *ClassDecl {
	return &ClassDecl{base: base{span}, Name: NewIdent(span, name), Super: super, Fields: fields, Methods: methods}
}

func NewInt(span source.Span, v int64) *IntLit       { return &IntLit{base: base{span}, Value: v} }
func NewFloat(span source.Span, v float64) *FloatLit { return &FloatLit{base: base{span}, Value: v} }
func NewString(span source.Span, v string) *StringLit {
	return &StringLit{base: base{span}, Value: v}
}
func NewBool(span source.Span, v bool) *BoolLit { return &BoolLit{base: base{span}, Value: v} }
func NewNone(span source.Span) *NoneLit         { return &NoneLit{base: base{span}} }

func NewUnary(span source.Span, op UnaryOp, right Expr) *Unary {
	return &Unary{base: base{span}, Op: op, Right: right}
}

func NewBinary(span source.Span, op BinaryOp, left, right Expr) *Binary {
	return &Binary{base: base{span}, Op: op, Left: left, Right: right}
}

func NewFieldAccess(span source.Span, target Expr, name string) *FieldAccess {
	return &FieldAccess{base: base{span}, Target: target, Name: name}
}

func NewSelf(span source.Span) *SelfExpr { return &SelfExpr{base: base{span}} }

func NewSuperAccess(span source.Span, name string) *SuperAccess {
	return &SuperAccess{base: base{span}, Name: name}
}

func NewKwArg(span source.Span, name string, value Expr) *KwArg {
	return &KwArg{base: base{span}, Name: name, Value: value}
}

func NewCall(span source.Span, callee Expr, args ...Expr) *Call {
	return &Call{base: base{span}, Callee: callee, Args: args}
}

func NewKwCall(span source.Span, callee Expr, kwargs ...*KwArg) *Call {
	return &Call{base: base{span}, Callee: callee, KwArgs: kwargs}
}
