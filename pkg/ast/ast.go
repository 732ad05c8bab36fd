// Package ast defines the resolved syntax tree the compiler consumes.
//
// Ember's core does not lex or parse: a front end (or an embedding host)
// hands the compiler a fully built tree with a source span attached to every
// node. Construction helpers for hosts live in builder.go.
package ast

import (
	"github.com/ember-lang/ember/pkg/source"
)

// Node is implemented by every syntax tree node.
type Node interface {
	Span() source.Span
}

// Stmt is implemented by statement nodes.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is implemented by expression nodes.
type Expr interface {
	Node
	exprNode()
}

// Literal is implemented by the constant-literal expressions. Class field
// defaults are restricted to these by construction.
type Literal interface {
	Expr
	literalNode()
}

// base carries the span shared by all nodes.
type base struct {
	Pos source.Span
}

func (b base) Span() source.Span { return b.Pos }

// --- Program ---

// Program is the root node: the top-level statement list of one script.
type Program struct {
	base
	Statements []Stmt
}

// --- Statements ---

// VarDecl declares a new binding: `name := value`.
// At the top level the binding is a global; inside any block or function it
// is a frame-local slot.
type VarDecl struct {
	base
	Name  *Ident
	Value Expr
}

// Assign assigns to an existing binding or field: `target = value`.
// Target must be an *Ident or a *FieldAccess; anything else is an
// InvalidAssignmentTarget compile error.
type Assign struct {
	base
	Target Expr
	Value  Expr
}

// ExprStmt evaluates an expression for its effects.
type ExprStmt struct {
	base
	Value Expr
}

// Block is a brace/indent scope: entering it opens a new lexical scope.
type Block struct {
	base
	Statements []Stmt
}

// If is a two-way conditional. Else may be nil.
type If struct {
	base
	Cond Expr
	Then *Block
	Else *Block
}

// While loops as long as Cond is truthy.
type While struct {
	base
	Cond Expr
	Body *Block
}

// Loop loops forever; only break leaves it.
type Loop struct {
	base
	Body *Block
}

// Break jumps past the end of the innermost enclosing loop.
type Break struct {
	base
}

// Continue jumps to the condition check of the innermost enclosing loop.
type Continue struct {
	base
}

// Return leaves the current function. Value may be nil (returns none).
type Return struct {
	base
	Value Expr
}

// Print emits the external representation of each value, space separated,
// followed by a newline.
type Print struct {
	base
	Values []Expr
}

// Param is one declared parameter.
type Param struct {
	base
	Name string
}

// FuncDecl declares a named function: `fn name(params): body`.
type FuncDecl struct {
	base
	Name   *Ident
	Params []*Param
	Body   *Block
}

// FieldDef is one class field with its default-value constant.
type FieldDef struct {
	base
	Name    string
	Default Literal
}

// MethodDef is one class method. A method whose first parameter is named
// "self" receives the instance it was retrieved from; methods without a
// leading self behave as plain functions stored on the class.
type MethodDef struct {
	base
	Name   string
	Params []*Param
	Body   *Block
}

// ClassDecl declares a class: declared fields with constant defaults, a
// method table, and at most one superclass.
type ClassDecl struct {
	base
	Name    *Ident
	Super   *Ident // nil when the class has no superclass
	Fields  []*FieldDef
	Methods []*MethodDef
}

func (*VarDecl) stmtNode()   {}
func (*Assign) stmtNode()    {}
func (*ExprStmt) stmtNode()  {}
func (*Block) stmtNode()     {}
func (*If) stmtNode()        {}
func (*While) stmtNode()     {}
func (*Loop) stmtNode()      {}
func (*Break) stmtNode()     {}
func (*Continue) stmtNode()  {}
func (*Return) stmtNode()    {}
func (*Print) stmtNode()     {}
func (*FuncDecl) stmtNode()  {}
func (*ClassDecl) stmtNode() {}

// --- Expressions ---

// Ident references a binding by name.
type Ident struct {
	base
	Name string
}

// IntLit is an integer literal.
type IntLit struct {
	base
	Value int64
}

// FloatLit is a float literal.
type FloatLit struct {
	base
	Value float64
}

// StringLit is a string literal.
type StringLit struct {
	base
	Value string
}

// BoolLit is true or false.
type BoolLit struct {
	base
	Value bool
}

// NoneLit is the none literal.
type NoneLit struct {
	base
}

// Unary operator tokens.
type UnaryOp string

const (
	OpNeg UnaryOp = "-"
	OpNot UnaryOp = "!"
)

// Unary applies a prefix operator.
type Unary struct {
	base
	Op    UnaryOp
	Right Expr
}

// Binary operator tokens.
type BinaryOp string

const (
	OpAdd BinaryOp = "+"
	OpSub BinaryOp = "-"
	OpMul BinaryOp = "*"
	OpDiv BinaryOp = "/"
	OpMod BinaryOp = "%"
	OpEq  BinaryOp = "=="
	OpNe  BinaryOp = "!="
	OpLt  BinaryOp = "<"
	OpLe  BinaryOp = "<="
	OpGt  BinaryOp = ">"
	OpGe  BinaryOp = ">="
	OpAnd BinaryOp = "and"
	OpOr  BinaryOp = "or"
)

// Binary applies an infix operator. `and`/`or` short-circuit.
type Binary struct {
	base
	Op    BinaryOp
	Left  Expr
	Right Expr
}

// FieldAccess reads an attribute: `target.name`.
type FieldAccess struct {
	base
	Target Expr
	Name   string
}

// SelfExpr references the receiver inside a method body.
type SelfExpr struct {
	base
}

// SuperAccess resolves a method starting at the superclass of the class that
// defined the currently executing method: `super.name`.
type SuperAccess struct {
	base
	Name string
}

// KwArg is one keyword argument in a class construction call.
type KwArg struct {
	base
	Name  string
	Value Expr
}

// Call invokes a callee. KwArgs are only meaningful when the callee is a
// class (field overrides by name); mixing them with positional arguments is
// not supported.
type Call struct {
	base
	Callee Expr
	Args   []Expr
	KwArgs []*KwArg
}

func (*Ident) exprNode()       {}
func (*IntLit) exprNode()      {}
func (*FloatLit) exprNode()    {}
func (*StringLit) exprNode()   {}
func (*BoolLit) exprNode()     {}
func (*NoneLit) exprNode()     {}
func (*Unary) exprNode()       {}
func (*Binary) exprNode()      {}
func (*FieldAccess) exprNode() {}
func (*SelfExpr) exprNode()    {}
func (*SuperAccess) exprNode() {}
func (*Call) exprNode()        {}

func (*IntLit) literalNode()    {}
func (*FloatLit) literalNode()  {}
func (*StringLit) literalNode() {}
func (*BoolLit) literalNode()   {}
func (*NoneLit) literalNode()   {}
