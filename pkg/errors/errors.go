package errors

import (
	"fmt"

	"github.com/ember-lang/ember/pkg/source"
)

// Compile-time error kinds.
const (
	KindUndefinedName              = "UndefinedName"
	KindDuplicateDeclaration       = "DuplicateDeclaration"
	KindInvalidAssignmentTarget    = "InvalidAssignmentTarget"
	KindBreakOrContinueOutsideLoop = "BreakOrContinueOutsideLoop"
	KindArityDeclaration           = "ArityDeclarationError"
	KindLimitExceeded              = "LimitExceeded"
)

// Runtime error kinds.
const (
	KindTypeMismatch       = "TypeMismatch"
	KindUndefinedAttribute = "UndefinedAttribute"
	KindDivisionByZero     = "DivisionByZero"
	KindArityMismatch      = "ArityMismatch"
	KindStackOverflow      = "StackOverflow"
	KindIntegerOverflow    = "IntegerOverflow"
)

// EmberError is the interface implemented by all Ember errors.
type EmberError interface {
	error
	Span() source.Span
	Kind() string // One of the Kind* constants above.
	// Message returns the error message without position info, for callers
	// that format the error themselves.
	Message() string
	Unwrap() error
}

// CompileError represents an error during bytecode compilation.
// Compilation collects these rather than stopping at the first one.
type CompileError struct {
	Pos     source.Span
	ErrKind string
	Msg     string
	Cause   error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile error [%s]: %s", e.ErrKind, e.Msg)
}
func (e *CompileError) Span() source.Span { return e.Pos }
func (e *CompileError) Kind() string      { return e.ErrKind }
func (e *CompileError) Message() string   { return e.Msg }
func (e *CompileError) Unwrap() error     { return e.Cause }

// RuntimeError represents an error raised during execution in the VM.
// The span points at the instruction that failed; Trace records the frames
// unwound on the way out, innermost first.
type RuntimeError struct {
	Pos     source.Span
	ErrKind string
	Msg     string
	Trace   []string
	Cause   error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error [%s]: %s", e.ErrKind, e.Msg)
}
func (e *RuntimeError) Span() source.Span { return e.Pos }
func (e *RuntimeError) Kind() string      { return e.ErrKind }
func (e *RuntimeError) Message() string   { return e.Msg }
func (e *RuntimeError) Unwrap() error     { return e.Cause }

// NewCompileError constructs a CompileError.
func NewCompileError(kind string, span source.Span, format string, args ...interface{}) *CompileError {
	return &CompileError{Pos: span, ErrKind: kind, Msg: fmt.Sprintf(format, args...)}
}

// NewRuntimeError constructs a RuntimeError.
func NewRuntimeError(kind string, span source.Span, format string, args ...interface{}) *RuntimeError {
	return &RuntimeError{Pos: span, ErrKind: kind, Msg: fmt.Sprintf(format, args...)}
}
