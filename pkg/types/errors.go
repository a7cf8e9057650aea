// Package types defines the error types shared by the calculator engine and
// the surfaces built on top of it.
package types

import (
	"errors"
	"fmt"
)

// Error kind constants. Every kind collapses to the same user-visible sentinel;
// the kind only exists for diagnostics and tests.
const (
	KindStructural = "StructuralError"
	KindOperand    = "OperandError"
	KindArithmetic = "ArithmeticError"
	KindResidual   = "ResidualError"
)

// NoPos marks an error that is not tied to a position in the expression.
const NoPos = -1

// CalcError describes why an expression failed to evaluate.
type CalcError struct {
	Kind    string
	Message string
	Pos     int // byte offset in the source expression, or NoPos
}

// Error implements the error interface.
func (e *CalcError) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("%s at position %d: %s", e.Kind, e.Pos, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is reports whether target is a *CalcError of the same kind, so callers can
// match with errors.Is(err, &CalcError{Kind: KindArithmetic}).
func (e *CalcError) Is(target error) bool {
	t, ok := target.(*CalcError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// HasKind returns true if the error is of the given kind.
func (e *CalcError) HasKind(kind string) bool {
	return e.Kind == kind
}

// ToMap converts the error to the map shape used in API responses.
func (e *CalcError) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"kind":    e.Kind,
		"message": e.Message,
	}
	if e.Pos >= 0 {
		m["position"] = e.Pos
	}
	return m
}

// KindOf returns the kind of the first *CalcError in err's chain, or "" if
// there is none.
func KindOf(err error) string {
	var ce *CalcError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// NewStructuralError creates a StructuralError.
func NewStructuralError(msg string, pos int) *CalcError {
	return &CalcError{Kind: KindStructural, Message: msg, Pos: pos}
}

// NewOperandError creates an OperandError.
func NewOperandError(msg string, pos int) *CalcError {
	return &CalcError{Kind: KindOperand, Message: msg, Pos: pos}
}

// NewArithmeticError creates an ArithmeticError.
func NewArithmeticError(msg string, pos int) *CalcError {
	return &CalcError{Kind: KindArithmetic, Message: msg, Pos: pos}
}

// NewZeroDivisionError creates the ArithmeticError raised by a zero divisor.
func NewZeroDivisionError(pos int) *CalcError {
	return &CalcError{Kind: KindArithmetic, Message: "division by zero", Pos: pos}
}

// NewResidualError creates a ResidualError for a final stack of the given size.
func NewResidualError(size int) *CalcError {
	return &CalcError{
		Kind:    KindResidual,
		Message: fmt.Sprintf("expected exactly one value after evaluation, have %d", size),
		Pos:     NoPos,
	}
}
