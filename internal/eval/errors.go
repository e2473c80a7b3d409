package eval

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes validation errors.
type ErrorCode string

const (
	// ErrCodeEmptyExpression indicates the source expression was empty
	// after trimming.
	ErrCodeEmptyExpression ErrorCode = "EMPTY_EXPRESSION"

	// ErrCodeExpressionSyntax indicates the evaluator rejected the
	// translated expression.
	ErrCodeExpressionSyntax ErrorCode = "EXPRESSION_SYNTAX"

	// ErrCodeUnknownIdentifier indicates an identifier that is neither a
	// known function nor a base channel.
	ErrCodeUnknownIdentifier ErrorCode = "UNKNOWN_IDENTIFIER"
)

// Error is a structured validation error.
//
// Validation errors are synchronous: they surface before any worker is
// spawned and never mutate the store.
type Error struct {
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Identifier holds the offending name for UNKNOWN_IDENTIFIER.
	Identifier string

	// Detail carries the evaluator's own diagnostic for EXPRESSION_SYNTAX.
	Detail string
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Identifier != "":
		return fmt.Sprintf("%s: %s: %q", e.Code, e.Message, e.Identifier)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, e.Detail)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// IsUnknownIdentifier reports whether err is an UNKNOWN_IDENTIFIER error.
// Uses errors.As to handle wrapped errors.
func IsUnknownIdentifier(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrCodeUnknownIdentifier
}

// IsSyntaxError reports whether err is an EXPRESSION_SYNTAX error.
func IsSyntaxError(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrCodeExpressionSyntax
}

// IsEmptyExpression reports whether err is an EMPTY_EXPRESSION error.
func IsEmptyExpression(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrCodeEmptyExpression
}

// NewEmptyExpressionError creates an EMPTY_EXPRESSION error.
func NewEmptyExpressionError() *Error {
	return &Error{
		Code:    ErrCodeEmptyExpression,
		Message: "expression is empty",
	}
}

// NewSyntaxError creates an EXPRESSION_SYNTAX error carrying the
// evaluator's diagnostic.
func NewSyntaxError(detail string) *Error {
	return &Error{
		Code:    ErrCodeExpressionSyntax,
		Message: "expression rejected by evaluator",
		Detail:  detail,
	}
}

// NewUnknownIdentifierError creates an UNKNOWN_IDENTIFIER error.
func NewUnknownIdentifierError(name string) *Error {
	return &Error{
		Code:       ErrCodeUnknownIdentifier,
		Message:    "no matching base channel or function",
		Identifier: name,
	}
}
