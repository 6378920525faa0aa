// Package errors defines the structured error taxonomy of the enhancement
// pipeline: positioned parse errors, compile errors, and security violations,
// plus a thread-safe collector used by batch CLI runs.
//
// Parse and compile errors propagate only as far as the engine, which is the
// single place allowed to decide the outcome (debug logging, then fallback to
// the original content). No other component swallows or substitutes content.
package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/weftware/weft/internal/types"
)

// Error codes carried by the structured error types.
const (
	ErrUnclosedIf       = "ERR_UNCLOSED_IF"
	ErrUnclosedFunc     = "ERR_UNCLOSED_FUNC"
	ErrUnexpectedElse   = "ERR_UNEXPECTED_ELSE"
	ErrUnexpectedElseIf = "ERR_UNEXPECTED_ELSEIF"
	ErrUnexpectedClose  = "ERR_UNEXPECTED_CLOSE"
	ErrDuplicateElse    = "ERR_DUPLICATE_ELSE"
	ErrElseIfAfterElse  = "ERR_ELSEIF_AFTER_ELSE"
	ErrNestingDepth     = "ERR_NESTING_DEPTH"
	ErrExpressionLength = "ERR_EXPRESSION_LENGTH"
	ErrDeniedIdentifier = "ERR_DENIED_IDENTIFIER"
	ErrBlockedConstruct = "ERR_BLOCKED_CONSTRUCT"
)

// ParseError reports malformed, unclosed, or unexpected structural syntax.
// Pos is a byte offset into the template source.
type ParseError struct {
	Code         string
	Message      string
	Pos          int
	TemplateName string
}

func (e *ParseError) Error() string {
	if e.TemplateName != "" {
		return fmt.Sprintf("%s: parse error at offset %d: %s", e.TemplateName, e.Pos, e.Message)
	}
	return fmt.Sprintf("parse error at offset %d: %s", e.Pos, e.Message)
}

// NewParseError creates a positioned parse error.
func NewParseError(code, message string, pos int, templateName string) *ParseError {
	return &ParseError{Code: code, Message: message, Pos: pos, TemplateName: templateName}
}

// SecurityViolation reports a disallowed identifier or blocked construct
// found while validating an expression or function name.
type SecurityViolation struct {
	Code       string
	Message    string
	Identifier string
	Pos        int
}

func (e *SecurityViolation) Error() string {
	if e.Identifier != "" {
		return fmt.Sprintf("security violation: %s: %q", e.Message, e.Identifier)
	}
	return fmt.Sprintf("security violation: %s", e.Message)
}

// NewSecurityViolation creates a security violation for an identifier.
func NewSecurityViolation(code, message, identifier string) *SecurityViolation {
	return &SecurityViolation{Code: code, Message: message, Identifier: identifier}
}

// CompileError reports a structural imbalance found during compilation or
// wraps a SecurityViolation raised while validating embedded code. It always
// carries the offending token.
type CompileError struct {
	Code         string
	Message      string
	Pos          int
	TemplateName string
	Token        *types.Token
	Cause        error
}

func (e *CompileError) Error() string {
	msg := fmt.Sprintf("compile error at offset %d: %s", e.Pos, e.Message)
	if e.TemplateName != "" {
		msg = e.TemplateName + ": " + msg
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap exposes the wrapped cause for errors.Is/As.
func (e *CompileError) Unwrap() error {
	return e.Cause
}

// NewCompileError creates a compile error for the offending token.
func NewCompileError(code, message string, token *types.Token) *CompileError {
	ce := &CompileError{Code: code, Message: message, Token: token}
	if token != nil {
		ce.Pos = token.Pos
	}
	return ce
}

// WrapSecurityViolation wraps a security violation into a compile error
// carrying the offending token.
func WrapSecurityViolation(v *SecurityViolation, token *types.Token) *CompileError {
	ce := &CompileError{
		Code:    v.Code,
		Message: "expression rejected by security policy",
		Token:   token,
		Cause:   v,
	}
	if token != nil {
		ce.Pos = token.Pos
	}
	return ce
}

// AsParseError extracts a *ParseError from an error chain.
func AsParseError(err error) (*ParseError, bool) {
	var pe *ParseError
	ok := stderrors.As(err, &pe)
	return pe, ok
}

// AsCompileError extracts a *CompileError from an error chain.
func AsCompileError(err error) (*CompileError, bool) {
	var ce *CompileError
	ok := stderrors.As(err, &ce)
	return ce, ok
}

// AsSecurityViolation extracts a *SecurityViolation from an error chain,
// looking through any wrapping CompileError.
func AsSecurityViolation(err error) (*SecurityViolation, bool) {
	var sv *SecurityViolation
	ok := stderrors.As(err, &sv)
	return sv, ok
}

// IsSecurityViolation reports whether the error chain contains a
// security violation.
func IsSecurityViolation(err error) bool {
	_, ok := AsSecurityViolation(err)
	return ok
}
