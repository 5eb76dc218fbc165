// Package ecode defines the numeric error codes shared by the program store
// and the virtual machine, and the wire format used to report them.
package ecode

import "fmt"

// Code identifies a runtime or load-time failure. Values match the PC-1211
// firmware's own error numbering so that transcripts stay byte-for-byte
// compatible with the original device.
type Code int

const (
	DivisionByZero     Code = 1
	MathDomain         Code = 2
	MathOverflow       Code = 3
	IndexOutOfRange    Code = 4
	TypeMismatch       Code = 5
	ForStepZero        Code = 6
	ReturnWithoutGosub Code = 7
	NextWithoutFor     Code = 8
	BadLineNumber      Code = 10
	SyntaxError        Code = 11
	LineTooLong        Code = 12
	ProgramTooLarge    Code = 13
	StackOverflow      Code = 14
)

var messages = map[Code]string{
	DivisionByZero:     "Division by zero",
	MathDomain:         "Math domain error",
	MathOverflow:       "Math overflow",
	IndexOutOfRange:    "Index out of range",
	TypeMismatch:       "Type mismatch",
	ForStepZero:        "FOR step cannot be zero",
	ReturnWithoutGosub: "RETURN without GOSUB",
	NextWithoutFor:     "NEXT without FOR",
	BadLineNumber:      "Bad line number",
	SyntaxError:        "Syntax error",
	LineTooLong:        "Line too long",
	ProgramTooLarge:    "Program too large",
	StackOverflow:      "Stack overflow",
}

// String returns the human-readable message for c, or "unknown error" if c
// is not one of the defined codes.
func (c Code) String() string {
	if m, ok := messages[c]; ok {
		return m
	}
	return "unknown error"
}

// Error is a program-store or VM failure tagged with the line it occurred
// on. Line is 0 when the failure is not associated with any line (e.g. a
// tokenize-time error before any line has been committed).
type Error struct {
	Code Code
	Line uint16
}

func (e *Error) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("Error %d: %s", e.Code, e.Code.String())
	}
	return fmt.Sprintf("Error %d at line %d: %s", e.Code, e.Line, e.Code.String())
}

// New constructs an *Error for code at line.
func New(code Code, line uint16) error {
	return &Error{Code: code, Line: line}
}
