package ecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatsWithLine(t *testing.T) {
	err := New(DivisionByZero, 10)
	assert.Equal(t, "Error 1 at line 10: Division by zero", err.Error())
}

func TestErrorFormatsWithoutLine(t *testing.T) {
	err := New(SyntaxError, 0)
	assert.Equal(t, "Error 11: Syntax error", err.Error())
}

func TestAllCodesHaveMessages(t *testing.T) {
	codes := []Code{
		DivisionByZero, MathDomain, MathOverflow, IndexOutOfRange,
		TypeMismatch, ForStepZero, ReturnWithoutGosub, NextWithoutFor,
		BadLineNumber, SyntaxError, LineTooLong, ProgramTooLarge, StackOverflow,
	}
	for _, c := range codes {
		assert.NotEqual(t, "unknown error", c.String(), "code %d missing message", c)
	}
}

func TestUnknownCode(t *testing.T) {
	assert.Equal(t, "unknown error", Code(99).String())
}
