package vm

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Operator semantics shared by the interpreter
// ---------------------------------------------------------------------------

func isString(v Value) bool { return v.Kind() == KindString }
func isReal(v Value) bool   { return v.Kind() == KindReal }
func isInt(v Value) bool    { return v.Kind() == KindInteger }

// Add concatenates when either operand is a string, otherwise adds numerically.
func Add(a, b Value) (Value, error) {
	switch {
	case isString(a) || isString(b):
		return String(a.AsString() + b.AsString()), nil
	case isReal(a) || isReal(b):
		return Real(a.AsReal() + b.AsReal()), nil
	}
	return Integer(a.AsInteger() + b.AsInteger()), nil
}

// Sub joins strings after trimming the whitespace between them, otherwise
// subtracts numerically.
func Sub(a, b Value) (Value, error) {
	switch {
	case isString(a) || isString(b):
		return String(strings.TrimRightFunc(a.AsString(), unicode.IsSpace) +
			strings.TrimLeftFunc(b.AsString(), unicode.IsSpace)), nil
	case isReal(a) || isReal(b):
		return Real(a.AsReal() - b.AsReal()), nil
	}
	return Integer(a.AsInteger() - b.AsInteger()), nil
}

// Mul multiplies; the result is an Integer only when both operands are.
func Mul(a, b Value) (Value, error) {
	if isInt(a) && isInt(b) {
		return Integer(a.AsInteger() * b.AsInteger()), nil
	}
	return Real(a.AsReal() * b.AsReal()), nil
}

// Div divides; integer division by zero is an error, real division follows
// IEEE 754.
func Div(a, b Value) (Value, error) {
	if isInt(a) && isInt(b) {
		d := b.AsInteger()
		if d == 0 {
			return nil, ErrDivideByZero
		}
		return Integer(a.AsInteger() / d), nil
	}
	return Real(a.AsReal() / b.AsReal()), nil
}

// Mod is the integer remainder of both operands' integer coercions.
func Mod(a, b Value) (Value, error) {
	d := b.AsInteger()
	if d == 0 {
		return nil, ErrDivideByZero
	}
	return Integer(a.AsInteger() % d), nil
}

// Equal is the language's == operator. The comparison is driven by the left
// operand's kind.
func Equal(a, b Value) bool {
	switch a.Kind() {
	case KindInteger, KindReal:
		return a.AsReal() == b.AsReal()
	case KindString:
		return a.AsString() == b.AsString()
	case KindBoolean:
		return a.AsBoolean() == b.AsBoolean()
	case KindArray:
		return a == b
	}
	return false
}

// Greater compares string lengths when either side is a string.
func Greater(a, b Value) bool {
	switch {
	case isString(a) || isString(b):
		return runeLen(a) > runeLen(b)
	case isReal(a) || isReal(b):
		return a.AsReal() > b.AsReal()
	}
	return a.AsInteger() > b.AsInteger()
}

// Less mirrors the language's historical < operator: the string and real
// branches test a > b, only pure integers compare with <.
func Less(a, b Value) bool {
	switch {
	case isString(a) || isString(b):
		return runeLen(a) > runeLen(b)
	case isReal(a) || isReal(b):
		return a.AsReal() > b.AsReal()
	}
	return a.AsInteger() < b.AsInteger()
}

func runeLen(v Value) int { return utf8.RuneCountInString(v.AsString()) }

// Binary applies the operator opcode op to a and b.
func Binary(op Opcode, a, b Value) (Value, error) {
	switch op {
	case OpADD:
		return Add(a, b)
	case OpSUB:
		return Sub(a, b)
	case OpMUL:
		return Mul(a, b)
	case OpDIV:
		return Div(a, b)
	case OpMOD:
		return Mod(a, b)
	case OpEQ:
		return Boolean(Equal(a, b)), nil
	case OpNE:
		return Boolean(!Equal(a, b)), nil
	case OpGT:
		return Boolean(Greater(a, b)), nil
	case OpLT:
		return Boolean(Less(a, b)), nil
	case OpAND:
		return Boolean(a.AsBoolean() && b.AsBoolean()), nil
	case OpOR:
		return Boolean(a.AsBoolean() || b.AsBoolean()), nil
	}
	return nil, unknownOpcode(op)
}
