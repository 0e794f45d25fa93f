package compiler

import (
	"errors"
	"fmt"
)

var (
	ErrNoScope          = errors.New("no function scope is open")
	ErrVariableNotFound = errors.New("variable not found")
	ErrFunctionNotFound = errors.New("function not found")
	ErrBreakOutsideLoop = errors.New("break outside loop")
	ErrTooFewArguments  = errors.New("too few arguments")
	ErrTooManyArguments = errors.New("too many arguments")
	ErrArgumentLimit    = errors.New("argument count exceeds maximum")
	ErrUndefinedLabel   = errors.New("undefined label")
	ErrDuplicateLabel   = errors.New("label defined more than once")
)

// Error is a compilation failure tied to a source position.
type Error struct {
	Pos Position
	Err error
}

func (e *Error) Error() string {
	if e.Pos.Line == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Pos, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func errorAt(n Node, err error) error {
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	return &Error{Pos: n.Pos(), Err: err}
}
