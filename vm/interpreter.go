package vm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"time"
)

// ---------------------------------------------------------------------------
// Runtime Error Types
// ---------------------------------------------------------------------------

var (
	ErrStackUnderflow  = errors.New("calculation stack underflow")
	ErrDivideByZero    = errors.New("integer division by zero")
	ErrBadSlot         = errors.New("data slot out of range")
	ErrBadConstant     = errors.New("constant index out of range")
	ErrBadJump         = errors.New("jump target out of range")
	ErrBadHostCall     = errors.New("host function index out of range")
	ErrNotArray        = errors.New("slot does not hold an array")
	ErrIndexOutOfRange = errors.New("array index out of range")
	ErrFrameTooLarge   = errors.New("data frame too large")
)

// checkInterval is how many instructions run between context checks.
const checkInterval = 1 << 12

// ---------------------------------------------------------------------------
// Engine: executes a linked program
// ---------------------------------------------------------------------------

// callFrame is the state saved by CALL and restored by RET.
type callFrame struct {
	ret  int
	data []Value
}

// Engine runs a Program on a calculation stack with one data frame per
// active call.
type Engine struct {
	program   *Program
	hostCalls []HostCall

	ip    int
	stack []Value
	data  []Value
	calls []callFrame

	globals map[string]Value
	in      *bufio.Reader
	out     io.Writer
	rng     *rand.Rand
	now     func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithInput sets the reader used by input host functions.
func WithInput(r io.Reader) EngineOption {
	return func(e *Engine) { e.in = bufio.NewReader(r) }
}

// WithOutput sets the writer used by output host functions.
func WithOutput(w io.Writer) EngineOption {
	return func(e *Engine) { e.out = w }
}

// WithHostCalls replaces the host function table. The order must match the
// import declarations the program was compiled against.
func WithHostCalls(calls []HostCall) EngineOption {
	return func(e *Engine) { e.hostCalls = calls }
}

// WithSeed makes the random host function deterministic.
func WithSeed(seed uint64) EngineOption {
	return func(e *Engine) { e.rng = rand.New(rand.NewPCG(seed, seed)) }
}

// WithClock replaces the time source of the clock host function.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithArgs publishes command-line arguments as a rows x 1 array in the
// global variable named by ArgsGlobal.
func WithArgs(args []string) EngineOption {
	return func(e *Engine) {
		a := NewArray(len(args), 1, String(""))
		for i, s := range args {
			a.cells[i] = String(s)
		}
		e.globals[ArgsGlobal] = a
	}
}

// NewEngine prepares p for execution with the standard host library.
func NewEngine(p *Program, opts ...EngineOption) *Engine {
	e := &Engine{
		program:   p,
		hostCalls: StandardHostCalls(),
		globals:   make(map[string]Value),
		in:        bufio.NewReader(os.Stdin),
		out:       os.Stdout,
		now:       time.Now,
	}
	seed := uint64(time.Now().UnixNano())
	e.rng = rand.New(rand.NewPCG(seed, seed>>1))
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Global returns a global variable, or false when it is unset.
func (e *Engine) Global(name string) Value {
	if v, ok := e.globals[name]; ok {
		return v
	}
	return Boolean(false)
}

// SetGlobal sets a global variable.
func (e *Engine) SetGlobal(name string, v Value) {
	e.globals[name] = v
}

// Output returns the writer host functions print to.
func (e *Engine) Output() io.Writer { return e.out }

func (e *Engine) push(v Value) {
	e.stack = append(e.stack, v)
}

func (e *Engine) pop() (Value, error) {
	n := len(e.stack)
	if n == 0 {
		return nil, ErrStackUnderflow
	}
	v := e.stack[n-1]
	e.stack = e.stack[:n-1]
	return v, nil
}

func (e *Engine) pop2() (Value, Value, error) {
	b, err := e.pop()
	if err != nil {
		return nil, nil, err
	}
	a, err := e.pop()
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

func (e *Engine) slot(operand uint64) (int, error) {
	if operand >= uint64(len(e.data)) {
		return 0, fmt.Errorf("%w: %d of %d", ErrBadSlot, operand, len(e.data))
	}
	return int(operand), nil
}

func (e *Engine) jump(operand uint64) error {
	if operand >= uint64(len(e.program.Instructions)) {
		return fmt.Errorf("%w: %d", ErrBadJump, operand)
	}
	// the loop increments ip after every instruction
	e.ip = int(operand) - 1
	return nil
}

func (e *Engine) arrayAt(operand uint64) (*Array, int, int, error) {
	col, err := e.pop()
	if err != nil {
		return nil, 0, 0, err
	}
	row, err := e.pop()
	if err != nil {
		return nil, 0, 0, err
	}
	s, err := e.slot(operand)
	if err != nil {
		return nil, 0, 0, err
	}
	a, ok := e.data[s].(*Array)
	if !ok {
		return nil, 0, 0, fmt.Errorf("%w: slot %d holds %s", ErrNotArray, s, e.data[s].Kind())
	}
	return a, int(row.AsReal()), int(col.AsReal()), nil
}

// Run executes the program from its first instruction until control leaves
// the instruction array, and returns the top of the calculation stack
// truncated to an integer.
func (e *Engine) Run(ctx context.Context) (int, error) {
	code := e.program.Instructions
	e.ip = 0
	e.stack = e.stack[:0]
	e.data = nil
	e.calls = append(e.calls[:0], callFrame{ret: len(code)})

	for steps := 0; e.ip >= 0 && e.ip < len(code); steps++ {
		if steps%checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		in := code[e.ip]
		if err := e.step(in); err != nil {
			return 0, fmt.Errorf("at %d (%s): %w", e.ip, in, err)
		}
		e.ip++
	}

	v, err := e.pop()
	if err != nil {
		return 0, fmt.Errorf("program left no result: %w", err)
	}
	return int(v.AsReal()), nil
}

func (e *Engine) step(in Instruction) error {
	switch in.Op {
	case OpNOOP:
		return nil

	case OpALLOCDSTK:
		if in.Operand > MaxArrayCells {
			return fmt.Errorf("%w: %d slots", ErrFrameTooLarge, in.Operand)
		}
		e.data = make([]Value, in.Operand)
		for i := range e.data {
			e.data[i] = Boolean(false)
		}

	case OpLC:
		if in.Operand >= uint64(len(e.program.Constants)) {
			return fmt.Errorf("%w: %d", ErrBadConstant, in.Operand)
		}
		e.push(e.program.Constants[in.Operand])

	case OpLD:
		s, err := e.slot(in.Operand)
		if err != nil {
			return err
		}
		e.push(e.data[s])

	case OpSD:
		v, err := e.pop()
		if err != nil {
			return err
		}
		s, err := e.slot(in.Operand)
		if err != nil {
			return err
		}
		e.data[s] = v

	case OpPUSH:
		e.push(Boolean(false))

	case OpPOP:
		_, err := e.pop()
		return err

	case OpNOT:
		v, err := e.pop()
		if err != nil {
			return err
		}
		e.push(Boolean(!v.AsBoolean()))

	case OpADD, OpSUB, OpMUL, OpDIV, OpMOD, OpEQ, OpNE, OpGT, OpLT, OpAND, OpOR:
		a, b, err := e.pop2()
		if err != nil {
			return err
		}
		r, err := Binary(in.Op, a, b)
		if err != nil {
			return err
		}
		e.push(r)

	case OpJMP:
		return e.jump(in.Operand)

	case OpJMPC, OpJMPN:
		v, err := e.pop()
		if err != nil {
			return err
		}
		if v.AsBoolean() == (in.Op == OpJMPC) {
			return e.jump(in.Operand)
		}

	case OpCALL:
		e.calls = append(e.calls, callFrame{ret: e.ip, data: e.data})
		return e.jump(in.Operand)

	case OpRET:
		n := len(e.calls)
		if n == 0 {
			return fmt.Errorf("return with empty call stack")
		}
		f := e.calls[n-1]
		e.calls = e.calls[:n-1]
		e.ip, e.data = f.ret, f.data

	case OpCALLSYS:
		argc, index := UnpackNativeCall(in.Operand)
		if index >= len(e.hostCalls) {
			return fmt.Errorf("%w: %d", ErrBadHostCall, index)
		}
		args := make([]Value, argc)
		for i := range args {
			v, err := e.pop()
			if err != nil {
				return err
			}
			args[i] = v
		}
		r, err := e.hostCalls[index].Fn(e, args)
		if err != nil {
			return fmt.Errorf("%s: %w", e.hostCalls[index].Name, err)
		}
		e.push(r)

	case OpARRAYMAKE:
		fill, err := e.pop()
		if err != nil {
			return err
		}
		rows, cols, err := e.pop2()
		if err != nil {
			return err
		}
		a, err := MakeArray(int(rows.AsReal()), int(cols.AsReal()), fill)
		if err != nil {
			return err
		}
		e.push(a)

	case OpARRAYREAD:
		a, row, col, err := e.arrayAt(in.Operand)
		if err != nil {
			return err
		}
		v, err := a.Get(row, col)
		if err != nil {
			return err
		}
		e.push(v)

	case OpARRAYWRITE:
		v, err := e.pop()
		if err != nil {
			return err
		}
		a, row, col, err := e.arrayAt(in.Operand)
		if err != nil {
			return err
		}
		return a.Set(row, col, v)

	default:
		return unknownOpcode(in.Op)
	}
	return nil
}
