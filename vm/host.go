package vm

import (
	"fmt"
	"io"
	"math"
	"strings"
)

// HostFunc implements a native function. args holds the actual arguments
// in declaration order.
type HostFunc func(e *Engine, args []Value) (Value, error)

// HostCall is one entry of the host function table. Its position in the
// table is its dispatch index.
type HostCall struct {
	Name    string
	MinArgs int
	Fn      HostFunc
}

// ArgsGlobal is the global variable holding the program's command-line
// arguments.
const ArgsGlobal = "命令行参数"

// StandardHostCalls returns the host library in dispatch order.
func StandardHostCalls() []HostCall {
	return []HostCall{
		{"输出", 0, hostOutput},
		{"输入", 0, hostInput},
		{"转为数字", 0, hostToReal},
		{"转为整数字", 0, hostToInteger},
		{"转为一句话", 0, hostToString},
		{"向下取整", 0, hostFloor},
		{"向上取整", 0, hostCeiling},
		{"取阵列的行数", 0, hostArrayRows},
		{"取阵列的列数", 0, hostArrayCols},
		{"随机数", 0, hostRandom},
		{"设置窗口标题", 0, hostSetTitle},
		{"设置窗口背景色", 0, hostSetBackground},
		{"设置窗口前景色", 0, hostSetForeground},
		{"设置窗口光标位置", 0, hostSetCursor},
		{"读取按键值", 0, hostReadKey},
		{"获取全局变量", 0, hostGetGlobal},
		{"设置全局变量", 0, hostSetGlobal},
		{"取当前时间", 0, hostNow},
		{"换行符", 0, hostNewline},
	}
}

// WriteImportDefinitions writes one "host [name] min" line per host call.
// Compiling against this file assigns each function its table position as
// dispatch index.
func WriteImportDefinitions(w io.Writer, calls []HostCall) error {
	for _, c := range calls {
		if _, err := fmt.Fprintf(w, "host [%s] %d\n", c.Name, c.MinArgs); err != nil {
			return err
		}
	}
	return nil
}

func writeAll(e *Engine, args []Value) error {
	for _, a := range args {
		if _, err := io.WriteString(e.out, a.AsString()); err != nil {
			return err
		}
	}
	return nil
}

func hostOutput(e *Engine, args []Value) (Value, error) {
	return Boolean(false), writeAll(e, args)
}

func hostInput(e *Engine, args []Value) (Value, error) {
	if err := writeAll(e, args); err != nil {
		return nil, err
	}
	line, err := e.in.ReadString('\n')
	if err != nil && line == "" && err != io.EOF {
		return nil, err
	}
	return String(strings.TrimRight(line, "\r\n")), nil
}

func hostToReal(_ *Engine, args []Value) (Value, error) {
	if len(args) > 0 {
		return Real(args[0].AsReal()), nil
	}
	return Real(0), nil
}

func hostToInteger(_ *Engine, args []Value) (Value, error) {
	if len(args) > 0 {
		return Integer(args[0].AsInteger()), nil
	}
	return Integer(0), nil
}

func hostToString(_ *Engine, args []Value) (Value, error) {
	if len(args) > 0 {
		return String(args[0].AsString()), nil
	}
	return String(""), nil
}

func hostFloor(_ *Engine, args []Value) (Value, error) {
	if len(args) > 0 {
		return Integer(int64(math.Floor(args[0].AsReal()))), nil
	}
	return Integer(0), nil
}

func hostCeiling(_ *Engine, args []Value) (Value, error) {
	if len(args) > 0 {
		return Integer(int64(math.Ceil(args[0].AsReal()))), nil
	}
	return Integer(0), nil
}

func hostArrayRows(_ *Engine, args []Value) (Value, error) {
	if len(args) > 0 {
		if a, ok := args[0].(*Array); ok {
			return Integer(a.Rows()), nil
		}
	}
	return Integer(0), nil
}

func hostArrayCols(_ *Engine, args []Value) (Value, error) {
	if len(args) > 0 {
		if a, ok := args[0].(*Array); ok {
			return Integer(a.Cols()), nil
		}
	}
	return Integer(0), nil
}

// hostRandom: no arguments gives a real in [0,1); one argument n gives a
// value in [0,n]; two give a value in [lo,hi]. An Integer first argument
// selects an integer result.
func hostRandom(e *Engine, args []Value) (Value, error) {
	switch len(args) {
	case 0:
		return Real(e.rng.Float64()), nil
	case 1:
		return e.randomBetween(Integer(0), args[0], args[0].Kind() == KindInteger), nil
	}
	return e.randomBetween(args[0], args[1], args[0].Kind() == KindInteger), nil
}

func (e *Engine) randomBetween(lo, hi Value, integer bool) Value {
	if integer {
		a, b := lo.AsInteger(), hi.AsInteger()
		if b < a {
			a, b = b, a
		}
		span := uint64(b - a)
		if span == math.MaxUint64 {
			return Integer(int64(e.rng.Uint64()))
		}
		return Integer(a + int64(e.rng.Uint64N(span+1)))
	}
	a, b := lo.AsReal(), hi.AsReal()
	return Real(a + e.rng.Float64()*(b-a))
}

var consoleColors = map[string]int{
	"Black": 0, "DarkRed": 1, "DarkGreen": 2, "DarkYellow": 3,
	"DarkBlue": 4, "DarkMagenta": 5, "DarkCyan": 6, "Gray": 7,
	"DarkGray": 60, "Red": 61, "Green": 62, "Yellow": 63,
	"Blue": 64, "Magenta": 65, "Cyan": 66, "White": 67,
}

func (e *Engine) setColor(args []Value, base int) (Value, error) {
	if len(args) == 0 {
		return String(""), nil
	}
	name := args[0].AsString()
	if c, ok := consoleColors[name]; ok {
		if _, err := fmt.Fprintf(e.out, "\033[%dm", base+c); err != nil {
			return nil, err
		}
	}
	return String(name), nil
}

func hostSetBackground(e *Engine, args []Value) (Value, error) {
	return e.setColor(args, 40)
}

func hostSetForeground(e *Engine, args []Value) (Value, error) {
	return e.setColor(args, 30)
}

func hostSetTitle(e *Engine, args []Value) (Value, error) {
	if len(args) == 0 {
		return String(""), nil
	}
	if _, err := fmt.Fprintf(e.out, "\033]0;%s\007", args[0].AsString()); err != nil {
		return nil, err
	}
	return args[0], nil
}

func hostSetCursor(e *Engine, args []Value) (Value, error) {
	if len(args) == 2 {
		x, y := uint16(args[0].AsInteger()), uint16(args[1].AsInteger())
		if _, err := fmt.Fprintf(e.out, "\033[%d;%dH", y, x); err != nil {
			return nil, err
		}
	}
	return Boolean(true), nil
}

// hostReadKey has no raw keyboard access; it reports that no key is waiting.
func hostReadKey(_ *Engine, _ []Value) (Value, error) {
	return String("None"), nil
}

func hostGetGlobal(e *Engine, args []Value) (Value, error) {
	if len(args) >= 1 {
		return e.Global(args[0].AsString()), nil
	}
	return Boolean(false), nil
}

func hostSetGlobal(e *Engine, args []Value) (Value, error) {
	if len(args) >= 2 {
		e.SetGlobal(args[0].AsString(), args[1])
		return args[1], nil
	}
	return Boolean(false), nil
}

func hostNow(e *Engine, _ []Value) (Value, error) {
	return Integer(e.now().UnixMilli()), nil
}

func hostNewline(_ *Engine, _ []Value) (Value, error) {
	return String("\n"), nil
}
