package vm

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func callHost(t *testing.T, e *Engine, name string, args ...Value) Value {
	t.Helper()
	for _, hc := range e.hostCalls {
		if hc.Name == name {
			v, err := hc.Fn(e, args)
			if err != nil {
				t.Fatalf("%s: %v", name, err)
			}
			return v
		}
	}
	t.Fatalf("no host call %s", name)
	return nil
}

func TestStandardHostCallsOrder(t *testing.T) {
	calls := StandardHostCalls()
	if len(calls) != 19 {
		t.Fatalf("%d host calls, want 19", len(calls))
	}
	if calls[0].Name != "输出" || calls[18].Name != "换行符" {
		t.Errorf("first/last = %s/%s", calls[0].Name, calls[18].Name)
	}
	seen := make(map[string]bool)
	for _, c := range calls {
		if seen[c.Name] {
			t.Errorf("duplicate host call %s", c.Name)
		}
		seen[c.Name] = true
		if c.Fn == nil {
			t.Errorf("%s has no implementation", c.Name)
		}
	}
}

func TestWriteImportDefinitions(t *testing.T) {
	var buf bytes.Buffer
	calls := []HostCall{{Name: "a", MinArgs: 0}, {Name: "输出", MinArgs: 2}}
	if err := WriteImportDefinitions(&buf, calls); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "host [a] 0\nhost [输出] 2\n" {
		t.Errorf("definitions = %q", got)
	}
}

func TestHostConversions(t *testing.T) {
	e := NewEngine(program(nil))
	tests := []struct {
		name string
		arg  Value
		want Value
	}{
		{"转为数字", String("2.5"), Real(2.5)},
		{"转为整数字", Real(7.8), Integer(7)},
		{"转为一句话", Boolean(true), String("True")},
		{"向下取整", Real(-1.5), Integer(-2)},
		{"向上取整", Real(1.2), Integer(2)},
		{"取阵列的行数", NewArray(3, 4, nil), Integer(3)},
		{"取阵列的列数", NewArray(3, 4, nil), Integer(4)},
		{"取阵列的行数", Integer(5), Integer(0)},
	}
	for _, tt := range tests {
		if got := callHost(t, e, tt.name, tt.arg); got != tt.want {
			t.Errorf("%s(%v) = %#v, want %#v", tt.name, tt.arg, got, tt.want)
		}
	}
}

func TestHostInputOutput(t *testing.T) {
	var out bytes.Buffer
	e := NewEngine(program(nil), WithInput(strings.NewReader("Ada\r\nrest")), WithOutput(&out))
	if got := callHost(t, e, "输入", String("name? ")); got != String("Ada") {
		t.Errorf("input = %q", got)
	}
	if got := callHost(t, e, "输入"); got != String("rest") {
		t.Errorf("second input = %q", got)
	}
	callHost(t, e, "输出", String("a"), Integer(1))
	if out.String() != "name? a1" {
		t.Errorf("output = %q", out.String())
	}
}

func TestHostRandomIsSeeded(t *testing.T) {
	a := NewEngine(program(nil), WithSeed(42))
	b := NewEngine(program(nil), WithSeed(42))
	for i := 0; i < 5; i++ {
		x := callHost(t, a, "随机数", Integer(1), Integer(6))
		y := callHost(t, b, "随机数", Integer(1), Integer(6))
		if x != y {
			t.Fatalf("seeded engines diverged: %v vs %v", x, y)
		}
		if x.Kind() != KindInteger || x.AsInteger() < 1 || x.AsInteger() > 6 {
			t.Errorf("random(1, 6) = %#v", x)
		}
	}
	r := callHost(t, a, "随机数")
	if r.Kind() != KindReal || r.AsReal() < 0 || r.AsReal() >= 1 {
		t.Errorf("random() = %#v", r)
	}
	if r := callHost(t, a, "随机数", Real(2)); r.Kind() != KindReal || r.AsReal() > 2 {
		t.Errorf("random(2.0) = %#v", r)
	}
}

func TestHostConsole(t *testing.T) {
	var out bytes.Buffer
	e := NewEngine(program(nil), WithOutput(&out))
	callHost(t, e, "设置窗口前景色", String("Red"))
	callHost(t, e, "设置窗口背景色", String("DarkBlue"))
	callHost(t, e, "设置窗口光标位置", Integer(3), Integer(7))
	callHost(t, e, "设置窗口标题", String("demo"))
	want := "\x1b[91m\x1b[44m\x1b[7;3H\x1b]0;demo\a"
	if out.String() != want {
		t.Errorf("console output = %q, want %q", out.String(), want)
	}
	if got := callHost(t, e, "读取按键值"); got != String("None") {
		t.Errorf("read key = %v", got)
	}
}

func TestHostGlobalsAndClock(t *testing.T) {
	at := time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)
	e := NewEngine(program(nil), WithClock(func() time.Time { return at }))
	callHost(t, e, "设置全局变量", String("k"), Integer(3))
	if got := callHost(t, e, "获取全局变量", String("k")); got != Integer(3) {
		t.Errorf("global k = %v", got)
	}
	if got := callHost(t, e, "取当前时间"); got != Integer(at.UnixMilli()) {
		t.Errorf("now = %v", got)
	}
	if got := callHost(t, e, "换行符"); got != String("\n") {
		t.Errorf("newline = %q", got)
	}
}

func TestHostGlobalsThroughBytecode(t *testing.T) {
	// 设置全局变量("n", 8); return 获取全局变量("n")
	p := program([]Value{String("n")},
		lcInt(8), opN(OpLC, 12), opN(OpCALLSYS, PackNativeCall(2, 16)), op(OpPOP),
		opN(OpLC, 12), opN(OpCALLSYS, PackNativeCall(1, 15)),
		op(OpRET),
	)
	code, err := NewEngine(p).Run(context.Background())
	if err != nil || code != 8 {
		t.Errorf("Run = %d, %v; want 8", code, err)
	}
}
