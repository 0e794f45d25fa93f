package compiler

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/cnpl/vm"
)

func sampleTree() *Program {
	grid := vm.NewArray(1, 2, vm.Integer(0))
	_ = grid.Set(0, 1, vm.String("b"))
	return &Program{
		PosVal: Position{Line: 1, Column: 1},
		Statements: []Stmt{
			&FuncDecl{
				PosVal: Position{Line: 1, Column: 1},
				Name:   "twice",
				Params: []string{"n"},
				Body:   block(ret(bin(OpMul, ref("n"), num(2)))),
			},
			&VarDecl{PosVal: Position{Line: 4, Column: 1}, Name: "g", Value: lit(grid)},
			decl("m", &MakeArray{Rows: num(2), Cols: num(2), Fill: vm.Real(0.5)}),
			&ArrayAssign{Name: "m", Row: num(0), Col: num(1), Value: lit(vm.String("x"))},
			&If{
				Cond: &Not{Operand: lit(vm.Boolean(false))},
				Then: &Assign{Name: "g", Value: &ArrayRead{Name: "m", Row: num(1), Col: num(1)}},
			},
			&Repeat{Count: num(2), Index: "i", Body: block(&Break{})},
			&While{Cond: lit(vm.Boolean(false)), Body: block()},
			callStmt("twice", num(3)),
			ret(call("twice", num(21))),
		},
	}
}

func TestWireRoundTripCompilesIdentically(t *testing.T) {
	tree := sampleTree()
	data, err := MarshalProgram(tree)
	if err != nil {
		t.Fatalf("MarshalProgram: %v", err)
	}
	decoded, err := UnmarshalProgram(data)
	if err != nil {
		t.Fatalf("UnmarshalProgram: %v", err)
	}
	if len(decoded.Statements) != len(tree.Statements) {
		t.Fatalf("%d statements, want %d", len(decoded.Statements), len(tree.Statements))
	}
	if v := decoded.Statements[1].(*VarDecl); v.Pos() != (Position{Line: 4, Column: 1}) {
		t.Errorf("position lost: %v", v.Pos())
	}

	want := vm.Listing(compileAndLink(t, tree))
	got := vm.Listing(compileAndLink(t, decoded))
	if string(got) != string(want) {
		t.Errorf("decoded tree compiles differently:\n%s\nwant:\n%s", got, want)
	}

	again, err := MarshalProgram(decoded)
	if err != nil {
		t.Fatal(err)
	}
	if string(again) != string(data) {
		t.Error("canonical encoding is not stable")
	}
}

func TestLoadProgramFileRuns(t *testing.T) {
	data, err := MarshalProgram(sampleTree())
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "sample.cbor")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	tree, err := LoadProgramFile(path)
	if err != nil {
		t.Fatal(err)
	}
	code, err := vm.NewEngine(compileAndLink(t, tree)).Run(context.Background())
	if err != nil || code != 42 {
		t.Errorf("Run = %d, %v; want 42", code, err)
	}
}

func TestUnmarshalProgramErrors(t *testing.T) {
	encode := func(n *wireNode) []byte {
		data, err := cbor.Marshal(n)
		if err != nil {
			t.Fatal(err)
		}
		return data
	}
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"garbage", []byte{0xFF, 0x00}, "unmarshal tree"},
		{"wrong root", encode(&wireNode{Kind: kindBlock}), "tree root"},
		{"expression as statement", encode(&wireNode{Kind: kindProgram, Nodes: []*wireNode{{Kind: kindConstant}}}), "not a statement"},
		{"unknown operator", encode(&wireNode{Kind: kindProgram, Nodes: []*wireNode{
			{Kind: kindReturn, Nodes: []*wireNode{{Kind: kindBinary, Op: "**", Nodes: []*wireNode{
				{Kind: kindConstant, Value: &wireValue{Type: "integer", Int: 1}},
				{Kind: kindConstant, Value: &wireValue{Type: "integer", Int: 2}},
			}}}},
		}}), "unknown operator"},
		{"bad value type", encode(&wireNode{Kind: kindProgram, Nodes: []*wireNode{
			{Kind: kindReturn, Nodes: []*wireNode{{Kind: kindConstant, Value: &wireValue{Type: "complex"}}}},
		}}), "unknown value type"},
		{"oversized array", encode(&wireNode{Kind: kindProgram, Nodes: []*wireNode{
			{Kind: kindReturn, Nodes: []*wireNode{{Kind: kindConstant, Value: &wireValue{Type: "array", Rows: math.MaxInt/2 + 1, Cols: 4}}}},
		}}), "array size out of range"},
		{"negative array", encode(&wireNode{Kind: kindProgram, Nodes: []*wireNode{
			{Kind: kindReturn, Nodes: []*wireNode{{Kind: kindConstant, Value: &wireValue{Type: "array", Rows: -1, Cols: 2}}}},
		}}), "array size out of range"},
		{"missing name", encode(&wireNode{Kind: kindProgram, Nodes: []*wireNode{
			{Kind: kindVarDecl, Nodes: []*wireNode{{Kind: kindConstant, Value: &wireValue{Type: "boolean"}}}},
		}}), "name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalProgram(tt.data)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestWireDeepExpression(t *testing.T) {
	for _, terms := range []int{16, 200} {
		var sum Expr = num(1)
		for i := 2; i <= terms; i++ {
			sum = bin(OpAdd, sum, num(int64(i)))
		}
		tree := prog(fn("f", nil, ret(sum)), ret(call("f")))

		data, err := MarshalProgram(tree)
		if err != nil {
			t.Fatalf("%d terms: MarshalProgram: %v", terms, err)
		}
		decoded, err := UnmarshalProgram(data)
		if err != nil {
			t.Fatalf("%d terms: UnmarshalProgram: %v", terms, err)
		}
		if got, want := runProgram(t, decoded), terms*(terms+1)/2; got != want {
			t.Errorf("%d terms: Run = %d, want %d", terms, got, want)
		}
	}
}

func TestLoadProgramFileMissing(t *testing.T) {
	_, err := LoadProgramFile(filepath.Join(t.TempDir(), "none.cbor"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want not-exist", err)
	}
}
