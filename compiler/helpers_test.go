package compiler

import "github.com/chazu/cnpl/vm"

// Tree construction shorthands.

func lit(v vm.Value) *Constant      { return &Constant{Value: v} }
func num(n int64) *Constant         { return lit(vm.Integer(n)) }
func ref(name string) *Variable     { return &Variable{Name: name} }
func ret(e Expr) *Return            { return &Return{Value: e} }
func block(stmts ...Stmt) *Block    { return &Block{Statements: stmts} }
func prog(stmts ...Stmt) *Program   { return &Program{Statements: stmts} }
func decl(name string, e Expr) Stmt { return &VarDecl{Name: name, Value: e} }

func call(name string, args ...Expr) *Call {
	return &Call{Name: name, Args: args}
}

func callStmt(name string, args ...Expr) Stmt {
	return &CallStmt{Call: call(name, args...)}
}

func fn(name string, params []string, body ...Stmt) *FuncDecl {
	return &FuncDecl{Name: name, Params: params, Body: block(body...)}
}

func bin(op BinaryOp, l, r Expr) *Binary {
	return &Binary{Op: op, Left: l, Right: r}
}

// ops returns the opcodes of a stream.
func ops(code []vm.Instruction) []vm.Opcode {
	out := make([]vm.Opcode, len(code))
	for i, in := range code {
		out[i] = in.Op
	}
	return out
}

func equalOps(a, b []vm.Opcode) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
