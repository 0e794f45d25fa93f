package compiler

import (
	"fmt"

	"github.com/chazu/cnpl/vm"
)

// ---------------------------------------------------------------------------
// AST: syntax tree handed over by the front end
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Line   int // 1-based line number, 0 if unknown
	Column int // 1-based column number
}

func (p Position) String() string {
	if p.Line == 0 {
		return "?"
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Pos() Position
	node() // marker method
}

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Constant is a literal value.
type Constant struct {
	PosVal Position
	Value  vm.Value
}

func (n *Constant) Pos() Position { return n.PosVal }
func (n *Constant) node()         {}
func (n *Constant) expr()         {}

// Variable reads a local variable.
type Variable struct {
	PosVal Position
	Name   string
}

func (n *Variable) Pos() Position { return n.PosVal }
func (n *Variable) node()         {}
func (n *Variable) expr()         {}

// ArrayRead reads Name[Row, Col].
type ArrayRead struct {
	PosVal Position
	Name   string
	Row    Expr
	Col    Expr
}

func (n *ArrayRead) Pos() Position { return n.PosVal }
func (n *ArrayRead) node()         {}
func (n *ArrayRead) expr()         {}

// MakeArray builds a Rows x Cols array with every cell set to Fill.
type MakeArray struct {
	PosVal Position
	Rows   Expr
	Cols   Expr
	Fill   vm.Value
}

func (n *MakeArray) Pos() Position { return n.PosVal }
func (n *MakeArray) node()         {}
func (n *MakeArray) expr()         {}

// Call invokes a user or native function and yields its result.
type Call struct {
	PosVal Position
	Name   string
	Args   []Expr
}

func (n *Call) Pos() Position { return n.PosVal }
func (n *Call) node()         {}
func (n *Call) expr()         {}

// BinaryOp names a two-operand operator.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNe
	OpGt
	OpLt
	OpAnd
	OpOr
)

var binaryOps = []struct {
	name   string
	opcode vm.Opcode
}{
	OpAdd: {"+", vm.OpADD},
	OpSub: {"-", vm.OpSUB},
	OpMul: {"*", vm.OpMUL},
	OpDiv: {"/", vm.OpDIV},
	OpMod: {"%", vm.OpMOD},
	OpEq:  {"==", vm.OpEQ},
	OpNe:  {"!=", vm.OpNE},
	OpGt:  {">", vm.OpGT},
	OpLt:  {"<", vm.OpLT},
	OpAnd: {"and", vm.OpAND},
	OpOr:  {"or", vm.OpOR},
}

func (op BinaryOp) String() string {
	if op >= 0 && int(op) < len(binaryOps) {
		return binaryOps[op].name
	}
	return fmt.Sprintf("BinaryOp(%d)", int(op))
}

// Opcode returns the instruction implementing op.
func (op BinaryOp) Opcode() (vm.Opcode, bool) {
	if op >= 0 && int(op) < len(binaryOps) {
		return binaryOps[op].opcode, true
	}
	return 0, false
}

// ParseBinaryOp maps an operator's text form to its BinaryOp.
func ParseBinaryOp(s string) (BinaryOp, bool) {
	for i, op := range binaryOps {
		if op.name == s {
			return BinaryOp(i), true
		}
	}
	return 0, false
}

// Binary applies Op to Left and Right. Both operands are always evaluated.
type Binary struct {
	PosVal Position
	Op     BinaryOp
	Left   Expr
	Right  Expr
}

func (n *Binary) Pos() Position { return n.PosVal }
func (n *Binary) node()         {}
func (n *Binary) expr()         {}

// Not negates the truth of Operand.
type Not struct {
	PosVal  Position
	Operand Expr
}

func (n *Not) Pos() Position { return n.PosVal }
func (n *Not) node()         {}
func (n *Not) expr()         {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// Program is the root of a compilation unit.
type Program struct {
	PosVal     Position
	Statements []Stmt
}

func (n *Program) Pos() Position { return n.PosVal }
func (n *Program) node()         {}

// Block is a statement sequence.
type Block struct {
	PosVal     Position
	Statements []Stmt
}

func (n *Block) Pos() Position { return n.PosVal }
func (n *Block) node()         {}
func (n *Block) stmt()         {}

// VarDecl declares Name in the current function and stores Value into it.
type VarDecl struct {
	PosVal Position
	Name   string
	Value  Expr
}

func (n *VarDecl) Pos() Position { return n.PosVal }
func (n *VarDecl) node()         {}
func (n *VarDecl) stmt()         {}

// Assign stores Value into an existing variable.
type Assign struct {
	PosVal Position
	Name   string
	Value  Expr
}

func (n *Assign) Pos() Position { return n.PosVal }
func (n *Assign) node()         {}
func (n *Assign) stmt()         {}

// ArrayAssign stores Value into Name[Row, Col].
type ArrayAssign struct {
	PosVal Position
	Name   string
	Row    Expr
	Col    Expr
	Value  Expr
}

func (n *ArrayAssign) Pos() Position { return n.PosVal }
func (n *ArrayAssign) node()         {}
func (n *ArrayAssign) stmt()         {}

// If runs Then when Cond holds, otherwise Else (which may be nil).
type If struct {
	PosVal Position
	Cond   Expr
	Then   Stmt
	Else   Stmt
}

func (n *If) Pos() Position { return n.PosVal }
func (n *If) node()         {}
func (n *If) stmt()         {}

// While repeats Body while Cond holds.
type While struct {
	PosVal Position
	Cond   Expr
	Body   Stmt
}

func (n *While) Pos() Position { return n.PosVal }
func (n *While) node()         {}
func (n *While) stmt()         {}

// Repeat runs Body Count times, counting Index up from 0. Count is
// re-evaluated before every iteration. An empty Index uses a hidden variable.
type Repeat struct {
	PosVal Position
	Count  Expr
	Index  string
	Body   Stmt
}

func (n *Repeat) Pos() Position { return n.PosVal }
func (n *Repeat) node()         {}
func (n *Repeat) stmt()         {}

// Break leaves the innermost loop.
type Break struct {
	PosVal Position
}

func (n *Break) Pos() Position { return n.PosVal }
func (n *Break) node()         {}
func (n *Break) stmt()         {}

// Return leaves the current function with Value, or false when Value is nil.
type Return struct {
	PosVal Position
	Value  Expr
}

func (n *Return) Pos() Position { return n.PosVal }
func (n *Return) node()         {}
func (n *Return) stmt()         {}

// FuncDecl declares a user function.
type FuncDecl struct {
	PosVal Position
	Name   string
	Params []string
	Body   Stmt
}

func (n *FuncDecl) Pos() Position { return n.PosVal }
func (n *FuncDecl) node()         {}
func (n *FuncDecl) stmt()         {}

// CallStmt is a call whose result is discarded.
type CallStmt struct {
	Call *Call
}

func (n *CallStmt) Pos() Position { return n.Call.PosVal }
func (n *CallStmt) node()         {}
func (n *CallStmt) stmt()         {}
