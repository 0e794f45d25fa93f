package compiler

import (
	"fmt"
	"os"

	"github.com/chazu/cnpl/vm"
	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Wire format: CBOR-encoded syntax trees from the front end
// ---------------------------------------------------------------------------

// Node kinds on the wire.
const (
	kindProgram     = "program"
	kindBlock       = "block"
	kindVarDecl     = "var"
	kindAssign      = "assign"
	kindArrayAssign = "array-assign"
	kindIf          = "if"
	kindWhile       = "while"
	kindRepeat      = "repeat"
	kindBreak       = "break"
	kindReturn      = "return"
	kindFunction    = "function"
	kindCallStmt    = "call-stmt"
	kindConstant    = "const"
	kindVariable    = "load"
	kindArrayRead   = "array-read"
	kindMakeArray   = "make-array"
	kindCall        = "call"
	kindBinary      = "binary"
	kindNot         = "not"
)

// wireNode is the generic tree node. The meaning of Nodes depends on Kind:
// statements for program and block, operands in source order otherwise.
type wireNode struct {
	Kind   string      `cbor:"kind"`
	Line   int         `cbor:"line,omitempty"`
	Column int         `cbor:"col,omitempty"`
	Name   string      `cbor:"name,omitempty"`
	Op     string      `cbor:"op,omitempty"`
	Params []string    `cbor:"params,omitempty"`
	Value  *wireValue  `cbor:"value,omitempty"`
	Nodes  []*wireNode `cbor:"nodes,omitempty"`
}

type wireValue struct {
	Type  string       `cbor:"type"`
	Int   int64        `cbor:"int,omitempty"`
	Real  float64      `cbor:"real,omitempty"`
	Str   string       `cbor:"str,omitempty"`
	Bool  bool         `cbor:"bool,omitempty"`
	Rows  int          `cbor:"rows,omitempty"`
	Cols  int          `cbor:"cols,omitempty"`
	Cells []*wireValue `cbor:"cells,omitempty"`
}

// maxTreeDepth bounds CBOR nesting in tree files. Every tree level costs
// two CBOR levels: the node map and its nodes array.
const maxTreeDepth = 65535

var (
	cborEncMode cbor.EncMode
	cborDecMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("compiler: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em

	dm, err := cbor.DecOptions{
		MaxNestedLevels:  maxTreeDepth,
		MaxArrayElements: 1 << 24,
		MaxMapPairs:      1 << 24,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("compiler: failed to create CBOR dec mode: %v", err))
	}
	cborDecMode = dm
}

// UnmarshalProgram decodes a CBOR syntax tree.
func UnmarshalProgram(data []byte) (*Program, error) {
	var root wireNode
	if err := cborDecMode.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("compiler: unmarshal tree: %w", err)
	}
	if root.Kind != kindProgram {
		return nil, fmt.Errorf("compiler: tree root is %q, want %q", root.Kind, kindProgram)
	}
	stmts, err := decodeStmts(root.Nodes)
	if err != nil {
		return nil, err
	}
	return &Program{PosVal: root.pos(), Statements: stmts}, nil
}

// LoadProgramFile reads and decodes a CBOR syntax tree file.
func LoadProgramFile(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	prog, err := UnmarshalProgram(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return prog, nil
}

// MarshalProgram encodes a syntax tree in canonical CBOR.
func MarshalProgram(p *Program) ([]byte, error) {
	root := &wireNode{Kind: kindProgram, Line: p.PosVal.Line, Column: p.PosVal.Column}
	for _, s := range p.Statements {
		n, err := encodeNode(s)
		if err != nil {
			return nil, err
		}
		root.Nodes = append(root.Nodes, n)
	}
	return cborEncMode.Marshal(root)
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

func (n *wireNode) pos() Position { return Position{Line: n.Line, Column: n.Column} }

func (n *wireNode) errorf(format string, args ...any) error {
	return &Error{Pos: n.pos(), Err: fmt.Errorf("%s node: "+format, append([]any{n.Kind}, args...)...)}
}

// child returns operand i, which must be present.
func (n *wireNode) child(i int) (*wireNode, error) {
	if i >= len(n.Nodes) || n.Nodes[i] == nil {
		return nil, n.errorf("missing operand %d", i)
	}
	return n.Nodes[i], nil
}

func (n *wireNode) expr(i int) (Expr, error) {
	c, err := n.child(i)
	if err != nil {
		return nil, err
	}
	return decodeExpr(c)
}

func (n *wireNode) stmt(i int) (Stmt, error) {
	c, err := n.child(i)
	if err != nil {
		return nil, err
	}
	return decodeStmt(c)
}

func (n *wireNode) needName() error {
	if n.Name == "" {
		return n.errorf("missing name")
	}
	return nil
}

func decodeStmts(nodes []*wireNode) ([]Stmt, error) {
	stmts := make([]Stmt, 0, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		s, err := decodeStmt(n)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return stmts, nil
}

func decodeStmt(n *wireNode) (Stmt, error) {
	pos := n.pos()
	switch n.Kind {
	case kindBlock:
		stmts, err := decodeStmts(n.Nodes)
		if err != nil {
			return nil, err
		}
		return &Block{PosVal: pos, Statements: stmts}, nil

	case kindVarDecl, kindAssign:
		if err := n.needName(); err != nil {
			return nil, err
		}
		value, err := n.expr(0)
		if err != nil {
			return nil, err
		}
		if n.Kind == kindVarDecl {
			return &VarDecl{PosVal: pos, Name: n.Name, Value: value}, nil
		}
		return &Assign{PosVal: pos, Name: n.Name, Value: value}, nil

	case kindArrayAssign:
		if err := n.needName(); err != nil {
			return nil, err
		}
		ops, err := n.exprs(3)
		if err != nil {
			return nil, err
		}
		return &ArrayAssign{PosVal: pos, Name: n.Name, Row: ops[0], Col: ops[1], Value: ops[2]}, nil

	case kindIf:
		cond, err := n.expr(0)
		if err != nil {
			return nil, err
		}
		then, err := n.stmt(1)
		if err != nil {
			return nil, err
		}
		s := &If{PosVal: pos, Cond: cond, Then: then}
		if len(n.Nodes) > 2 && n.Nodes[2] != nil {
			if s.Else, err = decodeStmt(n.Nodes[2]); err != nil {
				return nil, err
			}
		}
		return s, nil

	case kindWhile:
		cond, err := n.expr(0)
		if err != nil {
			return nil, err
		}
		body, err := n.stmt(1)
		if err != nil {
			return nil, err
		}
		return &While{PosVal: pos, Cond: cond, Body: body}, nil

	case kindRepeat:
		count, err := n.expr(0)
		if err != nil {
			return nil, err
		}
		body, err := n.stmt(1)
		if err != nil {
			return nil, err
		}
		return &Repeat{PosVal: pos, Count: count, Index: n.Name, Body: body}, nil

	case kindBreak:
		return &Break{PosVal: pos}, nil

	case kindReturn:
		s := &Return{PosVal: pos}
		if len(n.Nodes) > 0 && n.Nodes[0] != nil {
			var err error
			if s.Value, err = decodeExpr(n.Nodes[0]); err != nil {
				return nil, err
			}
		}
		return s, nil

	case kindFunction:
		if err := n.needName(); err != nil {
			return nil, err
		}
		body, err := n.stmt(0)
		if err != nil {
			return nil, err
		}
		return &FuncDecl{PosVal: pos, Name: n.Name, Params: n.Params, Body: body}, nil

	case kindCallStmt:
		call, err := decodeCall(n)
		if err != nil {
			return nil, err
		}
		return &CallStmt{Call: call}, nil
	}
	return nil, n.errorf("not a statement")
}

func (n *wireNode) exprs(count int) ([]Expr, error) {
	out := make([]Expr, count)
	for i := range out {
		e, err := n.expr(i)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func decodeCall(n *wireNode) (*Call, error) {
	if err := n.needName(); err != nil {
		return nil, err
	}
	args, err := n.exprs(len(n.Nodes))
	if err != nil {
		return nil, err
	}
	return &Call{PosVal: n.pos(), Name: n.Name, Args: args}, nil
}

func decodeExpr(n *wireNode) (Expr, error) {
	pos := n.pos()
	switch n.Kind {
	case kindConstant:
		if n.Value == nil {
			return nil, n.errorf("missing value")
		}
		v, err := n.Value.decode()
		if err != nil {
			return nil, n.errorf("%v", err)
		}
		return &Constant{PosVal: pos, Value: v}, nil

	case kindVariable:
		if err := n.needName(); err != nil {
			return nil, err
		}
		return &Variable{PosVal: pos, Name: n.Name}, nil

	case kindArrayRead:
		if err := n.needName(); err != nil {
			return nil, err
		}
		ops, err := n.exprs(2)
		if err != nil {
			return nil, err
		}
		return &ArrayRead{PosVal: pos, Name: n.Name, Row: ops[0], Col: ops[1]}, nil

	case kindMakeArray:
		ops, err := n.exprs(2)
		if err != nil {
			return nil, err
		}
		e := &MakeArray{PosVal: pos, Rows: ops[0], Cols: ops[1], Fill: vm.Boolean(false)}
		if n.Value != nil {
			if e.Fill, err = n.Value.decode(); err != nil {
				return nil, n.errorf("%v", err)
			}
		}
		return e, nil

	case kindCall:
		return decodeCall(n)

	case kindBinary:
		op, ok := ParseBinaryOp(n.Op)
		if !ok {
			return nil, n.errorf("unknown operator %q", n.Op)
		}
		ops, err := n.exprs(2)
		if err != nil {
			return nil, err
		}
		return &Binary{PosVal: pos, Op: op, Left: ops[0], Right: ops[1]}, nil

	case kindNot:
		operand, err := n.expr(0)
		if err != nil {
			return nil, err
		}
		return &Not{PosVal: pos, Operand: operand}, nil
	}
	return nil, n.errorf("not an expression")
}

func (w *wireValue) decode() (vm.Value, error) {
	switch w.Type {
	case "integer":
		return vm.Integer(w.Int), nil
	case "real":
		return vm.Real(w.Real), nil
	case "string":
		return vm.String(w.Str), nil
	case "boolean":
		return vm.Boolean(w.Bool), nil
	case "array":
		a, err := vm.MakeArray(w.Rows, w.Cols, vm.Boolean(false))
		if err != nil {
			return nil, err
		}
		if len(w.Cells) > w.Rows*w.Cols {
			return nil, fmt.Errorf("bad array shape [%d,%d] with %d cells", w.Rows, w.Cols, len(w.Cells))
		}
		for i, cell := range w.Cells {
			if cell == nil {
				continue
			}
			v, err := cell.decode()
			if err != nil {
				return nil, err
			}
			if err := a.Set(i/w.Cols, i%w.Cols, v); err != nil {
				return nil, err
			}
		}
		return a, nil
	}
	return nil, fmt.Errorf("unknown value type %q", w.Type)
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

func encodeValue(v vm.Value) (*wireValue, error) {
	switch v := v.(type) {
	case vm.Integer:
		return &wireValue{Type: "integer", Int: int64(v)}, nil
	case vm.Real:
		return &wireValue{Type: "real", Real: float64(v)}, nil
	case vm.String:
		return &wireValue{Type: "string", Str: string(v)}, nil
	case vm.Boolean:
		return &wireValue{Type: "boolean", Bool: bool(v)}, nil
	case *vm.Array:
		w := &wireValue{Type: "array", Rows: v.Rows(), Cols: v.Cols()}
		for r := 0; r < v.Rows(); r++ {
			for c := 0; c < v.Cols(); c++ {
				cell, _ := v.Get(r, c)
				cw, err := encodeValue(cell)
				if err != nil {
					return nil, err
				}
				w.Cells = append(w.Cells, cw)
			}
		}
		return w, nil
	}
	return nil, fmt.Errorf("cannot encode value %T", v)
}

func encodeNodes(n *wireNode, children ...Node) error {
	for _, c := range children {
		if c == nil {
			n.Nodes = append(n.Nodes, nil)
			continue
		}
		cn, err := encodeNode(c)
		if err != nil {
			return err
		}
		n.Nodes = append(n.Nodes, cn)
	}
	return nil
}

func encodeNode(node Node) (*wireNode, error) {
	p := node.Pos()
	n := &wireNode{Line: p.Line, Column: p.Column}
	var children []Node
	var err error

	switch x := node.(type) {
	case *Block:
		n.Kind = kindBlock
		for _, s := range x.Statements {
			children = append(children, s)
		}
	case *VarDecl:
		n.Kind, n.Name, children = kindVarDecl, x.Name, []Node{x.Value}
	case *Assign:
		n.Kind, n.Name, children = kindAssign, x.Name, []Node{x.Value}
	case *ArrayAssign:
		n.Kind, n.Name, children = kindArrayAssign, x.Name, []Node{x.Row, x.Col, x.Value}
	case *If:
		n.Kind, children = kindIf, []Node{x.Cond, x.Then}
		if x.Else != nil {
			children = append(children, x.Else)
		}
	case *While:
		n.Kind, children = kindWhile, []Node{x.Cond, x.Body}
	case *Repeat:
		n.Kind, n.Name, children = kindRepeat, x.Index, []Node{x.Count, x.Body}
	case *Break:
		n.Kind = kindBreak
	case *Return:
		n.Kind = kindReturn
		if x.Value != nil {
			children = []Node{x.Value}
		}
	case *FuncDecl:
		n.Kind, n.Name, n.Params, children = kindFunction, x.Name, x.Params, []Node{x.Body}
	case *CallStmt:
		n.Kind, n.Name = kindCallStmt, x.Call.Name
		for _, a := range x.Call.Args {
			children = append(children, a)
		}
	case *Call:
		n.Kind, n.Name = kindCall, x.Name
		for _, a := range x.Args {
			children = append(children, a)
		}
	case *Constant:
		n.Kind = kindConstant
		n.Value, err = encodeValue(x.Value)
	case *Variable:
		n.Kind, n.Name = kindVariable, x.Name
	case *ArrayRead:
		n.Kind, n.Name, children = kindArrayRead, x.Name, []Node{x.Row, x.Col}
	case *MakeArray:
		n.Kind, children = kindMakeArray, []Node{x.Rows, x.Cols}
		if x.Fill != nil {
			n.Value, err = encodeValue(x.Fill)
		}
	case *Binary:
		n.Kind, n.Op, children = kindBinary, x.Op.String(), []Node{x.Left, x.Right}
	case *Not:
		n.Kind, children = kindNot, []Node{x.Operand}
	default:
		return nil, fmt.Errorf("cannot encode node %T", node)
	}
	if err != nil {
		return nil, err
	}
	if err := encodeNodes(n, children...); err != nil {
		return nil, err
	}
	return n, nil
}
