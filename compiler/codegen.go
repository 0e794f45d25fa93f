package compiler

import (
	"fmt"

	"github.com/chazu/cnpl/vm"
)

// ---------------------------------------------------------------------------
// Codegen: compile the syntax tree to an unlinked instruction stream
// ---------------------------------------------------------------------------

// programScope names the scope of top-level statements.
const programScope = "<Program>"

// Compiler holds all state of one compilation: the symbol manager, the
// constant pool and the instruction stream.
type Compiler struct {
	symbols   *Symbols
	constants *vm.ConstantPool
	out       stream
	labels    labels
}

// NewCompiler creates a compiler with an empty function table and a seeded
// constant pool.
func NewCompiler() *Compiler {
	return &Compiler{
		symbols:   NewSymbols(),
		constants: vm.NewConstantPool(),
	}
}

// Symbols exposes the symbol manager, mainly for declaring natives.
func (c *Compiler) Symbols() *Symbols { return c.symbols }

// DeclareNative registers a host function. Natives declared before any user
// function get dispatch indices 0, 1, 2, ...
func (c *Compiler) DeclareNative(name string, minimum int) *FunctionInfo {
	return c.symbols.DefineFunction(name, NativeArity, minimum)
}

// Instructions returns the current instruction stream.
func (c *Compiler) Instructions() []vm.Instruction { return c.out.code }

// Constants returns the constant pool.
func (c *Compiler) Constants() *vm.ConstantPool { return c.constants }

// CompileProgram generates code for a whole program: a frame allocation,
// the top-level statements and a final `return false`.
func (c *Compiler) CompileProgram(prog *Program) error {
	c.symbols.EnterFunction(programScope)
	alloc := c.out.emitOperand(vm.OpALLOCDSTK, 0)
	if err := c.compileStatements(prog.Statements); err != nil {
		return err
	}
	c.loadConstant(vm.Boolean(false))
	c.out.emit(vm.OpRET)
	return c.closeFrame(alloc)
}

// closeFrame back-patches a frame allocation with the final slot count and
// closes the scope.
func (c *Compiler) closeFrame(alloc int) error {
	scope, err := c.symbols.ExitFunction()
	if err != nil {
		return err
	}
	c.out.patch(alloc, len(scope.Variables))
	return nil
}

func (c *Compiler) compileStatements(stmts []Stmt) error {
	for _, s := range stmts {
		if err := c.compileStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileStmt(stmt Stmt) error {
	var err error
	switch s := stmt.(type) {
	case *Block:
		return c.compileStatements(s.Statements)
	case *VarDecl:
		err = c.compileVarDecl(s)
	case *Assign:
		err = c.compileAssign(s)
	case *ArrayAssign:
		err = c.compileArrayAssign(s)
	case *If:
		err = c.compileIf(s)
	case *While:
		err = c.compileWhile(s)
	case *Repeat:
		err = c.compileRepeat(s)
	case *Break:
		err = c.compileBreak()
	case *Return:
		err = c.compileReturn(s)
	case *FuncDecl:
		err = c.compileFuncDecl(s)
	case *CallStmt:
		if err = c.compileCall(s.Call); err == nil {
			c.out.emit(vm.OpPOP)
		}
	case nil:
		return nil
	default:
		return fmt.Errorf("unsupported statement %T", stmt)
	}
	if err != nil {
		return errorAt(stmt, err)
	}
	return nil
}

func (c *Compiler) compileExpr(expr Expr) error {
	var err error
	switch e := expr.(type) {
	case *Constant:
		c.loadConstant(e.Value)
	case *Variable:
		err = c.emitSlot(vm.OpLD, e.Name)
	case *ArrayRead:
		err = c.compileArrayRead(e)
	case *MakeArray:
		err = c.compileMakeArray(e)
	case *Call:
		err = c.compileCall(e)
	case *Binary:
		err = c.compileBinary(e)
	case *Not:
		if err = c.compileExpr(e.Operand); err == nil {
			c.out.emit(vm.OpNOT)
		}
	case nil:
		return fmt.Errorf("missing expression")
	default:
		return fmt.Errorf("unsupported expression %T", expr)
	}
	if err != nil {
		return errorAt(expr, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// compileVarDecl declares the variable before compiling its initializer, so
// an initializer naming the variable reads the slot's previous contents.
func (c *Compiler) compileVarDecl(s *VarDecl) error {
	slot, err := c.symbols.Declare(s.Name)
	if err != nil {
		return err
	}
	if err := c.compileExpr(s.Value); err != nil {
		return err
	}
	c.out.emitOperand(vm.OpSD, slot)
	return nil
}

func (c *Compiler) compileAssign(s *Assign) error {
	if err := c.compileExpr(s.Value); err != nil {
		return err
	}
	return c.emitSlot(vm.OpSD, s.Name)
}

func (c *Compiler) compileArrayAssign(s *ArrayAssign) error {
	for _, e := range []Expr{s.Row, s.Col, s.Value} {
		if err := c.compileExpr(e); err != nil {
			return err
		}
	}
	return c.emitSlot(vm.OpARRAYWRITE, s.Name)
}

func (c *Compiler) compileIf(s *If) error {
	endLabel := c.labels.newLabel("end")
	falseLabel := endLabel
	if s.Else != nil {
		falseLabel = c.labels.newLabel("false")
	}

	if err := c.compileExpr(s.Cond); err != nil {
		return err
	}
	c.out.emitJump(vm.OpJMPN, falseLabel)
	if err := c.compileStmt(s.Then); err != nil {
		return err
	}
	c.out.emitJump(vm.OpJMP, endLabel)
	if s.Else != nil {
		c.out.mark(falseLabel)
		if err := c.compileStmt(s.Else); err != nil {
			return err
		}
	}
	c.out.mark(endLabel)
	return nil
}

func (c *Compiler) compileWhile(s *While) error {
	begin, end := c.labels.newLabel("begin"), c.labels.newLabel("end")
	c.symbols.EnterLoop(begin, end)
	defer c.symbols.ExitLoop()

	c.out.mark(begin)
	if err := c.compileExpr(s.Cond); err != nil {
		return err
	}
	c.out.emitJump(vm.OpJMPN, end)
	if err := c.compileStmt(s.Body); err != nil {
		return err
	}
	c.out.emitJump(vm.OpJMP, begin)
	c.out.mark(end)
	return nil
}

// compileRepeat counts an index from 0 while index < count, evaluating the
// count expression on every iteration.
func (c *Compiler) compileRepeat(s *Repeat) error {
	begin, end := c.labels.newLabel("begin"), c.labels.newLabel("end")
	c.symbols.EnterLoop(begin, end)
	defer c.symbols.ExitLoop()

	name := s.Index
	if name == "" {
		name = "<" + c.labels.newLabel("index") + ">"
	}
	if _, err := c.symbols.Declare(name); err != nil {
		return err
	}
	index, err := c.symbols.Resolve(name)
	if err != nil {
		return err
	}

	c.loadConstant(vm.Integer(0))
	c.out.emitOperand(vm.OpSD, index)
	c.out.mark(begin)
	c.out.emitOperand(vm.OpLD, index)
	if err := c.compileExpr(s.Count); err != nil {
		return err
	}
	c.out.emit(vm.OpLT)
	c.out.emitJump(vm.OpJMPN, end)
	if err := c.compileStmt(s.Body); err != nil {
		return err
	}
	c.out.emitOperand(vm.OpLD, index)
	c.loadConstant(vm.Integer(1))
	c.out.emit(vm.OpADD)
	c.out.emitOperand(vm.OpSD, index)
	c.out.emitJump(vm.OpJMP, begin)
	c.out.mark(end)
	return nil
}

func (c *Compiler) compileBreak() error {
	end, err := c.symbols.LoopEnd()
	if err != nil {
		return err
	}
	c.out.emitJump(vm.OpJMP, end)
	return nil
}

func (c *Compiler) compileReturn(s *Return) error {
	if s.Value != nil {
		if err := c.compileExpr(s.Value); err != nil {
			return err
		}
	} else {
		c.loadConstant(vm.Boolean(false))
	}
	c.out.emit(vm.OpRET)
	return nil
}

// compileFuncDecl emits the function body inline behind a jump that skips
// it. Parameters arrive on the stack first-on-top and are stored in order.
func (c *Compiler) compileFuncDecl(s *FuncDecl) error {
	end := c.labels.newLabel("function-end")
	c.out.emitJump(vm.OpJMP, end)
	c.symbols.DefineFunction(s.Name, len(s.Params), 0)

	c.symbols.EnterFunction(s.Name)
	c.out.mark(functionLabel(s.Name))
	alloc := c.out.emitOperand(vm.OpALLOCDSTK, 0)
	for _, p := range s.Params {
		if _, err := c.symbols.Declare(p); err != nil {
			return err
		}
	}
	for _, p := range s.Params {
		if err := c.emitSlot(vm.OpSD, p); err != nil {
			return err
		}
	}

	if err := c.compileStmt(s.Body); err != nil {
		return err
	}
	c.loadConstant(vm.Boolean(false))
	c.out.emit(vm.OpRET)
	if err := c.closeFrame(alloc); err != nil {
		return err
	}
	c.out.mark(end)
	return nil
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// compileCall pushes the arguments last to first, so the first argument is
// on top when the callee starts.
func (c *Compiler) compileCall(e *Call) error {
	for i := len(e.Args) - 1; i >= 0; i-- {
		if err := c.compileExpr(e.Args[i]); err != nil {
			return err
		}
	}
	c.out.emitCall(e.Name, len(e.Args))
	return nil
}

func (c *Compiler) compileArrayRead(e *ArrayRead) error {
	if err := c.compileExpr(e.Row); err != nil {
		return err
	}
	if err := c.compileExpr(e.Col); err != nil {
		return err
	}
	return c.emitSlot(vm.OpARRAYREAD, e.Name)
}

func (c *Compiler) compileMakeArray(e *MakeArray) error {
	if err := c.compileExpr(e.Rows); err != nil {
		return err
	}
	if err := c.compileExpr(e.Cols); err != nil {
		return err
	}
	fill := e.Fill
	if fill == nil {
		fill = vm.Boolean(false)
	}
	c.loadConstant(fill)
	c.out.emit(vm.OpARRAYMAKE)
	return nil
}

func (c *Compiler) compileBinary(e *Binary) error {
	op, ok := e.Op.Opcode()
	if !ok {
		return fmt.Errorf("unknown operator %v", e.Op)
	}
	if err := c.compileExpr(e.Left); err != nil {
		return err
	}
	if err := c.compileExpr(e.Right); err != nil {
		return err
	}
	c.out.emit(op)
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (c *Compiler) loadConstant(v vm.Value) {
	c.out.emitOperand(vm.OpLC, c.constants.Add(v))
}

func (c *Compiler) emitSlot(op vm.Opcode, name string) error {
	slot, err := c.symbols.Resolve(name)
	if err != nil {
		return err
	}
	c.out.emitOperand(op, slot)
	return nil
}
