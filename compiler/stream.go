package compiler

import (
	"fmt"

	"github.com/chazu/cnpl/vm"
)

// stream is the instruction sequence built during code generation. Jumps
// and calls refer to labels by name until the linker resolves them.
type stream struct {
	code []vm.Instruction
}

func (s *stream) emit(op vm.Opcode) int {
	s.code = append(s.code, vm.Instruction{Op: op})
	return len(s.code) - 1
}

func (s *stream) emitOperand(op vm.Opcode, operand int) int {
	s.code = append(s.code, vm.Instruction{Op: op, Operand: uint64(operand)})
	return len(s.code) - 1
}

func (s *stream) emitJump(op vm.Opcode, target string) {
	s.code = append(s.code, vm.Instruction{Op: op, Target: target})
}

func (s *stream) emitCall(name string, argc int) {
	s.code = append(s.code, vm.Instruction{
		Op:     vm.OpCALL,
		Target: functionLabel(name),
		Name:   name,
		Argc:   argc,
	})
}

// mark places label at the current position as a NOOP marker.
func (s *stream) mark(label string) {
	s.code = append(s.code, vm.Instruction{Op: vm.OpNOOP, Label: label})
}

func (s *stream) patch(at int, operand int) {
	s.code[at].Operand = uint64(operand)
}

// functionLabel is the entry label of a user function. Generated labels
// never start with '<', so the two namespaces cannot collide.
func functionLabel(name string) string {
	return "<" + name + ">"
}

// functionName reverses functionLabel.
func functionName(label string) (string, bool) {
	if len(label) < 3 || label[0] != '<' || label[len(label)-1] != '>' {
		return "", false
	}
	return label[1 : len(label)-1], true
}

// labels hands out unique label names for one compilation.
type labels struct {
	next int
}

func (l *labels) newLabel(kind string) string {
	l.next++
	return fmt.Sprintf("@L%d-%s", l.next, kind)
}
