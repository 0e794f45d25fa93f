package vm

import (
	"encoding/binary"
	"fmt"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode identifies an instruction. It is encoded as a little-endian uint16.
type Opcode uint16

const (
	OpNOOP       Opcode = 0  // position marker
	OpADD        Opcode = 1  // a + b
	OpAND        Opcode = 2  // a and b
	OpALLOCDSTK  Opcode = 3  // allocate a data frame of N slots
	OpARRAYMAKE  Opcode = 4  // rows cols fill -> array
	OpARRAYREAD  Opcode = 5  // row col -> slot[row,col]
	OpARRAYWRITE Opcode = 6  // row col value -> slot[row,col] = value
	OpCALL       Opcode = 7  // call instruction index
	OpCALLSYS    Opcode = 8  // call host function (argc<<22 | index)
	OpDIV        Opcode = 9  // a / b
	OpEQ         Opcode = 10 // a == b
	OpGT         Opcode = 11 // a > b
	OpJMP        Opcode = 12 // jump
	OpJMPC       Opcode = 13 // jump if true
	OpJMPN       Opcode = 14 // jump if false
	OpLT         Opcode = 15 // a < b
	OpLC         Opcode = 16 // load constant
	OpLD         Opcode = 17 // load slot
	OpMOD        Opcode = 18 // a % b
	OpMUL        Opcode = 19 // a * b
	OpNE         Opcode = 20 // a != b
	OpNOT        Opcode = 21 // not a
	OpOR         Opcode = 22 // a or b
	OpPOP        Opcode = 23 // discard top of stack
	OpPUSH       Opcode = 24 // push false
	OpRET        Opcode = 25 // return top of stack
	OpSUB        Opcode = 26 // a - b
	OpSD         Opcode = 27 // store slot
)

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name       string // mnemonic
	HasOperand bool   // carries one varint operand
	Jump       bool   // operand is an instruction index resolved from a label
}

var opcodeTable = map[Opcode]OpcodeInfo{
	OpNOOP:       {"NOOP", false, false},
	OpADD:        {"ADD", false, false},
	OpAND:        {"AND", false, false},
	OpALLOCDSTK:  {"ALLOCDSTK", true, false},
	OpARRAYMAKE:  {"ARRAYMAKE", false, false},
	OpARRAYREAD:  {"ARRAYREAD", true, false},
	OpARRAYWRITE: {"ARRAYWRITE", true, false},
	OpCALL:       {"CALL", true, true},
	OpCALLSYS:    {"CALLSYS", true, false},
	OpDIV:        {"DIV", false, false},
	OpEQ:         {"EQ", false, false},
	OpGT:         {"GT", false, false},
	OpJMP:        {"JMP", true, true},
	OpJMPC:       {"JMPC", true, true},
	OpJMPN:       {"JMPN", true, true},
	OpLT:         {"LT", false, false},
	OpLC:         {"LC", true, false},
	OpLD:         {"LD", true, false},
	OpMOD:        {"MOD", false, false},
	OpMUL:        {"MUL", false, false},
	OpNE:         {"NE", false, false},
	OpNOT:        {"NOT", false, false},
	OpOR:         {"OR", false, false},
	OpPOP:        {"POP", false, false},
	OpPUSH:       {"PUSH", false, false},
	OpRET:        {"RET", false, false},
	OpSUB:        {"SUB", false, false},
	OpSD:         {"SD", true, false},
}

// Info returns metadata for the opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(%d)", uint16(op))}
}

// Valid reports whether op is a defined opcode.
func (op Opcode) Valid() bool {
	_, ok := opcodeTable[op]
	return ok
}

// String returns the mnemonic.
func (op Opcode) String() string {
	return op.Info().Name
}

// ---------------------------------------------------------------------------
// Native dispatch operand packing
// ---------------------------------------------------------------------------

const (
	// MaxNativeArgs is the largest argument count a CALLSYS operand can carry.
	MaxNativeArgs = 1023

	nativeIndexMask = 0x3FFFFF
	nativeArgsShift = 22
)

// PackNativeCall packs an argument count and dispatch index into a CALLSYS
// operand: the count in the high 10 bits, the index in the low 22.
func PackNativeCall(argc, index int) uint64 {
	return uint64((uint32(argc)<<nativeArgsShift)&0xFFC00000 | uint32(index)&nativeIndexMask)
}

// UnpackNativeCall splits a CALLSYS operand into its argument count and
// dispatch index.
func UnpackNativeCall(operand uint64) (argc, index int) {
	return int(uint32(operand) >> nativeArgsShift), int(uint32(operand) & nativeIndexMask)
}

// ---------------------------------------------------------------------------
// Instruction
// ---------------------------------------------------------------------------

// Instruction is one element of an instruction stream. Before linking, jump
// and call instructions name their destination in Target; linking resolves
// Target to an absolute index stored in Operand.
type Instruction struct {
	Op      Opcode
	Operand uint64

	// Label is the position label attached to this instruction, if any.
	Label string
	// Target is the label a jump or call refers to.
	Target string
	// Name is the callee of a call.
	Name string
	// Argc is the argument count of a call.
	Argc int
}

// String renders the instruction the way listings show it.
func (in Instruction) String() string {
	info := in.Op.Info()
	switch {
	case in.Op == OpCALLSYS:
		argc, index := UnpackNativeCall(in.Operand)
		return fmt.Sprintf("%s %d %d", info.Name, argc, index)
	case info.HasOperand:
		return fmt.Sprintf("%s %d", info.Name, in.Operand)
	}
	return info.Name
}

// ---------------------------------------------------------------------------
// Varint codec
// ---------------------------------------------------------------------------

// AppendUvarint appends v using 7 payload bits per byte, least significant
// group first, with 0x80 set on every byte but the last.
func AppendUvarint(buf []byte, v uint64) []byte {
	return binary.AppendUvarint(buf, v)
}

// EncodeUvarint returns the varint encoding of v.
func EncodeUvarint(v uint64) []byte {
	return AppendUvarint(nil, v)
}

// DecodeUvarint decodes a varint from the front of buf and returns the value
// and the number of bytes consumed.
func DecodeUvarint(buf []byte) (uint64, int, error) {
	v, n := binary.Uvarint(buf)
	switch {
	case n == 0:
		return 0, 0, ErrTruncated
	case n < 0:
		return 0, 0, fmt.Errorf("%w: varint overflows 64 bits", ErrCorruptData)
	}
	return v, n, nil
}
