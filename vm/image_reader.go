package vm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
)

// ---------------------------------------------------------------------------
// Decoding Error Types
// ---------------------------------------------------------------------------

var (
	ErrBadMarker     = errors.New("not a bytecode file: format marker mismatch")
	ErrTruncated     = errors.New("unexpected end of bytecode data")
	ErrCorruptData   = errors.New("corrupt bytecode data")
	ErrUnknownTag    = errors.New("unknown value tag")
	ErrUnknownOpcode = errors.New("unknown opcode")
)

func unknownOpcode(op Opcode) error {
	return fmt.Errorf("%w: %d", ErrUnknownOpcode, uint16(op))
}

// ---------------------------------------------------------------------------
// ImageHeader: parsed header information
// ---------------------------------------------------------------------------

// ImageHeader contains the fixed fields at the start of a bytecode file.
type ImageHeader struct {
	ConstantCount    uint32
	InstructionCount uint32
	Length           uint64
	Created          time.Time
}

// ---------------------------------------------------------------------------
// ImageReader: decodes bytecode into a Program
// ---------------------------------------------------------------------------

// ImageReader decodes a bytecode file held in memory.
type ImageReader struct {
	data   []byte
	offset int
	header ImageHeader
}

// NewImageReader reads all of r and returns a reader over it.
func NewImageReader(r io.Reader) (*ImageReader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read bytecode: %w", err)
	}
	return NewImageReaderFromBytes(data), nil
}

// NewImageReaderFromBytes returns a reader over data.
func NewImageReaderFromBytes(data []byte) *ImageReader {
	return &ImageReader{data: data}
}

// ReadHeader reads and validates the header.
func (ir *ImageReader) ReadHeader() (*ImageHeader, error) {
	if len(ir.data) < HeaderSize {
		return nil, fmt.Errorf("%w: header needs %d bytes, have %d", ErrTruncated, HeaderSize, len(ir.data))
	}
	if !bytes.Equal(ir.data[:len(FormatMarker)], FormatMarker[:]) {
		return nil, ErrBadMarker
	}

	ir.header = ImageHeader{
		ConstantCount:    ReadUint32(ir.data[offConstantCount:]),
		InstructionCount: ReadUint32(ir.data[offInstructionCount:]),
		Length:           ReadUint64(ir.data[offLength:]),
		Created:          decodeTimestamp(ReadUint64(ir.data[offTimestamp:])),
	}
	if ir.header.Length != uint64(len(ir.data)) {
		return nil, fmt.Errorf("%w: header length %d, data length %d", ErrCorruptData, ir.header.Length, len(ir.data))
	}
	ir.offset = HeaderSize
	return &ir.header, nil
}

// Header returns the parsed header (ReadHeader must be called first).
func (ir *ImageReader) Header() *ImageHeader {
	return &ir.header
}

func (ir *ImageReader) readBytes(n int) ([]byte, error) {
	if n < 0 || ir.offset+n > len(ir.data) {
		return nil, ErrTruncated
	}
	b := ir.data[ir.offset : ir.offset+n]
	ir.offset += n
	return b, nil
}

func (ir *ImageReader) readUvarint() (uint64, error) {
	v, n, err := DecodeUvarint(ir.data[ir.offset:])
	if err != nil {
		return 0, err
	}
	ir.offset += n
	return v, nil
}

func (ir *ImageReader) readCount(what string) (int, error) {
	v, err := ir.readUvarint()
	if err != nil {
		return 0, err
	}
	if v > MaxArrayCells {
		return 0, fmt.Errorf("%w: %s %d too large", ErrCorruptData, what, v)
	}
	return int(v), nil
}

// readValue decodes one tagged value.
func (ir *ImageReader) readValue() (Value, error) {
	tag, err := ir.readBytes(2)
	if err != nil {
		return nil, err
	}
	if tag[1] != valueReserved {
		return nil, fmt.Errorf("%w: reserved byte is 0x%02x", ErrCorruptData, tag[1])
	}

	switch Kind(tag[0]) {
	case KindInteger:
		v, err := ir.readUvarint()
		if err != nil {
			return nil, err
		}
		return Integer(int64(v)), nil

	case KindReal:
		b, err := ir.readBytes(8)
		if err != nil {
			return nil, err
		}
		return Real(math.Float64frombits(binary.LittleEndian.Uint64(b))), nil

	case KindString:
		n, err := ir.readUvarint()
		if err != nil {
			return nil, err
		}
		if n > uint64(len(ir.data)) {
			return nil, ErrTruncated
		}
		b, err := ir.readBytes(int(n))
		if err != nil {
			return nil, err
		}
		return String(b), nil

	case KindBoolean:
		b, err := ir.readBytes(2)
		if err != nil {
			return nil, err
		}
		return Boolean(b[0] == encodedTrue[0] && b[1] == encodedTrue[1]), nil

	case KindArray:
		rows, err := ir.readCount("array rows")
		if err != nil {
			return nil, err
		}
		cols, err := ir.readCount("array columns")
		if err != nil {
			return nil, err
		}
		a, err := MakeArray(rows, cols, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptData, err)
		}
		for i := range a.cells {
			if a.cells[i], err = ir.readValue(); err != nil {
				return nil, err
			}
		}
		return a, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownTag, tag[0])
}

// readInstruction decodes one opcode and its operand.
func (ir *ImageReader) readInstruction() (Instruction, error) {
	b, err := ir.readBytes(2)
	if err != nil {
		return Instruction{}, err
	}
	in := Instruction{Op: Opcode(binary.LittleEndian.Uint16(b))}
	if !in.Op.Valid() {
		return Instruction{}, unknownOpcode(in.Op)
	}
	if in.Op.Info().HasOperand {
		if in.Operand, err = ir.readUvarint(); err != nil {
			return Instruction{}, err
		}
	}
	if in.Op == OpALLOCDSTK && in.Operand > MaxArrayCells {
		return Instruction{}, fmt.Errorf("%w: frame of %d slots", ErrCorruptData, in.Operand)
	}
	return in, nil
}

// ReadProgram reads the header, the constants and the instructions.
func (ir *ImageReader) ReadProgram() (*Program, error) {
	hdr, err := ir.ReadHeader()
	if err != nil {
		return nil, err
	}

	// Each constant and instruction takes at least two bytes.
	remaining := uint64(len(ir.data) - ir.offset)
	if 2*(uint64(hdr.ConstantCount)+uint64(hdr.InstructionCount)) > remaining {
		return nil, fmt.Errorf("%w: counts exceed data size", ErrTruncated)
	}

	p := &Program{
		Constants:    make([]Value, 0, hdr.ConstantCount),
		Instructions: make([]Instruction, 0, hdr.InstructionCount),
		Created:      hdr.Created,
	}
	for i := uint32(0); i < hdr.ConstantCount; i++ {
		v, err := ir.readValue()
		if err != nil {
			return nil, fmt.Errorf("constant %d: %w", i, err)
		}
		p.Constants = append(p.Constants, v)
	}
	for i := uint32(0); i < hdr.InstructionCount; i++ {
		in, err := ir.readInstruction()
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		p.Instructions = append(p.Instructions, in)
	}
	if ir.offset != len(ir.data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorruptData, len(ir.data)-ir.offset)
	}
	return p, nil
}

// DecodeProgram decodes a complete bytecode file.
func DecodeProgram(data []byte) (*Program, error) {
	return NewImageReaderFromBytes(data).ReadProgram()
}
