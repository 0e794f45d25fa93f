package vm

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ---------------------------------------------------------------------------
// Value encoding
// ---------------------------------------------------------------------------

// Every encoded value starts with its Kind byte followed by one reserved
// zero byte.
const valueReserved byte = 0x00

// Boolean payloads.
var (
	encodedTrue  = [2]byte{0x00, 0xFF}
	encodedFalse = [2]byte{0xFF, 0x00}
)

// AppendValue appends the binary encoding of v to buf.
func AppendValue(buf []byte, v Value) ([]byte, error) {
	if v == nil {
		return buf, fmt.Errorf("%w: nil value", ErrCorruptData)
	}
	buf = append(buf, byte(v.Kind()), valueReserved)

	switch v := v.(type) {
	case Integer:
		buf = AppendUvarint(buf, uint64(v))
	case Real:
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(float64(v)))
	case String:
		buf = AppendUvarint(buf, uint64(len(v)))
		buf = append(buf, v...)
	case Boolean:
		if v {
			buf = append(buf, encodedTrue[:]...)
		} else {
			buf = append(buf, encodedFalse[:]...)
		}
	case *Array:
		buf = AppendUvarint(buf, uint64(v.rows))
		buf = AppendUvarint(buf, uint64(v.cols))
		var err error
		for _, cell := range v.cells {
			if buf, err = AppendValue(buf, cell); err != nil {
				return buf, err
			}
		}
	default:
		return buf, fmt.Errorf("%w: %T", ErrUnknownTag, v)
	}
	return buf, nil
}

// AppendInstruction appends the opcode as a little-endian uint16 followed by
// the operand varint when the opcode carries one.
func AppendInstruction(buf []byte, in Instruction) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, uint16(in.Op))
	if in.Op.Info().HasOperand {
		buf = AppendUvarint(buf, in.Operand)
	}
	return buf
}

// ---------------------------------------------------------------------------
// Fixed-width helpers
// ---------------------------------------------------------------------------

// WriteUint32 writes a little-endian uint32 to buf.
func WriteUint32(buf []byte, v uint32) {
	binary.LittleEndian.PutUint32(buf, v)
}

// ReadUint32 reads a little-endian uint32 from buf.
func ReadUint32(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf)
}

// WriteUint64 writes a little-endian uint64 to buf.
func WriteUint64(buf []byte, v uint64) {
	binary.LittleEndian.PutUint64(buf, v)
}

// ReadUint64 reads a little-endian uint64 from buf.
func ReadUint64(buf []byte) uint64 {
	return binary.LittleEndian.Uint64(buf)
}
