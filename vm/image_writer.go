package vm

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Bytecode Format Constants
// ---------------------------------------------------------------------------

// formatMarkerID is the GUID that opens every bytecode file.
var formatMarkerID = uuid.MustParse("F39FE6DA-98F6-4854-B0CB-659EF6B838CE")

// FormatMarker is formatMarkerID in mixed-endian GUID byte order: the first
// three fields little-endian, the last eight bytes as written.
var FormatMarker = guidBytes(formatMarkerID)

// HeaderSize is the size of the bytecode header in bytes:
// marker(16) + constantCount(4) + instructionCount(4) + length(8) +
// reserved(16) + timestamp(8) = 56.
const HeaderSize = 56

// Header field offsets.
const (
	offConstantCount    = 16
	offInstructionCount = 20
	offLength           = 24
	offReserved         = 32
	offTimestamp        = 48
)

func guidBytes(id uuid.UUID) [16]byte {
	var b [16]byte
	b[0], b[1], b[2], b[3] = id[3], id[2], id[1], id[0]
	b[4], b[5] = id[5], id[4]
	b[6], b[7] = id[7], id[6]
	copy(b[8:], id[8:])
	return b
}

// Timestamps are stored as a signed 64-bit tick count of 100ns units since
// 0001-01-01 UTC, with bit 62 set to mark the time as UTC.
const (
	ticksPerSecond   = 10_000_000
	unixEpochTicks   = 621_355_968_000_000_000
	timestampUTCFlag = uint64(1) << 62
	timestampKind    = uint64(3) << 62
)

func encodeTimestamp(t time.Time) uint64 {
	t = t.UTC()
	ticks := t.Unix()*ticksPerSecond + int64(t.Nanosecond()/100) + unixEpochTicks
	return uint64(ticks) | timestampUTCFlag
}

func decodeTimestamp(v uint64) time.Time {
	ticks := int64(v&^timestampKind) - unixEpochTicks
	sec, rem := ticks/ticksPerSecond, ticks%ticksPerSecond
	if rem < 0 {
		sec--
		rem += ticksPerSecond
	}
	return time.Unix(sec, rem*100).UTC()
}

// ---------------------------------------------------------------------------
// ImageWriter: serializes a linked program to bytecode
// ---------------------------------------------------------------------------

// ImageWriter accumulates a bytecode file in memory.
type ImageWriter struct {
	buf *bytes.Buffer
	now func() time.Time
}

// NewImageWriter creates a writer stamping files with the current time.
func NewImageWriter() *ImageWriter {
	return &ImageWriter{
		buf: bytes.NewBuffer(nil),
		now: time.Now,
	}
}

// SetClock replaces the time source used for the header timestamp.
func (w *ImageWriter) SetClock(now func() time.Time) {
	w.now = now
}

// writeHeader writes the header with a zero length; patchHeader fills it in.
func (w *ImageWriter) writeHeader(p *Program) {
	var hdr [HeaderSize]byte
	copy(hdr[:], FormatMarker[:])
	WriteUint32(hdr[offConstantCount:], uint32(len(p.Constants)))
	WriteUint32(hdr[offInstructionCount:], uint32(len(p.Instructions)))
	WriteUint64(hdr[offLength:], 0)
	// hdr[offReserved:offTimestamp] stays zero
	WriteUint64(hdr[offTimestamp:], encodeTimestamp(w.now()))
	w.buf.Write(hdr[:])
}

// patchHeader records the final payload length.
func (w *ImageWriter) patchHeader() {
	data := w.buf.Bytes()
	WriteUint64(data[offLength:], uint64(len(data)))
}

// WriteProgram encodes the header, every constant and every instruction.
func (w *ImageWriter) WriteProgram(p *Program) error {
	w.buf.Reset()
	w.writeHeader(p)

	var scratch []byte
	for i, v := range p.Constants {
		var err error
		scratch, err = AppendValue(scratch[:0], v)
		if err != nil {
			return fmt.Errorf("constant %d: %w", i, err)
		}
		w.buf.Write(scratch)
	}

	for i, in := range p.Instructions {
		if !in.Op.Valid() {
			return fmt.Errorf("instruction %d: %w", i, unknownOpcode(in.Op))
		}
		scratch = AppendInstruction(scratch[:0], in)
		w.buf.Write(scratch)
	}

	w.patchHeader()
	log.Debugf("encoded %d constants and %d instructions into %d bytes",
		len(p.Constants), len(p.Instructions), w.buf.Len())
	return nil
}

// WriteTo writes the encoded bytes to out.
func (w *ImageWriter) WriteTo(out io.Writer) (int64, error) {
	n, err := out.Write(w.buf.Bytes())
	return int64(n), err
}

// Bytes returns the encoded bytes.
func (w *ImageWriter) Bytes() []byte {
	return w.buf.Bytes()
}

// EncodeProgram returns the bytecode form of p.
func EncodeProgram(p *Program) ([]byte, error) {
	w := NewImageWriter()
	if err := w.WriteProgram(p); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}
