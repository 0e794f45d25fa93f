package vm

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

// smallProgram is `return false` against a one-entry pool.
func smallProgram() *Program {
	return &Program{
		Constants: []Value{Boolean(false)},
		Instructions: []Instruction{
			{Op: OpLC, Operand: 0},
			{Op: OpRET},
		},
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// ---------------------------------------------------------------------------
// Header format tests
// ---------------------------------------------------------------------------

func TestFormatMarkerBytes(t *testing.T) {
	want := []byte{
		0xDA, 0xE6, 0x9F, 0xF3, 0xF6, 0x98, 0x54, 0x48,
		0xB0, 0xCB, 0x65, 0x9E, 0xF6, 0xB8, 0x38, 0xCE,
	}
	if !bytes.Equal(FormatMarker[:], want) {
		t.Errorf("FormatMarker = % X, want % X", FormatMarker, want)
	}
}

func TestImageWriterLayout(t *testing.T) {
	w := NewImageWriter()
	w.SetClock(fixedClock(time.Unix(0, 0)))
	if err := w.WriteProgram(smallProgram()); err != nil {
		t.Fatalf("WriteProgram: %v", err)
	}
	data := w.Bytes()

	body := []byte{
		4, 0, 0xFF, 0x00, // false
		16, 0, 0, // LC 0
		25, 0, // RET
	}
	if len(data) != HeaderSize+len(body) {
		t.Fatalf("len = %d, want %d", len(data), HeaderSize+len(body))
	}
	if !bytes.Equal(data[:16], FormatMarker[:]) {
		t.Error("marker mismatch")
	}
	if got := ReadUint32(data[16:]); got != 1 {
		t.Errorf("constant count = %d, want 1", got)
	}
	if got := ReadUint32(data[20:]); got != 2 {
		t.Errorf("instruction count = %d, want 2", got)
	}
	if got := ReadUint64(data[24:]); got != uint64(len(data)) {
		t.Errorf("length = %d, want %d", got, len(data))
	}
	if !bytes.Equal(data[32:48], make([]byte, 16)) {
		t.Errorf("reserved = % x, want zeros", data[32:48])
	}
	if got, want := ReadUint64(data[48:]), uint64(621355968000000000)|1<<62; got != want {
		t.Errorf("timestamp = %#x, want %#x", got, want)
	}
	if !bytes.Equal(data[HeaderSize:], body) {
		t.Errorf("body = % x, want % x", data[HeaderSize:], body)
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	for _, ts := range []time.Time{
		time.Date(2024, 2, 29, 13, 45, 12, 123456700, time.UTC),
		time.Date(1969, 7, 20, 20, 17, 0, 0, time.UTC),
		time.Date(2001, 1, 1, 0, 0, 0, 0, time.FixedZone("CST", 8*3600)),
	} {
		got := decodeTimestamp(encodeTimestamp(ts))
		if !got.Equal(ts) {
			t.Errorf("round trip of %v = %v", ts, got)
		}
	}
}

func TestImageWriterRejectsUnknownOpcode(t *testing.T) {
	p := &Program{Instructions: []Instruction{{Op: Opcode(77)}}}
	if _, err := EncodeProgram(p); !errors.Is(err, ErrUnknownOpcode) {
		t.Errorf("err = %v, want ErrUnknownOpcode", err)
	}
}

func TestImageWriterReuse(t *testing.T) {
	w := NewImageWriter()
	if err := w.WriteProgram(smallProgram()); err != nil {
		t.Fatal(err)
	}
	first := append([]byte(nil), w.Bytes()...)
	if err := w.WriteProgram(smallProgram()); err != nil {
		t.Fatal(err)
	}
	if len(w.Bytes()) != len(first) {
		t.Errorf("second write produced %d bytes, want %d", len(w.Bytes()), len(first))
	}
	var out bytes.Buffer
	if n, err := w.WriteTo(&out); err != nil || n != int64(len(first)) {
		t.Errorf("WriteTo = %d, %v", n, err)
	}
}

func TestSerializeFormats(t *testing.T) {
	clock := fixedClock(time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC))
	p := smallProgram()

	asm, err := Serialize(p, SerializeOptions{Format: FormatListing})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(asm, []byte("VALUE BEGIN\n")) {
		t.Errorf("listing starts with %q", asm[:12])
	}

	bin, err := Serialize(p, SerializeOptions{Format: FormatBytecode, Clock: clock})
	if err != nil {
		t.Fatal(err)
	}
	stub := []byte("MZ-loader")
	exe, err := Serialize(p, SerializeOptions{Format: FormatExecutable, LoaderStub: stub, Clock: clock})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(exe, PackExecutable(stub, bin)) {
		t.Error("executable is not stub + bytecode + trailer")
	}

	if _, err := Serialize(p, SerializeOptions{Format: FormatExecutable}); err == nil {
		t.Error("executable without stub should fail")
	}
}

func TestParseFormat(t *testing.T) {
	for name, want := range map[string]Format{"asm": FormatListing, "BIN": FormatBytecode, "Exe": FormatExecutable} {
		got, err := ParseFormat(name)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParseFormat("elf"); err == nil {
		t.Error("ParseFormat(elf) should fail")
	}
	if FormatExecutable.Extension() != ".exe" {
		t.Errorf("Extension = %q", FormatExecutable.Extension())
	}
}
