package vm

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// executableTrailerSize is the 8-byte little-endian payload length that
// ends every executable.
const executableTrailerSize = 8

// PackExecutable returns [stub][payload][len(payload) as uint64 LE]. The
// stub is copied verbatim.
func PackExecutable(stub, payload []byte) []byte {
	out := make([]byte, 0, len(stub)+len(payload)+executableTrailerSize)
	out = append(out, stub...)
	out = append(out, payload...)
	out = binary.LittleEndian.AppendUint64(out, uint64(len(payload)))
	return out
}

// ExtractPayload returns the bytecode embedded in an executable produced by
// PackExecutable, along with the size of the loader stub in front of it.
func ExtractPayload(exe []byte) (payload []byte, stubSize int, err error) {
	if len(exe) < executableTrailerSize+HeaderSize {
		return nil, 0, fmt.Errorf("%w: executable of %d bytes has no embedded program", ErrTruncated, len(exe))
	}
	trailer := len(exe) - executableTrailerSize
	size := binary.LittleEndian.Uint64(exe[trailer:])
	if size < HeaderSize || size > uint64(trailer) {
		return nil, 0, fmt.Errorf("%w: invalid embedded program size %d", ErrCorruptData, size)
	}
	start := trailer - int(size)
	payload = exe[start:trailer]
	if !bytes.HasPrefix(payload, FormatMarker[:]) {
		return nil, 0, ErrBadMarker
	}
	return payload, start, nil
}

// IsBytecode reports whether data starts with the bytecode format marker.
func IsBytecode(data []byte) bool {
	return bytes.HasPrefix(data, FormatMarker[:])
}

// LoadProgram decodes either a bytecode file or an executable.
func LoadProgram(data []byte) (*Program, error) {
	if IsBytecode(data) {
		return DecodeProgram(data)
	}
	payload, _, err := ExtractPayload(data)
	if err != nil {
		return nil, err
	}
	return DecodeProgram(payload)
}
