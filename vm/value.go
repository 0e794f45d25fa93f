package vm

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Value: dynamically tagged runtime values
// ---------------------------------------------------------------------------

// Kind identifies the variant of a Value. The numeric values are the type
// tags used in the binary encoding.
type Kind byte

const (
	KindInteger Kind = 1
	KindReal    Kind = 2
	KindString  Kind = 3
	KindBoolean Kind = 4
	KindArray   Kind = 5
)

var kindNames = map[Kind]string{
	KindInteger: "Integer",
	KindReal:    "Real",
	KindString:  "String",
	KindBoolean: "Boolean",
	KindArray:   "Array",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", byte(k))
}

// Value is the closed set of runtime values: Integer, Real, String, Boolean
// and *Array. Every variant can be coerced to every scalar form.
type Value interface {
	Kind() Kind
	AsInteger() int64
	AsReal() float64
	AsString() string
	AsBoolean() bool
	value()
}

// Integer is a 64-bit signed integer value.
type Integer int64

// Real is a 64-bit floating point value.
type Real float64

// String is a text value.
type String string

// Boolean is a truth value.
type Boolean bool

// Array is a mutable two-dimensional grid of values stored row-major.
// Arrays compare by reference.
type Array struct {
	rows  int
	cols  int
	cells []Value
}

func (Integer) value() {}
func (Real) value()    {}
func (String) value()  {}
func (Boolean) value() {}
func (*Array) value()  {}

func (Integer) Kind() Kind { return KindInteger }
func (Real) Kind() Kind    { return KindReal }
func (String) Kind() Kind  { return KindString }
func (Boolean) Kind() Kind { return KindBoolean }
func (*Array) Kind() Kind  { return KindArray }

// Integer coercions

func (v Integer) AsInteger() int64 { return int64(v) }
func (v Integer) AsReal() float64  { return float64(v) }
func (v Integer) AsString() string { return strconv.FormatInt(int64(v), 10) }
func (v Integer) AsBoolean() bool  { return v != 0 }

// Real coercions

func (v Real) AsInteger() int64 { return int64(v) }
func (v Real) AsReal() float64  { return float64(v) }
func (v Real) AsString() string { return formatReal(float64(v)) }
func (v Real) AsBoolean() bool  { return v != 0 }

// String coercions. Text that does not parse as a number converts to zero.

func (v String) AsInteger() int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (v String) AsReal() float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
	if err != nil {
		return 0
	}
	return f
}

func (v String) AsString() string { return string(v) }
func (v String) AsBoolean() bool  { return v != "" }

// Boolean coercions

func (v Boolean) AsInteger() int64 {
	if v {
		return 1
	}
	return 0
}

func (v Boolean) AsReal() float64 { return float64(v.AsInteger()) }

func (v Boolean) AsString() string {
	if v {
		return "True"
	}
	return "False"
}

func (v Boolean) AsBoolean() bool { return bool(v) }

// MaxArrayCells bounds the size of any array, and of a data frame.
const MaxArrayCells = 1 << 24

// ErrArraySize is returned for negative or oversized array dimensions.
var ErrArraySize = errors.New("array size out of range")

// MakeArray creates a rows x cols array with every cell set to fill. The
// dimensions must be non-negative and hold at most MaxArrayCells cells.
func MakeArray(rows, cols int, fill Value) (*Array, error) {
	if rows < 0 || cols < 0 || rows > MaxArrayCells || cols > MaxArrayCells ||
		(cols != 0 && rows > MaxArrayCells/cols) {
		return nil, fmt.Errorf("%w: [%d,%d]", ErrArraySize, rows, cols)
	}
	a := &Array{rows: rows, cols: cols, cells: make([]Value, rows*cols)}
	for i := range a.cells {
		a.cells[i] = fill
	}
	return a, nil
}

// NewArray is MakeArray for sizes known to be valid. Negative dimensions
// are treated as zero; it panics past MaxArrayCells.
func NewArray(rows, cols int, fill Value) *Array {
	a, err := MakeArray(max(rows, 0), max(cols, 0), fill)
	if err != nil {
		panic(err)
	}
	return a
}

// Rows returns the row count.
func (a *Array) Rows() int { return a.rows }

// Cols returns the column count.
func (a *Array) Cols() int { return a.cols }

// Get returns the cell at (row, col).
func (a *Array) Get(row, col int) (Value, error) {
	i, err := a.index(row, col)
	if err != nil {
		return nil, err
	}
	return a.cells[i], nil
}

// Set replaces the cell at (row, col).
func (a *Array) Set(row, col int, v Value) error {
	i, err := a.index(row, col)
	if err != nil {
		return err
	}
	a.cells[i] = v
	return nil
}

func (a *Array) index(row, col int) (int, error) {
	if row < 0 || row >= a.rows || col < 0 || col >= a.cols {
		return 0, fmt.Errorf("%w: [%d,%d] in [%d,%d]", ErrIndexOutOfRange, row, col, a.rows, a.cols)
	}
	return row*a.cols + col, nil
}

func (a *Array) AsInteger() int64 { return 0 }
func (a *Array) AsReal() float64  { return 0 }
func (a *Array) AsString() string { return fmt.Sprintf("[%d,%d]", a.rows, a.cols) }
func (a *Array) AsBoolean() bool  { return true }

// formatReal renders a real without an exponent, using the fewest digits
// that round-trip.
func formatReal(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Identical reports whether a and b are the same constant: the same variant
// holding an equal payload. Arrays are identical only to themselves.
func Identical(a, b Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind() != b.Kind() {
		return false
	}
	return a == b
}

// Render formats a value for listings and output.
func Render(v Value) string {
	if v == nil {
		return "<nil>"
	}
	return v.AsString()
}
