package vm

// ConstantPool is the deduplicated, append-only table of literal values
// referenced by LC instructions. Indices never change once assigned.
type ConstantPool struct {
	values []Value
	index  map[Value]int
}

// Pre-seeded constant indices.
const (
	ConstFalse = 0
	ConstTrue  = 1
	// ConstZero is the index of Integer(0); Integer(n) for n in 0..9 is at
	// ConstZero+n.
	ConstZero = 2
)

// NewConstantPool returns a pool seeded with false, true and the integers
// 0 through 9.
func NewConstantPool() *ConstantPool {
	p := &ConstantPool{index: make(map[Value]int)}
	p.Add(Boolean(false))
	p.Add(Boolean(true))
	for i := 0; i <= 9; i++ {
		p.Add(Integer(i))
	}
	return p
}

// Add returns the index of v, appending it if no identical value is present.
// Arrays are keyed by reference so distinct arrays never share an entry.
func (p *ConstantPool) Add(v Value) int {
	if idx, ok := p.index[v]; ok {
		return idx
	}
	idx := len(p.values)
	p.values = append(p.values, v)
	p.index[v] = idx
	return idx
}

// Len returns the number of entries.
func (p *ConstantPool) Len() int { return len(p.values) }

// At returns the value at idx.
func (p *ConstantPool) At(idx int) Value { return p.values[idx] }

// Values returns the entries in index order. The slice must not be modified.
func (p *ConstantPool) Values() []Value { return p.values }
