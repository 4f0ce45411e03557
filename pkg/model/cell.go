package model

// CellFixedWord is the word count of a Cell's fixed-size fields, i.e.
// everything except the order-P multipole/local coefficient arrays:
// X(6) + R(2) + Level(1) + ICell(2) + IParent(1) + IChild(1) + NChild(1)
// + IBody(1) + NBody(1).
const CellFixedWord = 6 + 2 + 1 + 2 + 1 + 1 + 1 + 1 + 1

// CellWord returns the total wire word count of a Cell whose M and L
// arrays both have length order. Order is fixed per Driver instance
// (see DESIGN.md "Expansion order P as a compile-time constant") rather
// than a package-level constant, since Go cannot monomorphize on it the
// way the original C++ template parameter did.
func CellWord(order int) int {
	return CellFixedWord + 4*order + 4*order
}

// Cell is an octree node. Indices (IParent, IChild, IBody) are offsets
// into whichever array currently holds the cell — the local cell array
// before LET exchange, or a rank's packed send/receive segment after.
type Cell struct {
	X       [3]float64
	R       float64
	Level   int32
	ICell   int64 // Morton key
	IParent int32
	IChild  int32
	NChild  int32
	IBody   int32
	NBody   int32
	M       []complex128
	L       []complex128
}

// NewCell allocates a Cell with M/L sized to order.
func NewCell(order int) Cell {
	return Cell{M: make([]complex128, order), L: make([]complex128, order)}
}

// IsLeaf reports whether the cell has no children.
func (c *Cell) IsLeaf() bool {
	return c.NChild == 0
}

// Reset zeroes the multipole and local coefficients, the state at the
// start of every evaluation.
func (c *Cell) Reset() {
	for i := range c.M {
		c.M[i] = 0
	}
	for i := range c.L {
		c.L[i] = 0
	}
}

// ToWords serializes the cell into CellWord(len(c.M)) 4-byte words.
// Panics if len(c.M) != len(c.L); both must be sized to the same order.
func (c *Cell) ToWords() []uint32 {
	if len(c.M) != len(c.L) {
		panic("model: Cell.ToWords: M and L length mismatch")
	}
	order := len(c.M)
	w := make([]uint32, 0, CellWord(order))
	for _, x := range c.X {
		w = appendFloat64(w, x)
	}
	w = appendFloat64(w, c.R)
	w = append(w, uint32(c.Level))
	w = appendInt64(w, c.ICell)
	w = append(w, uint32(c.IParent), uint32(c.IChild), uint32(c.NChild), uint32(c.IBody), uint32(c.NBody))
	for _, m := range c.M {
		w = appendComplex128(w, m)
	}
	for _, l := range c.L {
		w = appendComplex128(w, l)
	}
	return w
}

// FromWords deserializes a Cell from exactly CellWord(order) 4-byte words.
func (c *Cell) FromWords(w []uint32, order int) {
	if len(w) != CellWord(order) {
		panic("model: Cell.FromWords: wrong word count")
	}
	i := 0
	for k := range c.X {
		c.X[k], i = readFloat64(w, i)
	}
	c.R, i = readFloat64(w, i)
	c.Level = int32(w[i])
	i++
	c.ICell, i = readInt64(w, i)
	c.IParent = int32(w[i])
	c.IChild = int32(w[i+1])
	c.NChild = int32(w[i+2])
	c.IBody = int32(w[i+3])
	c.NBody = int32(w[i+4])
	i += 5
	c.M = make([]complex128, order)
	c.L = make([]complex128, order)
	for k := 0; k < order; k++ {
		c.M[k], i = readComplex128(w, i)
	}
	for k := 0; k < order; k++ {
		c.L[k], i = readComplex128(w, i)
	}
}
