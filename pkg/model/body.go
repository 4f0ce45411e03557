// Package model defines the plain-data records shared by every stage of
// an evaluation: bodies, cells, bounds, and their word-aligned wire form.
package model

import "math"

// BodyWord is the number of 4-byte words a serialized Body occupies.
// X (3 float64 = 6 words) + Src (1 complex128 = 4 words) + Trg (4 complex128
// = 16 words) + IBody (1 int64 = 2 words) + IRank (1 int32 = 1 word).
const BodyWord = 6 + 4 + 16 + 2 + 1

// Body is a point with a source strength and an accumulated target value.
// Src is a scalar or complex source strength depending on the active kernel;
// real kernels (coulomb, laplace, vanderwaals) leave its imaginary part zero.
// Trg holds potential plus the 3 force components.
type Body struct {
	X     [3]float64
	Src   complex128
	Trg   [4]complex128
	IBody int64
	IRank int32
}

// ToWords serializes the body into BodyWord 4-byte words, little-endian.
func (b *Body) ToWords() []uint32 {
	w := make([]uint32, 0, BodyWord)
	for _, x := range b.X {
		w = appendFloat64(w, x)
	}
	w = appendComplex128(w, b.Src)
	for _, t := range b.Trg {
		w = appendComplex128(w, t)
	}
	w = appendInt64(w, b.IBody)
	w = append(w, uint32(b.IRank))
	return w
}

// FromWords deserializes a Body from exactly BodyWord 4-byte words.
func (b *Body) FromWords(w []uint32) {
	if len(w) != BodyWord {
		panic("model: Body.FromWords: wrong word count")
	}
	i := 0
	for k := range b.X {
		b.X[k], i = readFloat64(w, i)
	}
	b.Src, i = readComplex128(w, i)
	for k := range b.Trg {
		b.Trg[k], i = readComplex128(w, i)
	}
	b.IBody, i = readInt64(w, i)
	b.IRank = int32(w[i])
}

// Reset clears the target accumulator, the state at the start of every evaluation.
func (b *Body) Reset() {
	b.Trg = [4]complex128{}
}

func appendFloat64(w []uint32, v float64) []uint32 {
	bits := math.Float64bits(v)
	return append(w, uint32(bits), uint32(bits>>32))
}

func appendComplex128(w []uint32, v complex128) []uint32 {
	w = appendFloat64(w, real(v))
	w = appendFloat64(w, imag(v))
	return w
}

func appendInt64(w []uint32, v int64) []uint32 {
	return append(w, uint32(v), uint32(v>>32))
}

func readFloat64(w []uint32, i int) (float64, int) {
	bits := uint64(w[i]) | uint64(w[i+1])<<32
	return math.Float64frombits(bits), i + 2
}

func readComplex128(w []uint32, i int) (complex128, int) {
	re, i := readFloat64(w, i)
	im, i := readFloat64(w, i)
	return complex(re, im), i
}

func readInt64(w []uint32, i int) (int64, int) {
	v := uint64(w[i]) | uint64(w[i+1])<<32
	return int64(v), i + 2
}
