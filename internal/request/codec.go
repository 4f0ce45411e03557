package request

import "github.com/fmm-go/fmmcore/pkg/model"

// encodeInt32 / decodeInt32 pack the small scalar payloads the request
// protocol sends ahead of a Cell/Body response: a cell key, a child
// count, a body count. Four bytes, little-endian, matching the word
// alignment the rest of the wire format uses.
func encodeInt32(v int32) []byte {
	u := uint32(v)
	return []byte{byte(u), byte(u >> 8), byte(u >> 16), byte(u >> 24)}
}

func decodeInt32(b []byte) int32 {
	return int32(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
}

func encodeInt32Pair(a, b int32) []byte {
	out := make([]byte, 0, 8)
	out = append(out, encodeInt32(a)...)
	out = append(out, encodeInt32(b)...)
	return out
}

func decodeInt32Pair(payload []byte) (int32, int32) {
	return decodeInt32(payload[0:4]), decodeInt32(payload[4:8])
}

// encodeCells / decodeCells mirror internal/let's wire codec (same
// CellWord layout); duplicated rather than exported from internal/let
// since the two packages serialize for different transports (LET
// exchange's Alltoallv vs the request service's Send/Recv) and sharing
// would couple them for no benefit.
func encodeCells(cells []model.Cell) []byte {
	if len(cells) == 0 {
		return nil
	}
	order := len(cells[0].M)
	word := model.CellWord(order)
	out := make([]byte, 0, len(cells)*word*4)
	for _, c := range cells {
		for _, w := range c.ToWords() {
			out = append(out, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
		}
	}
	return out
}

func decodeCells(payload []byte, order int) []model.Cell {
	word := model.CellWord(order)
	if word == 0 || len(payload) == 0 {
		return nil
	}
	n := len(payload) / (word * 4)
	out := make([]model.Cell, n)
	for i := 0; i < n; i++ {
		words := make([]uint32, word)
		base := i * word * 4
		for w := 0; w < word; w++ {
			o := base + w*4
			words[w] = uint32(payload[o]) | uint32(payload[o+1])<<8 | uint32(payload[o+2])<<16 | uint32(payload[o+3])<<24
		}
		out[i].FromWords(words, order)
	}
	return out
}

func encodeBodies(bodies []model.Body) []byte {
	out := make([]byte, 0, len(bodies)*model.BodyWord*4)
	for _, b := range bodies {
		for _, w := range b.ToWords() {
			out = append(out, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
		}
	}
	return out
}

func decodeBodies(payload []byte) []model.Body {
	if len(payload) == 0 {
		return nil
	}
	n := len(payload) / (model.BodyWord * 4)
	out := make([]model.Body, n)
	for i := 0; i < n; i++ {
		words := make([]uint32, model.BodyWord)
		base := i * model.BodyWord * 4
		for w := 0; w < model.BodyWord; w++ {
			o := base + w*4
			words[w] = uint32(payload[o]) | uint32(payload[o+1])<<8 | uint32(payload[o+2])<<16 | uint32(payload[o+3])<<24
		}
		out[i].FromWords(words)
	}
	return out
}
