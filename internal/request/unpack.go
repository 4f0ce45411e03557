package request

import "github.com/fmm-go/fmmcore/pkg/model"

// packSubtree walks the responder's own tree starting at rootIdx,
// emitting every descendant down to maxDepth levels: a node's whole
// children block is emitted contiguously, then each of those children's
// own block follows (in child order) before the walk returns to the
// caller. Fields are copied verbatim: IParent/IChild still address the
// responder's own cell array, the same namespace the requester already
// treats key/nchild as opaque coordinates into, so nothing needs
// rebasing the way a LET segment does.
//
// grainSize is always 1 at every real call site in the source this is
// grounded on (tree_mpi.h's getCell/getBodies), so in practice maxDepth
// is 1 and this degenerates to "emit the direct children"; the general
// recursive walk is kept because the tag's grainSize field is wired
// end to end and a future caller may ask for a deeper grain.
func packSubtree(source []model.Cell, rootIdx int32, maxDepth int) []model.Cell {
	var out []model.Cell
	var walk func(idx int32, depth int)
	walk = func(idx int32, depth int) {
		c := &source[idx]
		if c.NChild == 0 || depth >= maxDepth {
			return
		}
		for k := int32(0); k < c.NChild; k++ {
			out = append(out, source[c.IChild+k])
		}
		for k := int32(0); k < c.NChild; k++ {
			walk(c.IChild+k, depth+1)
		}
	}
	walk(rootIdx, 0)
	return out
}

// AppendDFS reconstructs the nested child map from a packSubtree payload
// by walking it with a cursor in the exact order the packer emitted,
// using each cell's own NChild to know how many records its own block
// holds. This is the decoder the request service actually uses, since
// it matches what the packer emits; see AppendBFS for the
// order-independent alternative kept for cross-checking in tests.
func AppendDFS(cells []model.Cell, rootKey int32, rootNChild int32) map[int32][]model.Cell {
	m := make(map[int32][]model.Cell)
	idx := 0
	var walk func(parentKey int32, n int32)
	walk = func(parentKey int32, n int32) {
		if n == 0 || idx >= len(cells) {
			return
		}
		end := idx + int(n)
		if end > len(cells) {
			end = len(cells)
		}
		block := cells[idx:end]
		m[parentKey] = append(m[parentKey], block...)
		idx = end
		for _, child := range block {
			walk(child.IChild, child.NChild)
		}
	}
	walk(rootKey, rootNChild)
	return m
}

// AppendBFS rebuilds the sibling groups without trusting emission
// order: it groups records by their IParent field alone, regardless of
// how the payload was laid out on the wire. Its map is keyed by IParent,
// not by the parent's IChild as AppendDFS's is, so the two maps hold the
// same groups under different keys. Not used by the live service path
// (DFS is canonical, per the packer's actual order), but exercised in
// tests against the same fixtures to confirm the groups agree.
func AppendBFS(cells []model.Cell) map[int32][]model.Cell {
	m := make(map[int32][]model.Cell)
	for _, c := range cells {
		m[c.IParent] = append(m[c.IParent], c)
	}
	return m
}
