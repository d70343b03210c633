// Package bti implements the byte-comparable trie format used by the
// BTI SSTable variant's Partitions and Rows components: an
// arena-of-nodes-by-file-offset trie keyed on byte-comparable encodings
// of partition keys and clustering keys (spec §4.6).
package bti

// NodeKind tags the shape of one trie node as stored on disk.
type NodeKind uint8

const (
	// KindPayloadOnly is a leaf: no children, just a payload (a Data-file
	// or Index-file offset).
	KindPayloadOnly NodeKind = iota
	// KindSingleChild has exactly one transition byte and child offset,
	// the common case along a long unbranching key prefix.
	KindSingleChild
	// KindSparse lists its (transition byte, child offset) pairs
	// explicitly; used for low-fanout branching nodes.
	KindSparse
	// KindDense covers the contiguous transition range from its lowest
	// to its highest child byte, with explicit "absent" markers at the
	// byte positions with no child, trading size for O(1) transition
	// lookup at high-fanout nodes.
	KindDense
)

func (k NodeKind) String() string {
	switch k {
	case KindPayloadOnly:
		return "PayloadOnly"
	case KindSingleChild:
		return "SingleChild"
	case KindSparse:
		return "Sparse"
	case KindDense:
		return "Dense"
	default:
		return "Unknown"
	}
}

// absentChild marks "no child at this transition byte" within a Dense
// node's fixed-size child table.
const absentChild uint64 = ^uint64(0)

// Node is one decoded trie node, addressed by its file offset. A
// missing child is not listed (SingleChild, Sparse) or is marked
// absentChild (Dense); 0 is a valid child offset.
type Node struct {
	Offset uint64
	Kind   NodeKind

	// HasPayload and PayloadOffset apply to any node kind: a trie node
	// can simultaneously terminate a key (carry a payload) and continue
	// branching beneath it (a key that is a strict prefix of a longer
	// key also present in the trie).
	HasPayload    bool
	PayloadOffset uint64

	// SingleChild fields (KindSingleChild).
	Transition  byte
	ChildOffset uint64

	// Sparse/Dense fields.
	Transitions  []byte   // Sparse: explicit bytes, len(Transitions) == len(Children)
	Children     []uint64 // Sparse: parallel to Transitions; Dense: indexed by byte value minus DenseLowByte
	DenseLowByte byte     // Dense: the lowest transition byte the table covers
}

// ChildFor returns the child offset for transition byte b, and whether
// one exists.
func (n *Node) ChildFor(b byte) (uint64, bool) {
	switch n.Kind {
	case KindSingleChild:
		if b == n.Transition {
			return n.ChildOffset, true
		}
		return 0, false
	case KindSparse:
		for i, t := range n.Transitions {
			if t == b {
				return n.Children[i], true
			}
		}
		return 0, false
	case KindDense:
		idx := int(b) - int(n.DenseLowByte)
		if idx < 0 || idx >= len(n.Children) {
			return 0, false
		}
		c := n.Children[idx]
		if c == absentChild {
			return 0, false
		}
		return c, true
	default:
		return 0, false
	}
}
