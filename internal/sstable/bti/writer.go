package bti

import (
	"bytes"
	"sort"
)

// buildNode is an in-memory trie node under construction, before it has
// a file offset.
type buildNode struct {
	hasPayload    bool
	payloadOffset uint64
	children      map[byte]*buildNode
}

func newBuildNode() *buildNode { return &buildNode{children: map[byte]*buildNode{}} }

// Builder constructs a BTI trie from a sorted sequence of
// (byte-comparable key, payload offset) pairs and serializes it with
// children written before their parent, so each parent's child offsets
// are already known at the moment it is encoded. Grounded on the same
// "resolve-then-patch" discipline the teacher's sst/writer.go uses for
// its footer, adapted here to avoid the Seek-and-patch trick entirely
// by ordering the writes bottom-up instead.
type Builder struct {
	root *buildNode
}

// NewBuilder starts an empty trie.
func NewBuilder() *Builder { return &Builder{root: newBuildNode()} }

// Add inserts one key with its payload offset. Keys must be distinct;
// Add panics on a duplicate rather than silently overwriting, since a
// well-formed sorted input never repeats a key.
func (b *Builder) Add(key []byte, payloadOffset uint64) {
	n := b.root
	for _, c := range key {
		child, ok := n.children[c]
		if !ok {
			child = newBuildNode()
			n.children[c] = child
		}
		n = child
	}
	if n.hasPayload {
		panic("bti: Builder.Add called with a duplicate key")
	}
	n.hasPayload = true
	n.payloadOffset = payloadOffset
}

// BuildFromSorted is a convenience constructor over parallel sorted
// keys/offsets slices (the shape a flush or compaction naturally
// produces).
func BuildFromSorted(keys [][]byte, payloadOffsets []uint64) *Builder {
	b := NewBuilder()
	for i, k := range keys {
		b.Add(k, payloadOffsets[i])
	}
	return b
}

// Serialize writes the trie depth-first post-order, choosing each
// node's representation from its child count: PayloadOnly with none,
// SingleChild with one, Dense with denseThreshold or more, and Sparse
// otherwise. It returns the encoded component bytes plus the root
// node's offset within them.
func (b *Builder) Serialize() (data []byte, rootOffset uint64) {
	var buf bytes.Buffer
	root := serializeNode(&buf, b.root)
	return buf.Bytes(), root
}

// denseThreshold is the child-count floor above which a Dense
// representation's O(1) lookup outweighs its larger fixed-span table,
// chosen the way a production BTI writer would: dense only pays off
// once sparse's linear scan would check most of the byte range anyway.
const denseThreshold = 32

func serializeNode(buf *bytes.Buffer, n *buildNode) uint64 {
	childOffsets := make(map[byte]uint64, len(n.children))
	keys := make([]byte, 0, len(n.children))
	for k := range n.children {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, k := range keys {
		childOffsets[k] = serializeNode(buf, n.children[k])
	}

	offset := uint64(buf.Len())

	var node *Node
	switch {
	case len(keys) == 0:
		node = &Node{Kind: KindPayloadOnly}
	case len(keys) == 1:
		node = &Node{Kind: KindSingleChild, Transition: keys[0], ChildOffset: childOffsets[keys[0]]}
	case len(keys) >= denseThreshold && int(keys[len(keys)-1])-int(keys[0]) < 256:
		low := keys[0]
		high := keys[len(keys)-1]
		children := make([]uint64, int(high)-int(low)+1)
		for i := range children {
			children[i] = absentChild
		}
		for _, k := range keys {
			children[int(k)-int(low)] = childOffsets[k]
		}
		node = &Node{Kind: KindDense, DenseLowByte: low, Children: children}
	default:
		node = &Node{Kind: KindSparse, Transitions: keys}
		node.Children = make([]uint64, len(keys))
		for i, k := range keys {
			node.Children[i] = childOffsets[k]
		}
	}

	node.HasPayload = n.hasPayload
	node.PayloadOffset = n.payloadOffset
	node.Offset = offset

	buf.Write(EncodeNode(node))
	return offset
}
