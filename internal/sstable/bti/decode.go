package bti

import (
	"fmt"
	"io"

	"github.com/cqlite-go/cqlite/internal/codec"
	"github.com/cqlite-go/cqlite/internal/errs"
)

// nodeTag is the one-byte on-disk discriminator: the low 3 bits name
// the NodeKind (only 0-3 are assigned; 4-7 are reserved and rejected),
// the high bit flags whether a payload offset follows.
const (
	tagKindMask   = 0x07
	tagHasPayload = 0x80
)

// DecodeNode reads one trie node at the current position of r, which
// must be seeked to offset already (offset is recorded on the returned
// Node for arena bookkeeping, not read from the stream).
func DecodeNode(r io.Reader, offset uint64) (*Node, error) {
	tagByte, err := codec.ReadU8(r)
	if err != nil {
		return nil, fmt.Errorf("bti: read node tag at %d: %w", offset, err)
	}

	kind := NodeKind(tagByte & tagKindMask)
	if kind > KindDense {
		return nil, fmt.Errorf("bti: node at %d has unknown kind %d: %w", offset, kind, errs.ErrInvalidNodeType)
	}

	n := &Node{Offset: offset, Kind: kind}

	if tagByte&tagHasPayload != 0 {
		payloadOffset, err := codec.ReadU64(r)
		if err != nil {
			return nil, fmt.Errorf("bti: read payload offset at %d: %w", offset, err)
		}
		n.HasPayload = true
		n.PayloadOffset = payloadOffset
	}

	switch kind {
	case KindPayloadOnly:
		// no children to read

	case KindSingleChild:
		transition, err := codec.ReadU8(r)
		if err != nil {
			return nil, fmt.Errorf("bti: read single-child transition at %d: %w", offset, err)
		}
		childOffset, err := codec.ReadU64(r)
		if err != nil {
			return nil, fmt.Errorf("bti: read single-child offset at %d: %w", offset, err)
		}
		n.Transition = transition
		n.ChildOffset = childOffset

	case KindSparse:
		count, err := codec.ReadU16(r)
		if err != nil {
			return nil, fmt.Errorf("bti: read sparse count at %d: %w", offset, err)
		}
		n.Transitions = make([]byte, count)
		n.Children = make([]uint64, count)
		for i := uint16(0); i < count; i++ {
			b, err := codec.ReadU8(r)
			if err != nil {
				return nil, fmt.Errorf("bti: read sparse transition %d at %d: %w", i, offset, err)
			}
			c, err := codec.ReadU64(r)
			if err != nil {
				return nil, fmt.Errorf("bti: read sparse child %d at %d: %w", i, offset, err)
			}
			n.Transitions[i] = b
			n.Children[i] = c
		}

	case KindDense:
		low, err := codec.ReadU8(r)
		if err != nil {
			return nil, fmt.Errorf("bti: read dense low byte at %d: %w", offset, err)
		}
		span, err := codec.ReadU16(r)
		if err != nil {
			return nil, fmt.Errorf("bti: read dense span at %d: %w", offset, err)
		}
		n.DenseLowByte = low
		n.Children = make([]uint64, span)
		for i := uint16(0); i < span; i++ {
			c, err := codec.ReadU64(r)
			if err != nil {
				return nil, fmt.Errorf("bti: read dense child %d at %d: %w", i, offset, err)
			}
			n.Children[i] = c
		}
	}

	return n, nil
}

// EncodeNode serializes n in the format DecodeNode reads.
func EncodeNode(n *Node) []byte {
	tag := byte(n.Kind)
	if n.HasPayload {
		tag |= tagHasPayload
	}
	dst := []byte{tag}
	if n.HasPayload {
		dst = codec.PutU64(dst, n.PayloadOffset)
	}

	switch n.Kind {
	case KindPayloadOnly:
	case KindSingleChild:
		dst = append(dst, n.Transition)
		dst = codec.PutU64(dst, n.ChildOffset)
	case KindSparse:
		dst = codec.PutU16(dst, uint16(len(n.Transitions)))
		for i, b := range n.Transitions {
			dst = append(dst, b)
			dst = codec.PutU64(dst, n.Children[i])
		}
	case KindDense:
		dst = append(dst, n.DenseLowByte)
		dst = codec.PutU16(dst, uint16(len(n.Children)))
		for _, c := range n.Children {
			dst = codec.PutU64(dst, c)
		}
	}
	return dst
}
