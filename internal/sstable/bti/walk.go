package bti

import (
	"fmt"
	"sort"
)

// Walk visits every key carrying a payload in byte-lexicographic order,
// calling fn with the reconstructed key and its payload offset. Used by
// the BTI range-scan path, which has no equivalent of the BIG format's
// Summary-page binary search and instead walks the trie directly,
// filtering to a [start, end) bound at the caller.
func Walk(src Source, rootOffset uint64, fn func(key []byte, payloadOffset uint64) error) error {
	return walkNode(src, rootOffset, nil, fn)
}

func walkNode(src Source, offset uint64, prefix []byte, fn func([]byte, uint64) error) error {
	node, err := src.NodeAt(offset)
	if err != nil {
		return fmt.Errorf("bti: walk node at %d: %w", offset, err)
	}

	if node.HasPayload {
		key := append([]byte(nil), prefix...)
		if err := fn(key, node.PayloadOffset); err != nil {
			return err
		}
	}

	switch node.Kind {
	case KindSingleChild:
		return walkNode(src, node.ChildOffset, appendByte(prefix, node.Transition), fn)

	case KindSparse:
		order := make([]int, len(node.Transitions))
		for i := range order {
			order[i] = i
		}
		sort.Slice(order, func(a, b int) bool { return node.Transitions[order[a]] < node.Transitions[order[b]] })
		for _, i := range order {
			if err := walkNode(src, node.Children[i], appendByte(prefix, node.Transitions[i]), fn); err != nil {
				return err
			}
		}

	case KindDense:
		for i, c := range node.Children {
			if c == absentChild {
				continue
			}
			b := node.DenseLowByte + byte(i)
			if err := walkNode(src, c, appendByte(prefix, b), fn); err != nil {
				return err
			}
		}
	}

	return nil
}

// appendByte copies prefix before appending b, so sibling branches
// walked after this one never observe a mutation through a shared
// backing array.
func appendByte(prefix []byte, b byte) []byte {
	out := make([]byte, len(prefix)+1)
	copy(out, prefix)
	out[len(prefix)] = b
	return out
}
