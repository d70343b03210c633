package bti

import (
	"fmt"
	"io"

	"github.com/cqlite-go/cqlite/internal/errs"
)

// maxTrieDepth bounds a single lookup's walk, guarding against a
// corrupt trie with a cycle; real keys never approach this depth.
const maxTrieDepth = 10_000

// Source reads trie nodes by file offset, letting Lookup work against
// either an in-memory byte slice or a file handle.
type Source interface {
	NodeAt(offset uint64) (*Node, error)
}

// Lookup walks the trie rooted at rootOffset byte by byte against key
// (already byte-comparable encoded by the caller), returning the
// payload offset of an exact match, or (0, false, nil) if key is
// absent.
func Lookup(src Source, rootOffset uint64, key []byte) (payloadOffset uint64, found bool, err error) {
	offset := rootOffset
	depth := 0

	for pos := 0; pos <= len(key); pos++ {
		depth++
		if depth > maxTrieDepth {
			return 0, false, fmt.Errorf("bti: lookup exceeded depth %d: %w", maxTrieDepth, errs.ErrTrieTooDeep)
		}

		node, err := src.NodeAt(offset)
		if err != nil {
			return 0, false, fmt.Errorf("bti: load node at %d: %w", offset, err)
		}

		if pos == len(key) {
			if node.HasPayload {
				return node.PayloadOffset, true, nil
			}
			return 0, false, nil
		}

		next, ok := node.ChildFor(key[pos])
		if !ok {
			return 0, false, nil
		}
		offset = next
	}

	return 0, false, nil
}

// sliceSource is a Source backed by an in-memory BTI component already
// read into memory (the common case once a component is small enough
// to fit, mirroring how Reader loads BIG components fully in-memory).
type sliceSource struct {
	data []byte
}

// NewSliceSource wraps data (a Partitions or Rows component) as a
// Source, decoding a node on demand at each requested offset.
func NewSliceSource(data []byte) Source { return &sliceSource{data: data} }

func (s *sliceSource) NodeAt(offset uint64) (*Node, error) {
	if offset >= uint64(len(s.data)) {
		return nil, fmt.Errorf("bti: offset %d beyond component length %d", offset, len(s.data))
	}
	return DecodeNode(byteReaderAt(s.data, offset), offset)
}

// byteReaderAt returns an io.Reader starting at offset within data,
// without copying.
func byteReaderAt(data []byte, offset uint64) io.Reader {
	return &sliceReader{data: data, pos: int(offset)}
}

type sliceReader struct {
	data []byte
	pos  int
}

func (r *sliceReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}
