package compression

import (
	"fmt"
	"io"
)

// Writer buffers logical bytes and flushes fixed-size chunks through
// Compress, accumulating the CompressionInfo descriptors a new
// SSTable's writer needs to emit the sidecar file (spec §4.7).
type Writer struct {
	out         io.Writer
	alg         Algorithm
	chunkLength uint32
	pending     []byte
	offset      uint64
	info        Info
}

// NewWriter returns a Writer that appends compressed chunks to out.
func NewWriter(out io.Writer, alg Algorithm, chunkLength uint32) *Writer {
	return &Writer{
		out:         out,
		alg:         alg,
		chunkLength: chunkLength,
		pending:     make([]byte, 0, chunkLength),
		info: Info{
			Algorithm:   alg,
			ChunkLength: chunkLength,
		},
	}
}

// Write buffers p, flushing full chunks as they fill.
func (w *Writer) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		space := int(w.chunkLength) - len(w.pending)
		take := space
		if take > len(p) {
			take = len(p)
		}
		w.pending = append(w.pending, p[:take]...)
		p = p[take:]

		if len(w.pending) == int(w.chunkLength) {
			if err := w.flushChunk(); err != nil {
				return n - len(p), err
			}
		}
	}
	return n, nil
}

// Close flushes any partial final chunk and returns the completed
// CompressionInfo for the caller to serialize.
func (w *Writer) Close() (*Info, error) {
	if len(w.pending) > 0 {
		if err := w.flushChunk(); err != nil {
			return nil, err
		}
	}
	return &w.info, nil
}

func (w *Writer) flushChunk() error {
	uncompressed := w.pending
	compressed, err := Compress(w.alg, uncompressed)
	if err != nil {
		return fmt.Errorf("compression: compress chunk: %w", err)
	}

	n, err := w.out.Write(compressed)
	if err != nil {
		return fmt.Errorf("compression: write chunk: %w", err)
	}

	w.info.Chunks = append(w.info.Chunks, ChunkDescriptor{
		CompressedOffset:   w.offset,
		CompressedLength:   uint32(n),
		UncompressedLength: uint32(len(uncompressed)),
	})
	w.offset += uint64(n)
	w.info.TotalLength += uint64(len(uncompressed))

	w.pending = w.pending[:0]
	return nil
}
