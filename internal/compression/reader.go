package compression

import (
	"fmt"
	"io"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cqlite-go/cqlite/internal/codec"
)

// Reader serves logical-offset reads against a physically chunked Data
// file, decompressing on demand and caching a small LRU window of
// recently decompressed chunks to amortize cost across clustered reads
// (spec §4.3).
type Reader struct {
	data  io.ReaderAt
	info  *Info
	cache *lru.Cache[int, []byte]
}

// NewReader builds a chunk reader over data using the given
// CompressionInfo, caching up to cacheSize decompressed chunks.
func NewReader(data io.ReaderAt, info *Info, cacheSize int) (*Reader, error) {
	if cacheSize <= 0 {
		cacheSize = 1
	}
	cache, err := lru.New[int, []byte](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("compression: create chunk cache: %w", err)
	}
	return &Reader{data: data, info: info, cache: cache}, nil
}

// ReadAt returns the uncompressed bytes covering the logical range
// [offset, offset+length).
func (r *Reader) ReadAt(offset uint64, length int) ([]byte, error) {
	if offset+uint64(length) > r.info.TotalLength {
		return nil, fmt.Errorf("compression: range [%d,%d) exceeds total length %d", offset, offset+uint64(length), r.info.TotalLength)
	}

	out := make([]byte, 0, length)
	remaining := length
	pos := offset

	for remaining > 0 {
		idx := r.info.ChunkIndexForOffset(pos)
		chunk, err := r.chunk(idx)
		if err != nil {
			return nil, err
		}

		chunkStart := uint64(idx) * uint64(r.info.ChunkLength)
		withinChunk := int(pos - chunkStart)
		avail := len(chunk) - withinChunk
		if avail <= 0 {
			return nil, fmt.Errorf("compression: chunk %d shorter than expected offset %d", idx, pos)
		}

		take := avail
		if take > remaining {
			take = remaining
		}
		out = append(out, chunk[withinChunk:withinChunk+take]...)
		pos += uint64(take)
		remaining -= take
	}

	return out, nil
}

// chunk returns the decompressed bytes of chunk idx, consulting and
// populating the LRU cache.
func (r *Reader) chunk(idx int) ([]byte, error) {
	if idx < 0 || idx >= len(r.info.Chunks) {
		return nil, fmt.Errorf("compression: chunk index %d out of range [0,%d)", idx, len(r.info.Chunks))
	}
	if cached, ok := r.cache.Get(idx); ok {
		return cached, nil
	}

	desc := r.info.Chunks[idx]
	compressed := make([]byte, desc.CompressedLength)
	if _, err := r.data.ReadAt(compressed, int64(desc.CompressedOffset)); err != nil {
		return nil, fmt.Errorf("compression: read chunk %d compressed bytes: %w", idx, err)
	}

	decompressed, err := Decompress(r.info.Algorithm, compressed, int(desc.UncompressedLength))
	if err != nil {
		return nil, fmt.Errorf("compression: decompress chunk %d: %w", idx, err)
	}

	r.cache.Add(idx, decompressed)
	return decompressed, nil
}

// VerifyChunkCRC32C checks a decompressed chunk's bytes against want, a
// CRC32C value the caller supplies. Nothing in this package records
// per-chunk checksums, and the normal read path does not call this.
func (r *Reader) VerifyChunkCRC32C(idx int, want uint32) error {
	chunk, err := r.chunk(idx)
	if err != nil {
		return err
	}
	return codec.VerifyCRC32C(chunk, want)
}
