package compression

import (
	"fmt"
	"io"

	"github.com/cqlite-go/cqlite/internal/codec"
)

// ChunkDescriptor locates one compressed chunk within the Data file.
type ChunkDescriptor struct {
	CompressedOffset   uint64
	CompressedLength   uint32
	UncompressedLength uint32
}

// Info is the parsed CompressionInfo sidecar file, per spec §4.3:
// algorithm name, the uncompressed chunk size new writes target,
// the logical length of the uncompressed stream, and one descriptor
// per physical chunk.
type Info struct {
	Algorithm   Algorithm
	ChunkLength uint32
	TotalLength uint64
	Chunks      []ChunkDescriptor
}

// ChunkIndexForOffset returns the chunk index covering logical offset o.
func (ci *Info) ChunkIndexForOffset(o uint64) int {
	return int(o / uint64(ci.ChunkLength))
}

// ParseInfo reads a CompressionInfo file. Bytes after the last chunk
// descriptor (such as a trailing CRC32) are neither read nor validated,
// and Reader does not checksum chunks when it decompresses them;
// VerifyChunkCRC32C is the only per-chunk check, against a value the
// caller supplies.
func ParseInfo(r io.Reader) (*Info, error) {
	nameLen, err := codec.ReadU16(r)
	if err != nil {
		return nil, fmt.Errorf("compression: read algorithm name length: %w", err)
	}
	nameBytes := make([]byte, nameLen)
	if _, err := io.ReadFull(r, nameBytes); err != nil {
		return nil, fmt.Errorf("compression: read algorithm name: %w", err)
	}
	if err := codec.ValidateUTF8(nameBytes); err != nil {
		return nil, err
	}

	alg, err := ParseAlgorithm(string(nameBytes))
	if err != nil {
		return nil, err
	}

	chunkLength, err := codec.ReadU32(r)
	if err != nil {
		return nil, fmt.Errorf("compression: read chunk length: %w", err)
	}
	totalLength, err := codec.ReadU64(r)
	if err != nil {
		return nil, fmt.Errorf("compression: read total length: %w", err)
	}
	chunkCount, err := codec.ReadU32(r)
	if err != nil {
		return nil, fmt.Errorf("compression: read chunk count: %w", err)
	}

	chunks := make([]ChunkDescriptor, 0, chunkCount)
	for i := uint32(0); i < chunkCount; i++ {
		offset, err := codec.ReadU64(r)
		if err != nil {
			return nil, fmt.Errorf("compression: read chunk %d offset: %w", i, err)
		}
		clen, err := codec.ReadU32(r)
		if err != nil {
			return nil, fmt.Errorf("compression: read chunk %d compressed length: %w", i, err)
		}
		ulen, err := codec.ReadU32(r)
		if err != nil {
			return nil, fmt.Errorf("compression: read chunk %d uncompressed length: %w", i, err)
		}
		chunks = append(chunks, ChunkDescriptor{
			CompressedOffset:   offset,
			CompressedLength:   clen,
			UncompressedLength: ulen,
		})
	}

	return &Info{
		Algorithm:   alg,
		ChunkLength: chunkLength,
		TotalLength: totalLength,
		Chunks:      chunks,
	}, nil
}

// Encode serializes ci in the same format ParseInfo reads, for
// self-written SSTables. No trailing CRC is emitted; readers treat it
// as optional.
func (ci *Info) Encode() []byte {
	name := []byte(ci.Algorithm.WireName())
	dst := make([]byte, 0, 2+len(name)+4+8+4+len(ci.Chunks)*16)
	dst = codec.PutU16(dst, uint16(len(name)))
	dst = append(dst, name...)
	dst = codec.PutU32(dst, ci.ChunkLength)
	dst = codec.PutU64(dst, ci.TotalLength)
	dst = codec.PutU32(dst, uint32(len(ci.Chunks)))
	for _, c := range ci.Chunks {
		dst = codec.PutU64(dst, c.CompressedOffset)
		dst = codec.PutU32(dst, c.CompressedLength)
		dst = codec.PutU32(dst, c.UncompressedLength)
	}
	return dst
}
