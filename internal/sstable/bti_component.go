package sstable

import (
	"encoding/binary"
	"fmt"

	"github.com/cqlite-go/cqlite/internal/sstable/bti"
)

// encodeBTIPartitions builds the Partitions.db component: a
// byte-comparable trie over partition keys (this engine's own partition
// keys are raw bytes, already byte-comparable without a typed encoding
// step), each payload the key's Data-file offset, followed by an
// 8-byte big-endian trailer recording the root node's offset within
// this same component. entries must already be in ascending
// partition-key order, the same precondition Writer.WritePartition's
// caller already honors for the BIG Index.
func encodeBTIPartitions(entries []IndexEntry) []byte {
	keys := make([][]byte, len(entries))
	offsets := make([]uint64, len(entries))
	for i, e := range entries {
		keys[i] = e.PartitionKey
		offsets[i] = e.DataOffset
	}
	data, root := bti.BuildFromSorted(keys, offsets).Serialize()
	trailer := make([]byte, 8)
	binary.BigEndian.PutUint64(trailer, root)
	return append(data, trailer...)
}

// decodeBTIPartitions splits the root-offset trailer off a Partitions.db
// component and wraps the remaining trie bytes as a bti.Source.
func decodeBTIPartitions(data []byte) (bti.Source, uint64, error) {
	if len(data) < 8 {
		return nil, 0, fmt.Errorf("sstable: Partitions.db shorter than its 8-byte root-offset trailer")
	}
	trieBytes := data[:len(data)-8]
	root := binary.BigEndian.Uint64(data[len(data)-8:])
	return bti.NewSliceSource(trieBytes), root, nil
}
