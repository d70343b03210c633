package sstable

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/cqlite-go/cqlite/internal/codec"
)

// SummaryEntry samples one partition key at a fixed sampling interval,
// recording where its Index entry begins.
type SummaryEntry struct {
	PartitionKey []byte
	IndexOffset  uint64
}

// Summary is the sparse in-memory index over an SSTable's Index
// component: binary-searchable partition-key samples (spec §4.4).
type Summary struct {
	Entries        []SummaryEntry
	SamplingLevel  uint32
	MinIndexOffset uint64
	MaxIndexOffset uint64
}

// ParseSummary reads the Summary component: sampling level (u32), entry
// count (u32), then entry count * (VInt-prefixed key, u64 offset).
func ParseSummary(r io.Reader) (*Summary, error) {
	samplingLevel, err := codec.ReadU32(r)
	if err != nil {
		return nil, fmt.Errorf("sstable: read summary sampling level: %w", err)
	}
	count, err := codec.ReadU32(r)
	if err != nil {
		return nil, fmt.Errorf("sstable: read summary entry count: %w", err)
	}

	s := &Summary{SamplingLevel: samplingLevel, Entries: make([]SummaryEntry, 0, count)}
	for i := uint32(0); i < count; i++ {
		key, isNull, err := codec.ReadBytesVInt(r)
		if err != nil {
			return nil, fmt.Errorf("sstable: read summary entry %d key: %w", i, err)
		}
		if isNull {
			return nil, fmt.Errorf("sstable: summary entry %d has null key", i)
		}
		offset, err := codec.ReadU64(r)
		if err != nil {
			return nil, fmt.Errorf("sstable: read summary entry %d offset: %w", i, err)
		}
		s.Entries = append(s.Entries, SummaryEntry{PartitionKey: key, IndexOffset: offset})
	}
	if count > 0 {
		s.MinIndexOffset = s.Entries[0].IndexOffset
		s.MaxIndexOffset = s.Entries[count-1].IndexOffset
	}
	return s, nil
}

// Encode serializes s in the format ParseSummary reads.
func (s *Summary) Encode() []byte {
	var dst []byte
	dst = codec.PutU32(dst, s.SamplingLevel)
	dst = codec.PutU32(dst, uint32(len(s.Entries)))
	for _, e := range s.Entries {
		dst = codec.PutBytesVInt(dst, e.PartitionKey)
		dst = codec.PutU64(dst, e.IndexOffset)
	}
	return dst
}

// FloorEntry returns the last sampled entry whose PartitionKey is <=
// key, and its index in Entries, or (-1) if key sorts before every
// sample. The Index file must then be scanned forward from that
// entry's IndexOffset to locate the exact partition.
func (s *Summary) FloorEntry(key []byte) (SummaryEntry, int) {
	idx := sort.Search(len(s.Entries), func(i int) bool {
		return bytes.Compare(s.Entries[i].PartitionKey, key) > 0
	})
	idx--
	if idx < 0 {
		return SummaryEntry{}, -1
	}
	return s.Entries[idx], idx
}

// BuildSummary samples every interval-th partition key from a sorted
// stream of (partitionKey, indexOffset) pairs produced during a flush
// or compaction write.
func BuildSummary(keys [][]byte, offsets []uint64, samplingLevel uint32, interval int) *Summary {
	if interval <= 0 {
		interval = 1
	}
	s := &Summary{SamplingLevel: samplingLevel}
	for i := 0; i < len(keys); i += interval {
		s.Entries = append(s.Entries, SummaryEntry{PartitionKey: keys[i], IndexOffset: offsets[i]})
	}
	if len(s.Entries) > 0 {
		s.MinIndexOffset = s.Entries[0].IndexOffset
		s.MaxIndexOffset = s.Entries[len(s.Entries)-1].IndexOffset
	}
	return s
}
