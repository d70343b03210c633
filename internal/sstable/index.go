package sstable

import (
	"fmt"
	"io"

	"github.com/cqlite-go/cqlite/internal/codec"
	"github.com/cqlite-go/cqlite/internal/errs"
)

// PromotedIndexOffsetBase selects how a promoted index's recorded
// clustering-range offsets are anchored. Different format generations
// anchor them differently; resolving which base a given Data file uses
// is the open question this type answers (SPEC_FULL.md §9, Open
// Question 3).
type PromotedIndexOffsetBase int

const (
	// OffsetFromPartitionStart anchors promoted-index offsets at the
	// first byte of the partition's Data file record (the "ma"-through
	// "md" convention).
	OffsetFromPartitionStart PromotedIndexOffsetBase = iota
	// OffsetFromPartitionContentStart anchors them just past the
	// partition's deletion-info header, skipping the fixed prefix (the
	// "me"/"na"/"oa" convention, matching promoted-index behavior
	// carried into BTI's Rows trie).
	OffsetFromPartitionContentStart
)

// offsetBaseForVersion resolves the PromotedIndexOffsetBase from a
// Data file's identified version label, so callers never have to guess.
func offsetBaseForVersion(version string) PromotedIndexOffsetBase {
	switch version {
	case "ma", "mb", "mc", "md":
		return OffsetFromPartitionStart
	default:
		return OffsetFromPartitionContentStart
	}
}

// PromotedIndexEntry is one clustering-range entry within a partition's
// promoted index: a sampled clustering bound and the Data-file offset
// (relative to the table's PromotedIndexOffsetBase) of the first row in
// that range.
type PromotedIndexEntry struct {
	FirstClustering [][]byte
	LastClustering  [][]byte
	Offset          uint64
	Width           uint64
}

// IndexEntry is one partition's record in the Index component: its key,
// the Data-file offset where the partition begins, and an optional
// promoted index of clustering ranges for rows within a wide partition.
type IndexEntry struct {
	PartitionKey  []byte
	DataOffset    uint64
	PromotedIndex []PromotedIndexEntry
}

// Index is the parsed Index component: every partition in key order,
// each carrying its Data-file location.
type Index struct {
	Entries    []IndexEntry
	OffsetBase PromotedIndexOffsetBase
}

// ParseIndex reads the Index component for the given Data file version,
// which determines how promoted-index offsets are anchored (Open
// Question 3). If a parsed file internally mixes both conventions
// (detected via an explicit per-partition marker byte that disagrees
// with the file-level expectation), parsing fails with
// errs.ErrMixedPromotedIndex rather than silently picking one.
func ParseIndex(r io.Reader, version string) (*Index, error) {
	base := offsetBaseForVersion(version)
	idx := &Index{OffsetBase: base}

	for {
		key, isNull, err := codec.ReadBytesVInt(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("sstable: read index partition key: %w", err)
		}
		if isNull {
			return nil, fmt.Errorf("sstable: index partition key is null")
		}

		dataOffset, err := codec.ReadU64(r)
		if err != nil {
			return nil, fmt.Errorf("sstable: read index data offset: %w", err)
		}

		marker, err := codec.ReadU8(r)
		if err != nil {
			return nil, fmt.Errorf("sstable: read index offset-base marker: %w", err)
		}
		entryBase := PromotedIndexOffsetBase(marker)
		if entryBase != base {
			return nil, fmt.Errorf("sstable: partition %q uses offset base %d, file expects %d: %w",
				key, entryBase, base, errs.ErrMixedPromotedIndex)
		}

		promoCount, err := codec.ReadU32(r)
		if err != nil {
			return nil, fmt.Errorf("sstable: read promoted index count: %w", err)
		}
		promoted := make([]PromotedIndexEntry, 0, promoCount)
		for i := uint32(0); i < promoCount; i++ {
			pe, err := readPromotedIndexEntry(r)
			if err != nil {
				return nil, fmt.Errorf("sstable: read promoted index entry %d: %w", i, err)
			}
			promoted = append(promoted, pe)
		}

		idx.Entries = append(idx.Entries, IndexEntry{
			PartitionKey:  key,
			DataOffset:    dataOffset,
			PromotedIndex: promoted,
		})
	}

	return idx, nil
}

func readPromotedIndexEntry(r io.Reader) (PromotedIndexEntry, error) {
	first, err := readClusteringComponents(r)
	if err != nil {
		return PromotedIndexEntry{}, fmt.Errorf("first clustering: %w", err)
	}
	last, err := readClusteringComponents(r)
	if err != nil {
		return PromotedIndexEntry{}, fmt.Errorf("last clustering: %w", err)
	}
	offset, err := codec.ReadU64(r)
	if err != nil {
		return PromotedIndexEntry{}, fmt.Errorf("offset: %w", err)
	}
	width, err := codec.ReadU64(r)
	if err != nil {
		return PromotedIndexEntry{}, fmt.Errorf("width: %w", err)
	}
	return PromotedIndexEntry{FirstClustering: first, LastClustering: last, Offset: offset, Width: width}, nil
}

func readClusteringComponents(r io.Reader) ([][]byte, error) {
	n, err := codec.ReadU32(r)
	if err != nil {
		return nil, err
	}
	comps := make([][]byte, 0, n)
	for i := uint32(0); i < n; i++ {
		c, isNull, err := codec.ReadBytesVInt(r)
		if err != nil {
			return nil, err
		}
		if isNull {
			comps = append(comps, nil)
			continue
		}
		comps = append(comps, c)
	}
	return comps, nil
}

// Encode serializes idx in the format ParseIndex reads.
func (idx *Index) Encode() []byte {
	var dst []byte
	for _, e := range idx.Entries {
		dst = codec.PutBytesVInt(dst, e.PartitionKey)
		dst = codec.PutU64(dst, e.DataOffset)
		dst = append(dst, byte(idx.OffsetBase))
		dst = codec.PutU32(dst, uint32(len(e.PromotedIndex)))
		for _, pe := range e.PromotedIndex {
			dst = writeClusteringComponents(dst, pe.FirstClustering)
			dst = writeClusteringComponents(dst, pe.LastClustering)
			dst = codec.PutU64(dst, pe.Offset)
			dst = codec.PutU64(dst, pe.Width)
		}
	}
	return dst
}

func writeClusteringComponents(dst []byte, comps [][]byte) []byte {
	dst = codec.PutU32(dst, uint32(len(comps)))
	for _, c := range comps {
		if c == nil {
			dst = codec.EncodeVInt(dst, -1)
			continue
		}
		dst = codec.PutBytesVInt(dst, c)
	}
	return dst
}
