package sstable

import (
	"fmt"
	"io"

	"github.com/cqlite-go/cqlite/internal/codec"
)

// sectionID tags a Statistics record so unrecognized future sections can
// be skipped by their recorded length rather than failing the parse
// (spec §4.4: "unknown sections are skipped by recorded length").
type sectionID uint8

const (
	sectionFormatVersion sectionID = iota
	sectionPartitioner
	sectionCompressionParams
	sectionTimestampRange
	sectionRowPartitionCounts
	sectionClusteringRange
)

// Statistics is the subset of the on-disk Statistics component this
// engine parses: enough to drive correct reads, per spec §4.4.
type Statistics struct {
	FormatVersion    uint32
	Partitioner      string
	CompressionParam string
	MinTimestamp     int64
	MaxTimestamp     int64
	RowCount         uint64
	PartitionCount   uint64
	MinClustering    [][]byte
	MaxClustering    [][]byte

	// Warnings records trailing or unrecognized regions tolerated per
	// the Open Question resolution in SPEC_FULL.md §9: never fatal, even
	// in a serving open.
	Warnings []string
}

// ParseStatistics reads the Statistics component: a sequence of
// (sectionID u8, length VInt, payload) records.
func ParseStatistics(r io.Reader) (*Statistics, error) {
	st := &Statistics{}

	for {
		idByte, err := codec.ReadU8(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("sstable: read statistics section id: %w", err)
		}

		length, err := codec.ReadVInt(r)
		if err != nil {
			return nil, fmt.Errorf("sstable: read statistics section length: %w", err)
		}
		payload := make([]byte, length)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("sstable: read statistics section payload: %w", err)
		}

		if err := st.applySection(sectionID(idByte), payload); err != nil {
			st.Warnings = append(st.Warnings, err.Error())
		}
	}

	return st, nil
}

func (st *Statistics) applySection(id sectionID, payload []byte) error {
	switch id {
	case sectionFormatVersion:
		if len(payload) < 4 {
			return fmt.Errorf("sstable: short format version section")
		}
		st.FormatVersion = beUint32(payload)
	case sectionPartitioner:
		st.Partitioner = string(payload)
	case sectionCompressionParams:
		st.CompressionParam = string(payload)
	case sectionTimestampRange:
		if len(payload) < 16 {
			return fmt.Errorf("sstable: short timestamp range section")
		}
		st.MinTimestamp = int64(beUint64(payload[0:8]))
		st.MaxTimestamp = int64(beUint64(payload[8:16]))
	case sectionRowPartitionCounts:
		if len(payload) < 16 {
			return fmt.Errorf("sstable: short row/partition count section")
		}
		st.RowCount = beUint64(payload[0:8])
		st.PartitionCount = beUint64(payload[8:16])
	case sectionClusteringRange:
		min, max, err := parseClusteringRange(payload)
		if err != nil {
			return err
		}
		st.MinClustering, st.MaxClustering = min, max
	default:
		return fmt.Errorf("sstable: skipping unrecognized statistics section %d (%d bytes)", id, len(payload))
	}
	return nil
}

func parseClusteringRange(payload []byte) (min, max [][]byte, err error) {
	pos := 0
	readComponents := func() ([][]byte, error) {
		if pos+4 > len(payload) {
			return nil, fmt.Errorf("sstable: truncated clustering range")
		}
		n := beUint32(payload[pos:])
		pos += 4
		comps := make([][]byte, 0, n)
		for i := uint32(0); i < n; i++ {
			if pos+4 > len(payload) {
				return nil, fmt.Errorf("sstable: truncated clustering component length")
			}
			l := beUint32(payload[pos:])
			pos += 4
			if pos+int(l) > len(payload) {
				return nil, fmt.Errorf("sstable: truncated clustering component")
			}
			comps = append(comps, payload[pos:pos+int(l)])
			pos += int(l)
		}
		return comps, nil
	}

	min, err = readComponents()
	if err != nil {
		return nil, nil, err
	}
	max, err = readComponents()
	if err != nil {
		return nil, nil, err
	}
	return min, max, nil
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b[:8] {
		v = v<<8 | uint64(c)
	}
	return v
}

// Encode serializes st in the section format ParseStatistics reads, for
// self-written SSTables.
func (st *Statistics) Encode() []byte {
	var dst []byte

	dst = appendSection(dst, sectionFormatVersion, codec.PutU32(nil, st.FormatVersion))
	dst = appendSection(dst, sectionPartitioner, []byte(st.Partitioner))
	dst = appendSection(dst, sectionCompressionParams, []byte(st.CompressionParam))

	ts := codec.PutI64(nil, st.MinTimestamp)
	ts = codec.PutI64(ts, st.MaxTimestamp)
	dst = appendSection(dst, sectionTimestampRange, ts)

	counts := codec.PutU64(nil, st.RowCount)
	counts = codec.PutU64(counts, st.PartitionCount)
	dst = appendSection(dst, sectionRowPartitionCounts, counts)

	if st.MinClustering != nil || st.MaxClustering != nil {
		cr := encodeClusteringRange(st.MinClustering)
		cr = append(cr, encodeClusteringRange(st.MaxClustering)...)
		dst = appendSection(dst, sectionClusteringRange, cr)
	}

	return dst
}

func encodeClusteringRange(comps [][]byte) []byte {
	dst := codec.PutU32(nil, uint32(len(comps)))
	for _, c := range comps {
		dst = codec.PutU32(dst, uint32(len(c)))
		dst = append(dst, c...)
	}
	return dst
}

func appendSection(dst []byte, id sectionID, payload []byte) []byte {
	dst = append(dst, byte(id))
	dst = codec.EncodeVInt(dst, int64(len(payload)))
	return append(dst, payload...)
}
