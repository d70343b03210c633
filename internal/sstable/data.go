package sstable

import (
	"fmt"
	"io"

	"github.com/cqlite-go/cqlite/internal/codec"
	"github.com/cqlite-go/cqlite/internal/types"
)

// Liveness carries a row or partition's write timestamp and optional
// expiry, shared by static rows, regular rows, and range tombstones.
type Liveness struct {
	Timestamp int64
	TTL       int32 // 0 means no TTL
	LocalDeletionTime int32
}

// Cell is one column value within a row.
type Cell struct {
	ColumnName string
	Value      types.Value
	Timestamp  int64
}

// Row is one clustering row within a partition: its clustering key
// components and the cells present in it.
type Row struct {
	Clustering [][]byte
	Liveness   Liveness
	Cells      []Cell
}

// RangeTombstoneBound marks the start or end of a deleted clustering
// range within a partition (spec §4.4's Data file range tombstones).
type RangeTombstoneBound struct {
	Clustering [][]byte
	IsStart    bool
	Inclusive  bool
	Tombstone  types.Tombstone
}

// Partition is one partition's full Data-file representation: its key,
// partition-level deletion/liveness, an optional static row, and its
// clustering rows interleaved with range tombstone bounds in clustering
// order, terminated by an end-of-partition marker.
type Partition struct {
	Key             []byte
	DeletionTime    int32 // local deletion time; 0 means live
	DeletionMarker  int64 // deletion timestamp; 0 means live
	StaticRow       *Row
	Rows            []Row
	RangeTombstones []RangeTombstoneBound
}

// partitionMarker tags the kind of record that follows a partition's
// header in the Data file, so ParsePartition can stop at the boundary
// a real Cassandra big-format Data file marks explicitly.
type partitionMarker uint8

const (
	markerStaticRow partitionMarker = iota
	markerRow
	markerRangeTombstoneBound
	markerEndOfPartition
)

// ParsePartition reads one partition from the Data file, stopping at
// its end-of-partition marker. It does not consume the partition-key
// prefix; the caller (Index-guided positioning) has already located and
// read it.
func ParsePartition(r io.Reader, key []byte) (*Partition, error) {
	p := &Partition{Key: key}

	deletionTime, err := codec.ReadI32(r)
	if err != nil {
		return nil, fmt.Errorf("sstable: read partition deletion time: %w", err)
	}
	deletionMarker, err := codec.ReadI64(r)
	if err != nil {
		return nil, fmt.Errorf("sstable: read partition deletion marker: %w", err)
	}
	p.DeletionTime = deletionTime
	p.DeletionMarker = deletionMarker

	for {
		markerByte, err := codec.ReadU8(r)
		if err != nil {
			return nil, fmt.Errorf("sstable: read partition record marker: %w", err)
		}
		marker := partitionMarker(markerByte)
		if marker == markerEndOfPartition {
			break
		}

		switch marker {
		case markerStaticRow:
			row, err := readRow(r, nil)
			if err != nil {
				return nil, fmt.Errorf("sstable: read static row: %w", err)
			}
			p.StaticRow = row
		case markerRow:
			clustering, err := readClusteringComponents(r)
			if err != nil {
				return nil, fmt.Errorf("sstable: read row clustering: %w", err)
			}
			row, err := readRow(r, clustering)
			if err != nil {
				return nil, fmt.Errorf("sstable: read row: %w", err)
			}
			p.Rows = append(p.Rows, *row)
		case markerRangeTombstoneBound:
			bound, err := readRangeTombstoneBound(r)
			if err != nil {
				return nil, fmt.Errorf("sstable: read range tombstone bound: %w", err)
			}
			p.RangeTombstones = append(p.RangeTombstones, bound)
		default:
			return nil, fmt.Errorf("sstable: unknown partition record marker %d", markerByte)
		}
	}

	return p, nil
}

func readRow(r io.Reader, clustering [][]byte) (*Row, error) {
	ts, err := codec.ReadI64(r)
	if err != nil {
		return nil, fmt.Errorf("liveness timestamp: %w", err)
	}
	ttl, err := codec.ReadI32(r)
	if err != nil {
		return nil, fmt.Errorf("liveness ttl: %w", err)
	}
	ldt, err := codec.ReadI32(r)
	if err != nil {
		return nil, fmt.Errorf("liveness local deletion time: %w", err)
	}

	cellCount, err := codec.ReadU32(r)
	if err != nil {
		return nil, fmt.Errorf("cell count: %w", err)
	}
	cells := make([]Cell, 0, cellCount)
	for i := uint32(0); i < cellCount; i++ {
		nameBytes, isNull, err := codec.ReadBytesVInt(r)
		if err != nil || isNull {
			return nil, fmt.Errorf("cell %d name: %w", i, err)
		}
		cellTS, err := codec.ReadI64(r)
		if err != nil {
			return nil, fmt.Errorf("cell %d timestamp: %w", i, err)
		}
		valueBytes, valueIsNull, err := codec.ReadBytesVInt(r)
		if err != nil {
			return nil, fmt.Errorf("cell %d value: %w", i, err)
		}
		v := types.Null()
		if !valueIsNull {
			v = types.Blob(valueBytes)
		}
		cells = append(cells, Cell{ColumnName: string(nameBytes), Value: v, Timestamp: cellTS})
	}

	return &Row{
		Clustering: clustering,
		Liveness:   Liveness{Timestamp: ts, TTL: ttl, LocalDeletionTime: ldt},
		Cells:      cells,
	}, nil
}

func readRangeTombstoneBound(r io.Reader) (RangeTombstoneBound, error) {
	clustering, err := readClusteringComponents(r)
	if err != nil {
		return RangeTombstoneBound{}, fmt.Errorf("clustering: %w", err)
	}
	isStartByte, err := codec.ReadU8(r)
	if err != nil {
		return RangeTombstoneBound{}, fmt.Errorf("is-start: %w", err)
	}
	inclusiveByte, err := codec.ReadU8(r)
	if err != nil {
		return RangeTombstoneBound{}, fmt.Errorf("inclusive: %w", err)
	}
	ts, err := codec.ReadI64(r)
	if err != nil {
		return RangeTombstoneBound{}, fmt.Errorf("timestamp: %w", err)
	}

	return RangeTombstoneBound{
		Clustering: clustering,
		IsStart:    isStartByte != 0,
		Inclusive:  inclusiveByte != 0,
		Tombstone:  types.Tombstone{Type: types.TombstoneRangeStart, Timestamp: ts},
	}, nil
}

// Encode serializes p in the format ParsePartition reads (excluding the
// partition-key prefix, which the caller writes via the Index entry).
func (p *Partition) Encode() []byte {
	var dst []byte
	dst = codec.PutI32(dst, p.DeletionTime)
	dst = codec.PutI64(dst, p.DeletionMarker)

	if p.StaticRow != nil {
		dst = append(dst, byte(markerStaticRow))
		dst = encodeRow(dst, p.StaticRow, false)
	}
	for i := range p.Rows {
		dst = append(dst, byte(markerRow))
		dst = writeClusteringComponents(dst, p.Rows[i].Clustering)
		dst = encodeRow(dst, &p.Rows[i], true)
	}
	for _, rt := range p.RangeTombstones {
		dst = append(dst, byte(markerRangeTombstoneBound))
		dst = writeClusteringComponents(dst, rt.Clustering)
		dst = append(dst, boolByte(rt.IsStart), boolByte(rt.Inclusive))
		dst = codec.PutI64(dst, rt.Tombstone.Timestamp)
	}
	dst = append(dst, byte(markerEndOfPartition))
	return dst
}

func encodeRow(dst []byte, row *Row, _ bool) []byte {
	dst = codec.PutI64(dst, row.Liveness.Timestamp)
	dst = codec.PutI32(dst, row.Liveness.TTL)
	dst = codec.PutI32(dst, row.Liveness.LocalDeletionTime)
	dst = codec.PutU32(dst, uint32(len(row.Cells)))
	for _, c := range row.Cells {
		dst = codec.PutBytesVInt(dst, []byte(c.ColumnName))
		dst = codec.PutI64(dst, c.Timestamp)
		if c.Value.IsNull() {
			dst = codec.EncodeVInt(dst, -1)
		} else {
			dst = codec.PutBytesVInt(dst, c.Value.Bytes)
		}
	}
	return dst
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
