package storage

import (
	"github.com/cqlite-go/cqlite/internal/sstable"
	"github.com/cqlite-go/cqlite/internal/types"
	"github.com/cqlite-go/cqlite/internal/wal"
)

// valueColumn is the single cell name this coordinator gives every
// put: the engine treats a row fragment as one opaque value per key,
// matching the flat key/value shape spec §4.8 describes for the
// memtable (a typed multi-column schema is layered on top by the query
// path, not by the coordinator's own put/get/delete primitives).
const valueColumn = "value"

// fragment is the memtable's value type: spec §4.8's "row fragment
// plus monotonic per-entry timestamp", generalized to carry a
// tombstone marker so a delete survives a flush and can suppress an
// older value once it reaches a lower compaction level.
type fragment struct {
	Operation wal.Operation
	Value     []byte
	Timestamp int64
}

func approxFragmentSize(key []byte, f fragment) int {
	return len(key) + len(f.Value) + 24
}

// partitionFromFragment builds the single-row sstable.Partition a
// flush writes for one memtable entry.
func partitionFromFragment(key []byte, f fragment) *sstable.Partition {
	if f.Operation == wal.OpDelete {
		return &sstable.Partition{
			Key:            key,
			DeletionMarker: f.Timestamp,
		}
	}
	return &sstable.Partition{
		Key: key,
		Rows: []sstable.Row{{
			Liveness: sstable.Liveness{Timestamp: f.Timestamp},
			Cells: []sstable.Cell{{
				ColumnName: valueColumn,
				Value:      types.Blob(f.Value),
				Timestamp:  f.Timestamp,
			}},
		}},
	}
}

// fragmentFromPartition is the inverse of partitionFromFragment, used
// when resolving a read against an on-disk Partition: a partition-level
// deletion reads back as a tombstone fragment, the first row's value
// column reads back as a put, and a partition with no rows or no value
// column in its first row yields ok=false.
func fragmentFromPartition(p *sstable.Partition) (fragment, bool) {
	if p.DeletionMarker != 0 {
		return fragment{Operation: wal.OpDelete, Timestamp: p.DeletionMarker}, true
	}
	if len(p.Rows) == 0 {
		return fragment{}, false
	}
	row := p.Rows[0]
	for _, c := range row.Cells {
		if c.ColumnName == valueColumn {
			return fragment{Operation: wal.OpPut, Value: c.Value.Bytes, Timestamp: c.Timestamp}, true
		}
	}
	return fragment{}, false
}
