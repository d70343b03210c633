package compaction

import (
	"bytes"
	"container/heap"
	"fmt"

	"github.com/cqlite-go/cqlite/internal/sstable"
)

// Input is one source table feeding a merge: its opened Reader plus the
// generation it was written at, used to break ties when the same
// partition key appears in more than one input (the highest generation
// holds the most recent write and wins, mirroring the teacher-example's
// highest-sequence-wins rule).
type Input struct {
	Reader     *sstable.Reader
	Generation int64
}

// tableIter walks one input table's partitions in key order, the same
// sequential-scan shape as the teacher-example's tableIter, adapted
// from a raw key/value/seq record stream to sstable.Partition values
// parsed through the already-open Reader.
type tableIter struct {
	in   Input
	pos  int
	n    int
	cur  *sstable.Partition
	done bool
}

func newTableIter(in Input) (*tableIter, error) {
	t := &tableIter{in: in, n: in.Reader.NumPartitions()}
	if err := t.advance(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *tableIter) advance() error {
	if t.pos >= t.n {
		t.done = true
		t.cur = nil
		return nil
	}
	p, err := t.in.Reader.PartitionAt(t.pos)
	if err != nil {
		return fmt.Errorf("compaction: read partition %d of generation %d: %w", t.pos, t.in.Generation, err)
	}
	t.cur = p
	t.pos++
	return nil
}

// mergeHeap orders tableIters by current partition key, then by
// descending generation so that when two iterators are tied on key the
// newer write surfaces first — the same container/heap.Interface shape
// as the teacher-example's mergeHeap, generalized from raw byte keys to
// sstable.Partition.Key comparisons.
type mergeHeap []*tableIter

func (h mergeHeap) Len() int { return len(h) }

func (h mergeHeap) Less(i, j int) bool {
	c := bytes.Compare(h[i].cur.Key, h[j].cur.Key)
	if c != 0 {
		return c < 0
	}
	return h[i].in.Generation > h[j].in.Generation
}

func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *mergeHeap) Push(x any) { *h = append(*h, x.(*tableIter)) }

func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Merge performs the k-way merge at the heart of a compaction: it reads
// every input table in key order, resolves duplicate partition keys by
// keeping the highest-generation table's version (the others are
// strictly older writes to the same partition and are discarded,
// tombstones included — a tombstone from the newest write must still
// suppress an older row), drops the survivor entirely when it is a
// tombstone older than gcGraceSeconds relative to now (spec §4.11's
// gc-grace rule), and streams whatever remains through writeFn (normally
// (*sstable.Writer).WritePartition).
//
// now and gcGraceSeconds are both caller-supplied (rather than Merge
// calling time.Now() itself) so the gc-grace cutoff stays deterministic
// and testable. Both are interpreted in the same units as
// Partition.DeletionMarker: microseconds since the Unix epoch.
//
// Grounded on other_examples/2866ec4a_ChinmayNoob-lsm-go's Run: a
// container/heap k-way merge over per-table sequential iterators,
// adapted here from raw key/value/seq records to sstable.Partition.
func Merge(inputs []Input, now, gcGraceSeconds int64, writeFn func(*sstable.Partition) error) error {
	h := make(mergeHeap, 0, len(inputs))
	for _, in := range inputs {
		it, err := newTableIter(in)
		if err != nil {
			return err
		}
		if !it.done {
			h = append(h, it)
		}
	}
	heap.Init(&h)

	emit := func(p *sstable.Partition) error {
		if tombstoneExpired(p, now, gcGraceSeconds) {
			return nil
		}
		return writeFn(p)
	}

	var pending *sstable.Partition
	for h.Len() > 0 {
		top := h[0]
		key := top.cur.Key

		if pending == nil || !bytes.Equal(pending.Key, key) {
			if pending != nil {
				if err := emit(pending); err != nil {
					return err
				}
			}
			pending = top.cur
		}
		// else: top.cur is a strictly older duplicate of pending
		// (mergeHeap orders ties by descending generation), discarded.

		if err := top.advance(); err != nil {
			return err
		}
		if top.done {
			heap.Pop(&h)
		} else {
			heap.Fix(&h, 0)
		}
	}
	if pending != nil {
		if err := emit(pending); err != nil {
			return err
		}
	}
	return nil
}

// tombstoneExpired reports whether p is a deletion marker whose
// timestamp is at or before the gc-grace cutoff, meaning it is safe to
// drop instead of carrying it forward into the compaction output.
// Non-tombstone partitions (DeletionMarker == 0) are never expired here.
func tombstoneExpired(p *sstable.Partition, now, gcGraceSeconds int64) bool {
	if p.DeletionMarker == 0 {
		return false
	}
	cutoff := now - gcGraceSeconds*1_000_000
	return p.DeletionMarker <= cutoff
}
