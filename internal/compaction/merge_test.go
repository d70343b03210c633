package compaction

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/cqlite-go/cqlite/internal/sstable"
	"github.com/cqlite-go/cqlite/internal/types"
)

func writeTestTable(t *testing.T, dir string, generation int64, keys []string, cellValue string) *sstable.Reader {
	t.Helper()
	w, err := sstable.NewWriter(dir, sstable.WithVersion("me"), sstable.WithGeneration(generation), sstable.WithSizeTier("big"))
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for _, k := range keys {
		p := &sstable.Partition{
			Key: []byte(k),
			Rows: []sstable.Row{{
				Clustering: nil,
				Liveness:   sstable.Liveness{Timestamp: generation},
				Cells:      []sstable.Cell{{ColumnName: "v", Value: types.Text(cellValue), Timestamp: generation}},
			}},
		}
		if err := w.WritePartition(p); err != nil {
			t.Fatalf("WritePartition(%s): %v", k, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	base := fmt.Sprintf("me-%d-big", generation)
	r, err := sstable.Open(dir, base, sstable.ModeServing)
	if err != nil {
		t.Fatalf("Open generation %d: %v", generation, err)
	}
	return r
}

func TestMergeDedupsByHighestGeneration(t *testing.T) {
	dir := t.TempDir()

	r1 := writeTestTable(t, dir, 1, []string{"a", "b"}, "old")
	r2 := writeTestTable(t, dir, 2, []string{"b", "c"}, "new")

	var out []*sstable.Partition
	err := Merge([]Input{
		{Reader: r1, Generation: 1},
		{Reader: r2, Generation: 2},
	}, 0, 0, func(p *sstable.Partition) error {
		out = append(out, p)
		return nil
	})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	if len(out) != 3 {
		t.Fatalf("got %d merged partitions, want 3 (a, b, c)", len(out))
	}
	want := map[string]string{"a": "old", "b": "new", "c": "new"}
	for _, p := range out {
		v := p.Rows[0].Cells[0].Value
		if string(v.Bytes) != want[string(p.Key)] {
			t.Fatalf("partition %q cell = %q, want %q", p.Key, v.Bytes, want[string(p.Key)])
		}
	}
	// merged output must stay in ascending key order
	for i := 1; i < len(out); i++ {
		if bytes.Compare(out[i-1].Key, out[i].Key) >= 0 {
			t.Fatalf("merged output not ascending: %q then %q", out[i-1].Key, out[i].Key)
		}
	}
}

func writeTestTombstoneTable(t *testing.T, dir string, generation int64, key string, deletionMarker int64) *sstable.Reader {
	t.Helper()
	w, err := sstable.NewWriter(dir, sstable.WithVersion("me"), sstable.WithGeneration(generation), sstable.WithSizeTier("big"))
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.WritePartition(&sstable.Partition{Key: []byte(key), DeletionMarker: deletionMarker}); err != nil {
		t.Fatalf("WritePartition(%s): %v", key, err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	base := fmt.Sprintf("me-%d-big", generation)
	r, err := sstable.Open(dir, base, sstable.ModeServing)
	if err != nil {
		t.Fatalf("Open generation %d: %v", generation, err)
	}
	return r
}

func TestMergeDropsTombstonePastGCGrace(t *testing.T) {
	dir := t.TempDir()
	const gcGraceSeconds = 10 * 24 * 60 * 60
	now := int64(100 * 24 * 60 * 60 * 1_000_000) // well past any plausible deletion timestamp below
	deletedAt := now - int64(gcGraceSeconds+1)*1_000_000

	r := writeTestTombstoneTable(t, dir, 1, "a", deletedAt)

	var out []*sstable.Partition
	err := Merge([]Input{{Reader: r, Generation: 1}}, now, gcGraceSeconds, func(p *sstable.Partition) error {
		out = append(out, p)
		return nil
	})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("got %d partitions, want 0 (tombstone past gc-grace must be dropped)", len(out))
	}
}

func TestMergeKeepsTombstoneWithinGCGrace(t *testing.T) {
	dir := t.TempDir()
	const gcGraceSeconds = 10 * 24 * 60 * 60
	now := int64(100 * 24 * 60 * 60 * 1_000_000)
	deletedAt := now - int64(gcGraceSeconds-1)*1_000_000

	r := writeTestTombstoneTable(t, dir, 1, "a", deletedAt)

	var out []*sstable.Partition
	err := Merge([]Input{{Reader: r, Generation: 1}}, now, gcGraceSeconds, func(p *sstable.Partition) error {
		out = append(out, p)
		return nil
	})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d partitions, want 1 (tombstone within gc-grace must survive)", len(out))
	}
}
