package storage

import (
	"context"
	"testing"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MemtableSizeThresholdBytes = 1 << 30 // large enough that flush is only ever explicit in these tests
	return cfg
}

func TestPutGetRoundTripViaMemtable(t *testing.T) {
	s, err := Open(t.TempDir(), testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.Put(ctx, []byte("k1"), []byte("v1"), 100); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := s.Get(ctx, []byte("k1"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || string(got) != "v1" {
		t.Fatalf("Get = (%q, %v), want (v1, true)", got, ok)
	}
}

func TestGetAfterFlushReadsFromSSTable(t *testing.T) {
	s, err := Open(t.TempDir(), testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.Put(ctx, []byte("k1"), []byte("v1"), 100); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	got, ok, err := s.Get(ctx, []byte("k1"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || string(got) != "v1" {
		t.Fatalf("Get after flush = (%q, %v), want (v1, true)", got, ok)
	}
}

// TestDeleteSupersedesOlderFlushedValue covers the tombstone-supersession
// scenario: a newer delete must suppress an older value even once the
// older value has already been flushed to an SSTable.
func TestDeleteSupersedesOlderFlushedValue(t *testing.T) {
	s, err := Open(t.TempDir(), testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.Put(ctx, []byte("k1"), []byte("v1"), 100); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := s.Delete(ctx, []byte("k1"), 200); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	_, ok, err := s.Get(ctx, []byte("k1"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatalf("expected k1 deleted, got present")
	}
}

func TestScanMergesMemtableAndSSTableByTimestamp(t *testing.T) {
	s, err := Open(t.TempDir(), testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.Put(ctx, []byte("a"), []byte("a-old"), 100); err != nil {
		t.Fatalf("Put a: %v", err)
	}
	if err := s.Put(ctx, []byte("b"), []byte("b-old"), 100); err != nil {
		t.Fatalf("Put b: %v", err)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	// overwrite a with a newer timestamp, still in the memtable
	if err := s.Put(ctx, []byte("a"), []byte("a-new"), 200); err != nil {
		t.Fatalf("Put a again: %v", err)
	}

	rows, err := s.Scan(ctx, nil, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	want := map[string]string{"a": "a-new", "b": "b-old"}
	for _, r := range rows {
		if string(r.Value) != want[string(r.Key)] {
			t.Fatalf("row %q = %q, want %q", r.Key, r.Value, want[string(r.Key)])
		}
	}
}

// TestCompactMergesLevelZeroTables covers the leveled-compaction
// scenario end to end through the coordinator: enough flushes to cross
// the level-0 trigger must leave a single table at level 1 afterward.
func TestCompactMergesLevelZeroTables(t *testing.T) {
	cfg := testConfig()
	cfg.CompactionLevel0FileTrigger = 2
	s, err := Open(t.TempDir(), cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	for i, k := range []string{"a", "b", "c", "d"} {
		if err := s.Put(ctx, []byte(k), []byte("v"), int64(100+i)); err != nil {
			t.Fatalf("Put %s: %v", k, err)
		}
		if err := s.Flush(ctx); err != nil {
			t.Fatalf("Flush %s: %v", k, err)
		}
	}

	if err := s.Compact(ctx); err != nil {
		t.Fatalf("Compact: %v", err)
	}

	tables := s.mf.Tables()
	if len(tables) != 1 {
		t.Fatalf("got %d tables after compaction, want 1, got %+v", len(tables), tables)
	}
	if tables[0].Level != 1 {
		t.Fatalf("surviving table level = %d, want 1", tables[0].Level)
	}

	for _, k := range []string{"a", "b", "c", "d"} {
		got, ok, err := s.Get(ctx, []byte(k))
		if err != nil {
			t.Fatalf("Get %s: %v", k, err)
		}
		if !ok || string(got) != "v" {
			t.Fatalf("Get %s after compaction = (%q, %v), want (v, true)", k, got, ok)
		}
	}
}

func TestReopenReplaysWALWithoutFlush(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()

	s, err := Open(dir, cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()
	if err := s.Put(ctx, []byte("k1"), []byte("v1"), 1); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(dir, cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, ok, err := reopened.Get(ctx, []byte("k1"))
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if !ok || string(got) != "v1" {
		t.Fatalf("Get after reopen = (%q, %v), want (v1, true)", got, ok)
	}
}
