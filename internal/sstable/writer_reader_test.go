package sstable

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/cqlite-go/cqlite/internal/compression"
	"github.com/cqlite-go/cqlite/internal/types"
)

// TestWriterCompressesDataAndReaderDecompresses exercises the full
// compression wiring end to end: Writer chunk-compresses the Data file
// under a small chunk length (forcing several chunks) and Reader reads
// it back through CompressionInfo.db, verifying the decompressed cell
// values match what was written.
func TestWriterCompressesDataAndReaderDecompresses(t *testing.T) {
	dir := t.TempDir()

	longValue := make([]byte, 200)
	for i := range longValue {
		longValue[i] = byte('a' + i%26)
	}

	w, err := NewWriter(dir,
		WithVersion("me"), WithGeneration(1), WithSizeTier("big"),
		WithCompressionAlgorithm(compression.LZ4),
		WithCompressionChunkLength(64),
	)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	keys := []string{"a", "b", "c"}
	for _, k := range keys {
		p := &Partition{
			Key: []byte(k),
			Rows: []Row{{
				Liveness: Liveness{Timestamp: 1},
				Cells:    []Cell{{ColumnName: "v", Value: types.Text(string(longValue) + k), Timestamp: 1}},
			}},
		}
		if err := w.WritePartition(p); err != nil {
			t.Fatalf("WritePartition(%s): %v", k, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, FileName("me", 1, "big", ComponentCompressionInfo))); err != nil {
		t.Fatalf("expected CompressionInfo.db to be written: %v", err)
	}

	r, err := Open(dir, "me-1-big", ModeServing, WithChunkCacheBytes(1<<20))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	stats := r.Stats()
	if stats.CompressionParam != compression.LZ4.WireName() {
		t.Fatalf("CompressionParam = %q, want %q", stats.CompressionParam, compression.LZ4.WireName())
	}

	for _, k := range keys {
		p, err := r.Get([]byte(k))
		if err != nil {
			t.Fatalf("Get(%s): %v", k, err)
		}
		if p == nil {
			t.Fatalf("Get(%s): not found", k)
		}
		want := string(longValue) + k
		got := string(p.Rows[0].Cells[0].Value.Bytes)
		if got != want {
			t.Fatalf("partition %q cell = %q, want %q", k, got, want)
		}
	}
}

// TestWriterDefaultCompressionIsNone confirms a Writer built without an
// explicit compression option still round-trips through the same
// CompressionInfo-aware read path (a no-op codec, not a different code
// path), matching the teacher's "identity compressor" convention.
func TestWriterDefaultCompressionIsNone(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWriter(dir, WithVersion("me"), WithGeneration(1), WithSizeTier("big"))
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.WritePartition(&Partition{
		Key: []byte("a"),
		Rows: []Row{{
			Liveness: Liveness{Timestamp: 1},
			Cells:    []Cell{{ColumnName: "v", Value: types.Text("hello"), Timestamp: 1}},
		}},
	}); err != nil {
		t.Fatalf("WritePartition: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := Open(dir, fmt.Sprintf("%s-%d-%s", "me", 1, "big"), ModeServing)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	stats := r.Stats()
	if stats.CompressionParam != compression.None.WireName() {
		t.Fatalf("CompressionParam = %q, want %q", stats.CompressionParam, compression.None.WireName())
	}

	p, err := r.Get([]byte("a"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p == nil || string(p.Rows[0].Cells[0].Value.Bytes) != "hello" {
		t.Fatalf("Get(a) = %+v, want cell value %q", p, "hello")
	}
}
