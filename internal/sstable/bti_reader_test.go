package sstable

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/cqlite-go/cqlite/internal/types"
)

// writeBTITestTable hand-assembles a minimal on-disk BTI SSTable
// directory: a Partitions.db trie over keys (in ascending order), a
// Data.db holding one single-row partition per key, and the
// Statistics/TOC siblings Open requires. Exercises the reader against
// a format this package's Writer does not itself produce.
func writeBTITestTable(t *testing.T, dir string, keys []string) {
	t.Helper()

	var dataBuf bytes.Buffer
	entries := make([]IndexEntry, 0, len(keys))
	for _, k := range keys {
		offset := uint64(4 + dataBuf.Len()) // Data offsets count the 4-byte magic written ahead of dataBuf
		p := &Partition{
			Key: []byte(k),
			Rows: []Row{{
				Liveness: Liveness{Timestamp: 100},
				Cells: []Cell{{
					ColumnName: "value",
					Value:      types.Blob([]byte("v-" + k)),
					Timestamp:  100,
				}},
			}},
		}
		dataBuf.Write(p.Encode())
		entries = append(entries, IndexEntry{PartitionKey: []byte(k), DataOffset: offset})
	}

	const version = "da"
	const generation = 1
	const sizeTier = "big"
	base := fmt.Sprintf("%s-%d-%s", version, generation, sizeTier)

	write := func(c Component, payload []byte) {
		if err := os.WriteFile(filepath.Join(dir, base+"-"+componentFileTag(c)), payload, 0o644); err != nil {
			t.Fatalf("write %s: %v", c, err)
		}
	}

	magic := make([]byte, 4)
	magic[0], magic[1] = 0x64, 0x61 // "da"
	write(ComponentData, append(magic, dataBuf.Bytes()...))
	write(ComponentPartitions, encodeBTIPartitions(entries))

	stats := &Statistics{
		FormatVersion:  1,
		RowCount:       uint64(len(keys)),
		PartitionCount: uint64(len(keys)),
	}
	write(ComponentStatistics, stats.Encode())

	var toc bytes.Buffer
	if err := WriteTOC(&toc, []Component{ComponentData, ComponentPartitions, ComponentStatistics}); err != nil {
		t.Fatalf("WriteTOC: %v", err)
	}
	write(ComponentTOC, toc.Bytes())
}

func TestBTIReaderGetPointLookup(t *testing.T) {
	dir := t.TempDir()
	writeBTITestTable(t, dir, []string{"a", "ab", "b", "ba", "c"})

	r, err := Open(dir, "da-1-big", ModeServing)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	p, err := r.Get([]byte("ab"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p == nil {
		t.Fatal("expected partition \"ab\" to be found")
	}
	if string(p.Rows[0].Cells[0].Value.Bytes) != "v-ab" {
		t.Fatalf("got value %q, want v-ab", p.Rows[0].Cells[0].Value.Bytes)
	}

	absent, err := r.Get([]byte("zzz"))
	if err != nil {
		t.Fatalf("Get absent: %v", err)
	}
	if absent != nil {
		t.Fatalf("expected \"zzz\" absent, got %+v", absent)
	}
}

// TestBTIReaderScanRange covers Scenario F: against keys
// {"a","ab","b","ba","c"}, scanning ["a".."b") returns "a" then "ab" in
// that order and nothing else.
func TestBTIReaderScanRange(t *testing.T) {
	dir := t.TempDir()
	writeBTITestTable(t, dir, []string{"a", "ab", "b", "ba", "c"})

	r, err := Open(dir, "da-1-big", ModeServing)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	partitions, err := r.Scan([]byte("a"), []byte("b"))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(partitions) != 2 {
		t.Fatalf("got %d partitions, want 2", len(partitions))
	}
	if string(partitions[0].Key) != "a" || string(partitions[1].Key) != "ab" {
		t.Fatalf("got keys %q, %q; want a, ab", partitions[0].Key, partitions[1].Key)
	}
}

func TestBTIReaderNumPartitionsAndPartitionAt(t *testing.T) {
	dir := t.TempDir()
	writeBTITestTable(t, dir, []string{"a", "ab", "b", "ba", "c"})

	r, err := Open(dir, "da-1-big", ModeServing)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if r.NumPartitions() != 5 {
		t.Fatalf("NumPartitions = %d, want 5", r.NumPartitions())
	}

	var keys []string
	for i := 0; i < r.NumPartitions(); i++ {
		p, err := r.PartitionAt(i)
		if err != nil {
			t.Fatalf("PartitionAt(%d): %v", i, err)
		}
		keys = append(keys, string(p.Key))
	}
	want := []string{"a", "ab", "b", "ba", "c"}
	for i, k := range want {
		if keys[i] != k {
			t.Fatalf("PartitionAt order = %v, want %v", keys, want)
		}
	}
}
