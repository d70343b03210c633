package wal

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/cqlite-go/cqlite/internal/errs"
)

func TestRecordEncodeDecodeRoundTrip(t *testing.T) {
	r := Record{TableID: 42, Operation: OpPut, Key: []byte("pk1"), Value: []byte("v1"), Timestamp: 12345}
	encoded := Encode(nil, r)

	got, err := Decode(bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.TableID != r.TableID || got.Operation != r.Operation || got.Timestamp != r.Timestamp {
		t.Fatalf("header mismatch: %+v", got)
	}
	if !bytes.Equal(got.Key, r.Key) || !bytes.Equal(got.Value, r.Value) {
		t.Fatalf("key/value mismatch: %+v", got)
	}
}

func TestDecodeDeleteHasEmptyValue(t *testing.T) {
	r := Record{TableID: 1, Operation: OpDelete, Key: []byte("pk"), Timestamp: 1}
	got, err := Decode(bytes.NewReader(Encode(nil, r)))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Operation != OpDelete {
		t.Fatalf("Operation = %v, want OpDelete", got.Operation)
	}
	if len(got.Value) != 0 {
		t.Fatalf("Value = %q, want empty", got.Value)
	}
}

func TestDecodeRejectsCRCMismatch(t *testing.T) {
	encoded := Encode(nil, Record{TableID: 1, Operation: OpPut, Key: []byte("k"), Value: []byte("v")})
	encoded[10] ^= 0xFF // corrupt a body byte without touching the CRC field
	_, err := Decode(bytes.NewReader(encoded))
	if !errors.Is(err, errs.ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestDecodeStopsAtTornTailRecord(t *testing.T) {
	full := Encode(nil, Record{TableID: 1, Operation: OpPut, Key: []byte("k"), Value: []byte("v")})
	truncated := full[:len(full)-3] // cut mid-payload, simulating a crash mid-write

	_, err := Decode(bytes.NewReader(truncated))
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF for a torn tail, got %v", err)
	}
}

func TestWriterReplayRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, 8, 0, nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	records := []Record{
		{TableID: 1, Operation: OpPut, Key: []byte("a"), Value: []byte("1"), Timestamp: 100},
		{TableID: 1, Operation: OpPut, Key: []byte("b"), Value: []byte("2"), Timestamp: 101},
		{TableID: 1, Operation: OpDelete, Key: []byte("a"), Timestamp: 102},
	}
	for _, r := range records {
		if err := w.Write(r); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := Replay(dir)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(got) != len(records) {
		t.Fatalf("got %d records, want %d", len(got), len(records))
	}
	for i, r := range records {
		if got[i].TableID != r.TableID || got[i].Operation != r.Operation || !bytes.Equal(got[i].Key, r.Key) {
			t.Fatalf("record %d mismatch: got %+v, want %+v", i, got[i], r)
		}
	}
}

func TestReplayMissingFileReturnsEmpty(t *testing.T) {
	got, err := Replay(t.TempDir())
	if err != nil {
		t.Fatalf("Replay on empty dir: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d records, want 0", len(got))
	}
}

func TestTruncateRemovesFile(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, 1, 0, nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Write(Record{TableID: 1, Operation: OpPut, Key: []byte("a"), Value: []byte("1")}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := Truncate(dir); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, segmentFileName(1))); !os.IsNotExist(err) {
		t.Fatalf("expected wal segment removed, stat err = %v", err)
	}
}

func TestWriterRotatesSegmentOnSize(t *testing.T) {
	dir := t.TempDir()
	rec := Record{TableID: 1, Operation: OpPut, Key: []byte("k"), Value: []byte("v")}
	maxSegmentBytes := int64(len(Encode(nil, rec))) // force rotation after every record

	w, err := NewWriter(dir, 8, maxSegmentBytes, nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := w.Write(rec); err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	ids, err := listSegments(dir)
	if err != nil {
		t.Fatalf("listSegments: %v", err)
	}
	if len(ids) != 4 {
		t.Fatalf("got %d segments, want 4 (one per write plus the trailing empty one rotation opened): %v", len(ids), ids)
	}

	got, err := Replay(dir)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d replayed records across segments, want 3", len(got))
	}
}

func TestWriterResumesHighestSegmentOnReopen(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, 8, 0, nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Write(Record{TableID: 1, Operation: OpPut, Key: []byte("a"), Value: []byte("1")}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	w2, err := NewWriter(dir, 8, 0, nil)
	if err != nil {
		t.Fatalf("reopen NewWriter: %v", err)
	}
	if err := w2.Write(Record{TableID: 1, Operation: OpPut, Key: []byte("b"), Value: []byte("2")}); err != nil {
		t.Fatalf("Write after reopen: %v", err)
	}
	if err := w2.Close(); err != nil {
		t.Fatalf("Close after reopen: %v", err)
	}

	ids, err := listSegments(dir)
	if err != nil {
		t.Fatalf("listSegments: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("got %d segments, want 1 (reopen must append to the existing segment, not roll a new one): %v", len(ids), ids)
	}

	got, err := Replay(dir)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
}
