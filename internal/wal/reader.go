package wal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Replay reads every well-formed Record from dir's WAL segments, in
// ascending segment order, stopping cleanly at end-of-file or a torn
// tail record (a crash mid-write) rather than failing recovery, but
// returning an error for a record that decoded a length/CRC pointing
// at bytes that don't belong together (genuine corruption partway
// through a segment, not at its tail).
func Replay(dir string) ([]Record, error) {
	ids, err := listSegments(dir)
	if err != nil {
		return nil, err
	}

	var records []Record
	for _, id := range ids {
		recs, err := replaySegment(filepath.Join(dir, segmentFileName(id)))
		records = append(records, recs...)
		if err != nil {
			return records, err
		}
	}
	return records, nil
}

func replaySegment(path string) ([]Record, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("wal: open %s: %w", path, err)
	}
	defer f.Close()

	var records []Record
	for {
		rec, err := Decode(f)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return records, fmt.Errorf("wal: replay stopped at a corrupt record in %s after %d good records: %w", filepath.Base(path), len(records), err)
		}
		records = append(records, *rec)
	}
	return records, nil
}

// Truncate discards every WAL segment in dir, called once every record
// in them has been durably incorporated into a flushed SSTable and the
// manifest records that flush, so a future Replay does not redo
// already-durable writes.
func Truncate(dir string) error {
	ids, err := listSegments(dir)
	if err != nil {
		return err
	}
	for _, id := range ids {
		path := filepath.Join(dir, segmentFileName(id))
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("wal: truncate %s: %w", path, err)
		}
	}
	return nil
}
