package wal

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

const defaultMaxSegmentBytes = 128 << 20

// Writer appends Records to a size-bounded sequence of WAL segment
// files via a background goroutine, fsyncing after each write. Adapted
// from the teacher's WALWriter (wal/wal_writer.go) for the buffered-
// channel/single-writer-goroutine shape, and from
// segmentmanager.DiskSegmentManager for segment naming, discovery, and
// rotation: the active segment rolls to the next segment-%04d.log once
// it reaches maxSegmentBytes, the roll threshold spec's
// wal.segment_size_bytes names.
type Writer struct {
	ch     chan pendingRecord
	done   chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool

	dir             string
	maxSegmentBytes int64
	activeID        int
	f               *os.File
	size            int64

	logger *zap.Logger
}

type pendingRecord struct {
	rec Record
	ack chan error
}

// NewWriter opens dir's active WAL segment — the highest-numbered
// existing segment-NNNN.log, or a fresh segment-0001.log if dir has
// none — and starts the background writer goroutine. buffer sizes the
// pending-write channel; a full channel makes Write block, providing
// natural backpressure into the storage coordinator's put path.
// maxSegmentBytes bounds each segment's size before Writer rolls to the
// next one; a value <= 0 falls back to defaultMaxSegmentBytes.
func NewWriter(dir string, buffer int, maxSegmentBytes int64, logger *zap.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("wal: create directory %s: %w", dir, err)
	}
	if maxSegmentBytes <= 0 {
		maxSegmentBytes = defaultMaxSegmentBytes
	}

	ids, err := listSegments(dir)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	w := &Writer{
		ch:              make(chan pendingRecord, buffer),
		done:            make(chan struct{}),
		dir:             dir,
		maxSegmentBytes: maxSegmentBytes,
		logger:          logger,
	}

	if len(ids) == 0 {
		if err := w.openSegment(1); err != nil {
			return nil, err
		}
	} else {
		activeID := ids[len(ids)-1]
		f, err := os.OpenFile(filepath.Join(dir, segmentFileName(activeID)), os.O_RDWR|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("wal: open active segment %d: %w", activeID, err)
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("wal: stat active segment %d: %w", activeID, err)
		}
		w.activeID = activeID
		w.f = f
		w.size = info.Size()
	}

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// openSegment creates segment id and makes it the active segment,
// mirroring segmentmanager.RotateSegment's create-and-swap shape.
func (w *Writer) openSegment(id int) error {
	f, err := os.OpenFile(filepath.Join(w.dir, segmentFileName(id)), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("wal: create segment %d: %w", id, err)
	}
	w.activeID = id
	w.f = f
	w.size = 0
	return nil
}

// Write appends r and blocks until it is durably fsynced, so the
// storage coordinator can safely acknowledge the caller's put/delete
// only after Write returns nil.
func (w *Writer) Write(r Record) error {
	ack := make(chan error, 1)
	select {
	case w.ch <- pendingRecord{rec: r, ack: ack}:
	case <-w.done:
		return fmt.Errorf("wal: writer closed")
	}
	return <-ack
}

// Close stops the background goroutine after it drains any queued
// records, then closes the active segment file.
func (w *Writer) Close() error {
	if w.closed.Swap(true) {
		return nil
	}
	close(w.done)
	w.wg.Wait()
	return w.f.Close()
}

func (w *Writer) loop() {
	defer w.wg.Done()
	for {
		select {
		case p := <-w.ch:
			w.writeOne(p)
		case <-w.done:
			for {
				select {
				case p := <-w.ch:
					w.writeOne(p)
				default:
					return
				}
			}
		}
	}
}

func (w *Writer) writeOne(p pendingRecord) {
	buf := Encode(nil, p.rec)
	n, err := w.f.Write(buf)
	w.size += int64(n)
	if err == nil {
		err = w.f.Sync()
	}
	if err != nil {
		w.logger.Error("wal write failed", zap.Error(err), zap.Uint64("table_id", p.rec.TableID))
		p.ack <- err
		return
	}
	if w.size >= w.maxSegmentBytes {
		if rerr := w.rotate(); rerr != nil {
			w.logger.Error("wal segment rotation failed", zap.Error(rerr), zap.Int("segment", w.activeID))
			p.ack <- rerr
			return
		}
	}
	p.ack <- nil
}

// rotate closes the current segment and opens the next one, once the
// active segment has reached maxSegmentBytes.
func (w *Writer) rotate() error {
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("wal: close segment %d before rotation: %w", w.activeID, err)
	}
	return w.openSegment(w.activeID + 1)
}
