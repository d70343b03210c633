// Package storage is the single orchestrator spec §4.11 describes: it
// composes the write-ahead log, memtable, manifest, SSTable reader/
// writer, and compaction strategy behind put/get/delete/scan/flush/
// compact, serializing WAL appends and memtable snapshots. Background
// flushes run with bounded concurrency; Compact runs in the caller's
// goroutine.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/cqlite-go/cqlite/internal/compaction"
	"github.com/cqlite-go/cqlite/internal/compression"
	"github.com/cqlite-go/cqlite/internal/errs"
	"github.com/cqlite-go/cqlite/internal/manifest"
	"github.com/cqlite-go/cqlite/internal/memtable"
	"github.com/cqlite-go/cqlite/internal/sstable"
	"github.com/cqlite-go/cqlite/internal/wal"
)

const (
	walDirName      = "wal"
	manifestDirName = "manifest"
	dataDirName     = "data"

	sstVersion  = "me"
	sstSizeTier = "big"
)

// Store is the opened engine instance: one WAL, one manifest, a single
// active memtable plus (at most) one flushing memtable, and the live
// SSTable set the manifest names. Concurrent callers are safe: writes
// serialize through mu; reads look up the memtables while holding mu
// and snapshot the table list, then read the SSTables without it.
type Store struct {
	root string
	cfg  Config
	dir  string // root/data

	compressionAlgorithm compression.Algorithm

	wal *wal.Writer
	mf  *manifest.Manifest

	mu        sync.Mutex
	cond      *sync.Cond
	active    *memtable.SkipList[fragment]
	flushing  *memtable.SkipList[fragment]
	nextGen   int64
	closed    bool

	bg      errgroup.Group
	bgSem   *semaphore.Weighted
}

// Open replays any existing WAL and manifest under root and returns a
// Store ready to serve put/get/delete/scan/flush/compact. root's
// subdirectories (wal/, manifest/, data/) are created if absent.
func Open(root string, cfg Config) (*Store, error) {
	alg, err := compression.ParseConfigName(cfg.CompressionDefault)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve compression default: %w", err)
	}

	s := &Store{
		root:                 root,
		cfg:                  cfg,
		dir:                  filepath.Join(root, dataDirName),
		compressionAlgorithm: alg,
		bgSem:                semaphore.NewWeighted(int64(max(1, cfg.CompactionMaxConcurrent))),
	}
	s.cond = sync.NewCond(&s.mu)
	s.active = memtable.New[fragment]()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create data directory: %w", err)
	}

	mf, err := manifest.Open(filepath.Join(root, manifestDirName))
	if err != nil {
		return nil, fmt.Errorf("storage: open manifest: %w", err)
	}
	s.mf = mf

	var maxGen int64
	for _, t := range mf.Tables() {
		if t.Generation > maxGen {
			maxGen = t.Generation
		}
	}
	s.nextGen = maxGen + 1

	if cfg.WALEnabled {
		walDir := filepath.Join(root, walDirName)
		records, err := wal.Replay(walDir)
		if err != nil {
			return nil, fmt.Errorf("storage: replay wal: %w", err)
		}
		for _, r := range records {
			f := fragment{Operation: r.Operation, Value: r.Value, Timestamp: r.Timestamp}
			s.active.Put(r.Key, f, approxFragmentSize(r.Key, f))
		}

		w, err := wal.NewWriter(walDir, 256, int64(cfg.WALSegmentSizeBytes), nil)
		if err != nil {
			return nil, fmt.Errorf("storage: open wal writer: %w", err)
		}
		s.wal = w
	}

	return s, nil
}

// Put durably records key=value at timestamp ts, blocking only as long
// as backpressure requires (spec §5: "puts block until the oldest
// memtable retires" once both the active and in-flight memtables are
// over threshold).
func (s *Store) Put(ctx context.Context, key, value []byte, ts int64) error {
	return s.write(ctx, key, fragment{Operation: wal.OpPut, Value: value, Timestamp: ts})
}

// Delete inserts a tombstone fragment at ts, following the same
// durability and backpressure path as Put.
func (s *Store) Delete(ctx context.Context, key []byte, ts int64) error {
	return s.write(ctx, key, fragment{Operation: wal.OpDelete, Timestamp: ts})
}

func (s *Store) write(ctx context.Context, key []byte, f fragment) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errs.ErrClosed
	}
	if s.flushing != nil && s.active.ByteSize() >= s.cfg.MemtableSizeThresholdBytes {
		// Wake the wait below when ctx ends, so a deadline bounds the block.
		stop := context.AfterFunc(ctx, func() {
			s.mu.Lock()
			s.cond.Broadcast()
			s.mu.Unlock()
		})
		defer stop()
	}
	for s.flushing != nil && s.active.ByteSize() >= s.cfg.MemtableSizeThresholdBytes {
		if err := ctx.Err(); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("storage: put blocked past deadline: %w", errs.ErrBackpressure)
		}
		// Both buffers are full: block until the in-flight flush
		// retires the older memtable, per spec §5's backpressure rule.
		s.cond.Wait()
		if s.closed {
			s.mu.Unlock()
			return errs.ErrClosed
		}
	}
	w := s.wal // snapshot under lock: flushSnapshot swaps this pointer while holding mu
	s.mu.Unlock()

	if w != nil {
		if err := w.Write(wal.Record{Operation: f.Operation, Key: key, Value: f.Value, Timestamp: f.Timestamp}); err != nil {
			return fmt.Errorf("storage: wal append: %w", err)
		}
	}

	s.mu.Lock()
	s.active.Put(key, f, approxFragmentSize(key, f))
	needFlush := s.flushing == nil && s.active.ByteSize() >= s.cfg.MemtableSizeThresholdBytes
	s.mu.Unlock()

	if needFlush {
		s.triggerFlush()
	}
	return nil
}

// Get returns the current value for key, or found=false if it is
// absent or has been deleted. The active (and any flushing) memtable
// is always checked first, since every write lands there before a
// flush makes it durable in an SSTable.
func (s *Store) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	s.mu.Lock()
	if f, ok := s.active.Get(key); ok {
		s.mu.Unlock()
		return resolveFragment(f)
	}
	if s.flushing != nil {
		if f, ok := s.flushing.Get(key); ok {
			s.mu.Unlock()
			return resolveFragment(f)
		}
	}
	tables := s.mf.Tables()
	s.mu.Unlock()

	var best *sstable.Partition
	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return nil, false, fmt.Errorf("storage: get cancelled: %w", errs.ErrCancelled)
		}
		r, err := sstable.Open(s.dir, tableBase(t), sstable.ModeServing, sstable.WithChunkCacheBytes(s.cfg.ReadChunkCacheBytes))
		if err != nil {
			return nil, false, fmt.Errorf("storage: open generation %d: %w", t.Generation, err)
		}
		p, err := r.Get(key)
		_ = r.Close()
		if err != nil {
			return nil, false, err
		}
		if p == nil {
			continue
		}
		if best == nil || partitionTimestamp(p) > partitionTimestamp(best) {
			best = p
		}
	}
	if best == nil {
		return nil, false, nil
	}
	f, ok := fragmentFromPartition(best)
	if !ok {
		return nil, false, nil
	}
	return resolveFragment(f)
}

func resolveFragment(f fragment) ([]byte, bool, error) {
	if f.Operation == wal.OpDelete {
		return nil, false, nil
	}
	return f.Value, true, nil
}

func partitionTimestamp(p *sstable.Partition) int64 {
	if p.DeletionMarker != 0 {
		return p.DeletionMarker
	}
	if len(p.Rows) > 0 {
		return p.Rows[0].Liveness.Timestamp
	}
	return 0
}

// Row is one resolved scan result.
type Row struct {
	Key   []byte
	Value []byte
}

// Scan returns every live key in [start, end) (nil bound means
// unbounded on that side), merging the in-memory memtables with every
// on-disk SSTable and resolving duplicates by highest timestamp,
// dropping tombstones.
func (s *Store) Scan(ctx context.Context, start, end []byte) ([]Row, error) {
	winners := map[string]fragment{}
	var keys [][]byte

	consider := func(key []byte, f fragment) {
		sk := string(key)
		prev, seen := winners[sk]
		if !seen {
			keys = append(keys, key)
		}
		if !seen || f.Timestamp > prev.Timestamp {
			winners[sk] = f
		}
	}

	s.mu.Lock()
	for rec := range s.active.Range(start, end) {
		consider(rec.Key, rec.Value)
	}
	if s.flushing != nil {
		for rec := range s.flushing.Range(start, end) {
			consider(rec.Key, rec.Value)
		}
	}
	tables := s.mf.Tables()
	s.mu.Unlock()

	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("storage: scan cancelled: %w", errs.ErrCancelled)
		}
		r, err := sstable.Open(s.dir, tableBase(t), sstable.ModeServing, sstable.WithChunkCacheBytes(s.cfg.ReadChunkCacheBytes))
		if err != nil {
			return nil, fmt.Errorf("storage: open generation %d: %w", t.Generation, err)
		}
		partitions, err := r.Scan(start, end)
		_ = r.Close()
		if err != nil {
			return nil, err
		}
		for _, p := range partitions {
			if f, ok := fragmentFromPartition(p); ok {
				consider(p.Key, f)
			}
		}
	}

	out := make([]Row, 0, len(keys))
	for _, k := range keys {
		f := winners[string(k)]
		if f.Operation == wal.OpDelete {
			continue
		}
		out = append(out, Row{Key: k, Value: f.Value})
	}
	sortRows(out)
	return out, nil
}

func sortRows(rows []Row) {
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0 && bytes.Compare(rows[j-1].Key, rows[j].Key) > 0; j-- {
			rows[j-1], rows[j] = rows[j], rows[j-1]
		}
	}
}

// triggerFlush swaps the active memtable out and runs its flush as a
// bounded background task.
func (s *Store) triggerFlush() {
	s.mu.Lock()
	if s.flushing != nil || s.active.Len() == 0 {
		s.mu.Unlock()
		return
	}
	snapshot := s.active
	s.flushing = snapshot
	s.active = memtable.New[fragment]()
	s.mu.Unlock()

	s.bg.Go(func() error {
		ctx := context.Background()
		if err := s.bgSem.Acquire(ctx, 1); err != nil {
			return err
		}
		defer s.bgSem.Release(1)

		err := s.flushSnapshot(snapshot)

		s.mu.Lock()
		s.flushing = nil
		s.cond.Broadcast()
		s.mu.Unlock()

		return err
	})
}

// Flush flushes the active memtable if it is non-empty and no flush is
// in flight, then blocks until every pending background flush has
// completed. While a background flush is in flight, the active
// memtable is left unflushed. Intended for tests and graceful shutdown, not the hot
// write path (which flushes asynchronously via triggerFlush).
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.active.Len() > 0 && s.flushing == nil {
		snapshot := s.active
		s.flushing = snapshot
		s.active = memtable.New[fragment]()
		s.mu.Unlock()

		err := s.flushSnapshot(snapshot)
		s.mu.Lock()
		s.flushing = nil
		s.cond.Broadcast()
		s.mu.Unlock()
		if err != nil {
			return err
		}
	} else {
		s.mu.Unlock()
	}
	return s.bg.Wait()
}

func (s *Store) flushSnapshot(snapshot *memtable.SkipList[fragment]) error {
	s.mu.Lock()
	gen := s.nextGen
	s.nextGen++
	s.mu.Unlock()

	w, err := sstable.NewWriter(s.dir,
		sstable.WithVersion(sstVersion),
		sstable.WithGeneration(gen),
		sstable.WithSizeTier(sstSizeTier),
		sstable.WithExpectedPartitions(uint(max(1, snapshot.Len()))),
		sstable.WithFilterFPRate(s.cfg.BloomFPRate),
		sstable.WithCompressionAlgorithm(s.compressionAlgorithm),
		sstable.WithCompressionChunkLength(uint32(s.cfg.CompressionChunkLengthBytes)),
	)
	if err != nil {
		return fmt.Errorf("storage: flush: open writer: %w", err)
	}

	for rec := range snapshot.Iterator() {
		if err := w.WritePartition(partitionFromFragment(rec.Key, rec.Value)); err != nil {
			_ = w.Close()
			return fmt.Errorf("storage: flush: write partition: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("storage: flush: close writer: %w", err)
	}

	if err := s.mf.Append(manifest.Edit{Kind: manifest.EditAddTable, Table: manifest.TableRef{
		Generation: gen,
		Level:      0,
		Version:    sstVersion,
		SizeTier:   sstSizeTier,
	}}); err != nil {
		return fmt.Errorf("storage: flush: record manifest: %w", err)
	}

	if s.wal != nil {
		if err := s.wal.Close(); err != nil {
			return fmt.Errorf("storage: flush: close wal: %w", err)
		}
		if err := wal.Truncate(filepath.Join(s.root, walDirName)); err != nil {
			return fmt.Errorf("storage: flush: truncate wal: %w", err)
		}
		w2, err := wal.NewWriter(filepath.Join(s.root, walDirName), 256, int64(s.cfg.WALSegmentSizeBytes), nil)
		if err != nil {
			return fmt.Errorf("storage: flush: reopen wal: %w", err)
		}
		s.mu.Lock()
		s.wal = w2
		s.mu.Unlock()
	}

	return nil
}

// Compact runs every compaction the current table set needs, one
// Task at a time, until the strategy reports the table set is within
// budget.
func (s *Store) Compact(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("storage: compact cancelled: %w", errs.ErrCancelled)
		}
		task := compaction.PlanNext(s.mf.Tables(), s.cfg.CompactionLevel0FileTrigger, s.cfg.CompactionLevelSizeMultiplier)
		if task == nil {
			return nil
		}

		s.mu.Lock()
		gen := s.nextGen
		s.nextGen++
		s.mu.Unlock()

		if err := compaction.Run(s.dir, task, gen, sstVersion, sstSizeTier, s.mf,
			time.Now().UnixMicro(), s.cfg.GCGraceSeconds,
			sstable.WithFilterFPRate(s.cfg.BloomFPRate),
			sstable.WithCompressionAlgorithm(s.compressionAlgorithm),
			sstable.WithCompressionChunkLength(uint32(s.cfg.CompressionChunkLengthBytes)),
		); err != nil {
			return fmt.Errorf("storage: compact: %w", err)
		}
	}
}

// OpenSSTable is the read-only diagnostic entry point spec §6 names:
// it opens one SSTable directory in diagnostic mode, tolerating
// anomalies the serving path would reject, for inspection tools.
func OpenSSTable(dir, base string) (*sstable.Reader, error) {
	return sstable.Open(dir, base, sstable.ModeDiagnostic)
}

// Close waits for any in-flight background work, then closes the WAL
// and manifest.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()

	if err := s.bg.Wait(); err != nil {
		return err
	}
	if s.wal != nil {
		if err := s.wal.Close(); err != nil {
			return err
		}
	}
	return s.mf.Close()
}

func tableBase(t manifest.TableRef) string {
	return fmt.Sprintf("%s-%d-%s", t.Version, t.Generation, t.SizeTier)
}
