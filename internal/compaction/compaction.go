package compaction

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cqlite-go/cqlite/internal/manifest"
	"github.com/cqlite-go/cqlite/internal/sstable"
)

// allComponents lists every component file a BIG-format table might
// have on disk, used when removing a compacted-away input: unlike
// Writer.Close's cleanup-on-error (which only removes what it itself
// just wrote), this removes a whole prior table, so it is safe to
// ignore a missing file for any one of them.
var allComponents = []sstable.Component{
	sstable.ComponentData,
	sstable.ComponentCompressionInfo,
	sstable.ComponentIndex,
	sstable.ComponentSummary,
	sstable.ComponentFilter,
	sstable.ComponentStatistics,
	sstable.ComponentDigest,
	sstable.ComponentTOC,
}

// Run executes one compaction Task: it opens each input table, merges
// them with Merge (dropping tombstones past gcGraceSeconds as of now,
// spec §4.11), streams the result into a new SSTable at task.ToLevel
// via sstable.Writer, durably records the level/generation swap in mf
// (new table added, old generations removed) before touching the
// filesystem again, and only then deletes the input tables' files —
// the same install-before-cleanup ordering as the teacher-example's
// rename-then-delete, so a crash mid-compaction never loses data: either
// the manifest still names the old inputs (compaction simply re-runs)
// or it already names the new output (the half-deleted inputs are
// harmless orphans a future sweep can reclaim).
func Run(dir string, task *Task, newGeneration int64, version, sizeTier string, mf *manifest.Manifest, now, gcGraceSeconds int64, opts ...sstable.WriterOption) error {
	readers := make([]*sstable.Reader, 0, len(task.Inputs))
	defer func() {
		for _, r := range readers {
			_ = r.Close()
		}
	}()

	inputs := make([]Input, 0, len(task.Inputs))
	for _, t := range task.Inputs {
		base := fmt.Sprintf("%s-%d-%s", t.Version, t.Generation, t.SizeTier)
		r, err := sstable.Open(dir, base, sstable.ModeServing)
		if err != nil {
			return fmt.Errorf("compaction: open input generation %d: %w", t.Generation, err)
		}
		readers = append(readers, r)
		inputs = append(inputs, Input{Reader: r, Generation: t.Generation})
	}

	writerOpts := append([]sstable.WriterOption{
		sstable.WithVersion(version),
		sstable.WithGeneration(newGeneration),
		sstable.WithSizeTier(sizeTier),
	}, opts...)
	w, err := sstable.NewWriter(dir, writerOpts...)
	if err != nil {
		return fmt.Errorf("compaction: open output writer: %w", err)
	}

	if err := Merge(inputs, now, gcGraceSeconds, w.WritePartition); err != nil {
		// Close still writes the partitions merged so far out as a
		// complete table, so its files are removed explicitly.
		_ = w.Close()
		removeTableFiles(dir, manifest.TableRef{Generation: newGeneration, Version: version, SizeTier: sizeTier})
		return fmt.Errorf("compaction: merge: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("compaction: finalize output table: %w", err)
	}

	if mf != nil {
		if err := installManifestEdits(mf, task, newGeneration, version, sizeTier); err != nil {
			return err
		}
	}

	for _, t := range task.Inputs {
		removeTableFiles(dir, t)
	}

	return nil
}

func installManifestEdits(mf *manifest.Manifest, task *Task, newGeneration int64, version, sizeTier string) error {
	if err := mf.Append(manifest.Edit{
		Kind: manifest.EditAddTable,
		Table: manifest.TableRef{
			Generation: newGeneration,
			Level:      task.ToLevel,
			Version:    version,
			SizeTier:   sizeTier,
		},
	}); err != nil {
		return fmt.Errorf("compaction: record output table: %w", err)
	}
	for _, t := range task.Inputs {
		if err := mf.Append(manifest.Edit{Kind: manifest.EditRemoveTable, Table: manifest.TableRef{Generation: t.Generation}}); err != nil {
			return fmt.Errorf("compaction: record removal of generation %d: %w", t.Generation, err)
		}
	}
	return nil
}

func removeTableFiles(dir string, t manifest.TableRef) {
	for _, c := range allComponents {
		_ = os.Remove(filepath.Join(dir, sstable.FileName(t.Version, t.Generation, t.SizeTier, c)))
	}
}
