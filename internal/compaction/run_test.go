package compaction

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/cqlite-go/cqlite/internal/manifest"
	"github.com/cqlite-go/cqlite/internal/sstable"
)

func TestRunMergesInstallsManifestAndRemovesInputs(t *testing.T) {
	dir := t.TempDir()

	r1 := writeTestTable(t, dir, 1, []string{"a", "b"}, "old")
	r1.Close()
	r2 := writeTestTable(t, dir, 2, []string{"b", "c"}, "new")
	r2.Close()

	mdir := filepath.Join(dir, "manifest")
	mf, err := manifest.Open(mdir)
	if err != nil {
		t.Fatalf("manifest.Open: %v", err)
	}
	for _, gen := range []int64{1, 2} {
		if err := mf.Append(manifest.Edit{Kind: manifest.EditAddTable, Table: manifest.TableRef{Generation: gen, Level: 0, Version: "me", SizeTier: "big"}}); err != nil {
			t.Fatalf("Append add: %v", err)
		}
	}

	task := &Task{
		FromLevel: 0,
		ToLevel:   1,
		Inputs: []manifest.TableRef{
			{Generation: 1, Level: 0, Version: "me", SizeTier: "big"},
			{Generation: 2, Level: 0, Version: "me", SizeTier: "big"},
		},
	}

	if err := Run(dir, task, 3, "me", "big", mf, 0, 0); err != nil {
		t.Fatalf("Run: %v", err)
	}

	tables := mf.Tables()
	if len(tables) != 1 {
		t.Fatalf("got %d tables after compaction, want 1, got %+v", len(tables), tables)
	}
	if tables[0].Generation != 3 || tables[0].Level != 1 {
		t.Fatalf("surviving table = %+v, want generation 3 at level 1", tables[0])
	}

	for _, gen := range []int64{1, 2} {
		for _, c := range allComponents {
			p := filepath.Join(dir, sstable.FileName("me", gen, "big", c))
			if _, err := os.Stat(p); !os.IsNotExist(err) {
				t.Fatalf("expected input file %s removed, stat err = %v", p, err)
			}
		}
	}

	out, err := sstable.Open(dir, fmt.Sprintf("me-%d-big", 3), sstable.ModeServing)
	if err != nil {
		t.Fatalf("open output table: %v", err)
	}
	defer out.Close()
	if out.NumPartitions() != 3 {
		t.Fatalf("output table has %d partitions, want 3", out.NumPartitions())
	}
}
