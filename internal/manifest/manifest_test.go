package manifest

import "testing"

func TestAppendAndReopenReplaysEdits(t *testing.T) {
	dir := t.TempDir()

	m, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	edits := []Edit{
		{Kind: EditAddTable, Table: TableRef{Generation: 1, Level: 0, Version: "me", SizeTier: "big"}},
		{Kind: EditAddTable, Table: TableRef{Generation: 2, Level: 0, Version: "me", SizeTier: "big"}},
		{Kind: EditSetLevel, Table: TableRef{Generation: 1, Level: 1, Version: "me", SizeTier: "big"}},
	}
	for _, e := range edits {
		if err := m.Append(e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	tables := reopened.Tables()
	if len(tables) != 2 {
		t.Fatalf("got %d tables, want 2", len(tables))
	}
	if tables[0].Generation != 2 || tables[0].Level != 0 {
		t.Fatalf("table[0] = %+v, want generation 2 at level 0", tables[0])
	}
	if tables[1].Generation != 1 || tables[1].Level != 1 {
		t.Fatalf("table[1] = %+v, want generation 1 at level 1 (moved by EditSetLevel)", tables[1])
	}
}

func TestRemoveTableDropsIt(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	if err := m.Append(Edit{Kind: EditAddTable, Table: TableRef{Generation: 5, Level: 0}}); err != nil {
		t.Fatalf("Append add: %v", err)
	}
	if err := m.Append(Edit{Kind: EditRemoveTable, Table: TableRef{Generation: 5}}); err != nil {
		t.Fatalf("Append remove: %v", err)
	}

	if len(m.Tables()) != 0 {
		t.Fatalf("expected no tables after removal, got %v", m.Tables())
	}
}

func TestTablesAtLevelFilters(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	_ = m.Append(Edit{Kind: EditAddTable, Table: TableRef{Generation: 1, Level: 0}})
	_ = m.Append(Edit{Kind: EditAddTable, Table: TableRef{Generation: 2, Level: 1}})

	if got := m.TablesAtLevel(1); len(got) != 1 || got[0].Generation != 2 {
		t.Fatalf("TablesAtLevel(1) = %v, want [{Generation:2}]", got)
	}
}
