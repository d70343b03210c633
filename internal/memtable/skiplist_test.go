package memtable

import (
	"testing"
)

func TestPutGetOverwrite(t *testing.T) {
	sl := New[string]()
	sl.Put([]byte("b"), "v1", 1)
	sl.Put([]byte("a"), "v2", 1)
	sl.Put([]byte("b"), "v1-updated", 1)

	v, ok := sl.Get([]byte("b"))
	if !ok || v != "v1-updated" {
		t.Fatalf("Get(b) = (%q, %v), want (v1-updated, true)", v, ok)
	}
	if sl.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (overwrite must not grow size)", sl.Len())
	}

	if _, ok := sl.Get([]byte("missing")); ok {
		t.Fatal("Get(missing) should not be found")
	}
}

func TestIteratorAscendingOrder(t *testing.T) {
	sl := New[int]()
	keys := []string{"delta", "alpha", "charlie", "bravo"}
	for i, k := range keys {
		sl.Put([]byte(k), i, 1)
	}

	var got []string
	for r := range sl.Iterator() {
		got = append(got, string(r.Key))
	}
	want := []string{"alpha", "bravo", "charlie", "delta"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestDeleteRemovesKey(t *testing.T) {
	sl := New[int]()
	sl.Put([]byte("a"), 1, 1)
	sl.Put([]byte("b"), 2, 1)
	sl.Delete([]byte("a"))

	if _, ok := sl.Get([]byte("a")); ok {
		t.Fatal("a should be gone after Delete")
	}
	if v, ok := sl.Get([]byte("b")); !ok || v != 2 {
		t.Fatalf("b should survive Delete(a): got (%d, %v)", v, ok)
	}
}

func TestRangeBounds(t *testing.T) {
	sl := New[int]()
	for i, k := range []string{"a", "b", "c", "d", "e"} {
		sl.Put([]byte(k), i, 1)
	}

	var got []string
	for r := range sl.Range([]byte("b"), []byte("d")) {
		got = append(got, string(r.Key))
	}
	want := []string{"b", "c"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("Range(b,d) = %v, want %v", got, want)
	}

	got = nil
	for r := range sl.Range(nil, []byte("b")) {
		got = append(got, string(r.Key))
	}
	if len(got) != 1 || got[0] != "a" {
		t.Fatalf("Range(nil,b) = %v, want [a]", got)
	}
}

func TestByteSizeTracksApproxSize(t *testing.T) {
	sl := New[int]()
	sl.Put([]byte("a"), 1, 10)
	sl.Put([]byte("b"), 2, 20)
	if sl.ByteSize() != 30 {
		t.Fatalf("ByteSize() = %d, want 30", sl.ByteSize())
	}
	sl.Put([]byte("a"), 99, 10) // overwrite must not double-count
	if sl.ByteSize() != 30 {
		t.Fatalf("ByteSize() after overwrite = %d, want unchanged 30", sl.ByteSize())
	}
}
