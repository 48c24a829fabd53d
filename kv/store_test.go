package kv

import (
	"reflect"
	"testing"
)

func TestRamKvStoreGetUpdate(t *testing.T) {
	s := NewRamKvStore()
	if _, ok, _ := s.Get("HGT"); ok {
		t.Fatalf("expected miss on empty store")
	}
	if err := s.Update([]WriteOp{Put("HGT", []byte{1})}); err != nil {
		t.Fatalf("update: %v", err)
	}
	v, ok, err := s.Get("HGT")
	if err != nil || !ok || !reflect.DeepEqual(v, []byte{1}) {
		t.Fatalf("get after put = %v %v %v", v, ok, err)
	}
	if err := s.Update([]WriteOp{Remove("HGT")}); err != nil {
		t.Fatalf("update remove: %v", err)
	}
	if _, ok, _ := s.Get("HGT"); ok {
		t.Fatalf("expected miss after remove")
	}
}

// TestRollbackOfRoundTrip is invariant 1 from spec.md §8: applying
// RollbackOf(ops) after ops restores byte-identical state. Mirror-then-flush
// equivalence is checked separately by TestMirrorFidelity.
func TestRollbackOfRoundTrip(t *testing.T) {
	s := NewRamKvStore()
	if err := s.Update([]WriteOp{Put("A", []byte("1")), Put("B", []byte("2"))}); err != nil {
		t.Fatal(err)
	}

	ops := []WriteOp{Put("A", []byte("99")), Remove("B"), Put("C", []byte("3"))}
	rollback, err := RollbackOf(s, ops)
	if err != nil {
		t.Fatalf("rollback_of: %v", err)
	}
	if err := s.Update(ops); err != nil {
		t.Fatal(err)
	}
	if err := s.Update(rollback); err != nil {
		t.Fatal(err)
	}

	a, _, _ := s.Get("A")
	if string(a) != "1" {
		t.Fatalf("A = %q, want 1", a)
	}
	b, bok, _ := s.Get("B")
	if !bok || string(b) != "2" {
		t.Fatalf("B = %q ok=%v, want 2", b, bok)
	}
	if _, cok, _ := s.Get("C"); cok {
		t.Fatalf("C should have been rolled back to absent")
	}
}

func TestMirrorFidelity(t *testing.T) {
	ops := []WriteOp{Put("A", []byte("1")), Put("B", []byte("2")), Remove("C")}

	direct := NewRamKvStore()
	if err := direct.Update([]WriteOp{Put("C", []byte("pre"))}); err != nil {
		t.Fatal(err)
	}
	if err := direct.Update(ops); err != nil {
		t.Fatal(err)
	}

	viaMirror := NewRamKvStore()
	if err := viaMirror.Update([]WriteOp{Put("C", []byte("pre"))}); err != nil {
		t.Fatal(err)
	}
	mirror := NewRamMirrorStore(viaMirror)
	if err := mirror.Update(ops); err != nil {
		t.Fatal(err)
	}
	if err := viaMirror.Update(mirror.ToOps()); err != nil {
		t.Fatal(err)
	}

	for _, k := range []string{"A", "B", "C"} {
		dv, dok, _ := direct.Get(k)
		mv, mok, _ := viaMirror.Get(k)
		if dok != mok || string(dv) != string(mv) {
			t.Fatalf("key %s: direct=(%q,%v) mirror=(%q,%v)", k, dv, dok, mv, mok)
		}
	}
}

func TestMirrorReadsThroughUntilWritten(t *testing.T) {
	parent := NewRamKvStore()
	if err := parent.Update([]WriteOp{Put("A", []byte("parent"))}); err != nil {
		t.Fatal(err)
	}
	mirror := NewRamMirrorStore(parent)

	v, ok, _ := mirror.Get("A")
	if !ok || string(v) != "parent" {
		t.Fatalf("expected delegated read, got %q %v", v, ok)
	}

	if err := mirror.Update([]WriteOp{Put("A", []byte("overlay"))}); err != nil {
		t.Fatal(err)
	}
	v, ok, _ = mirror.Get("A")
	if !ok || string(v) != "overlay" {
		t.Fatalf("expected overlay read, got %q %v", v, ok)
	}

	// Parent must remain untouched until ToOps is flushed.
	pv, _, _ := parent.Get("A")
	if string(pv) != "parent" {
		t.Fatalf("parent mutated before flush: %q", pv)
	}
}

func TestLRUStoreReadAfterWriteConsistency(t *testing.T) {
	parent := NewRamKvStore()
	if err := parent.Update([]WriteOp{Put("A", []byte("1"))}); err != nil {
		t.Fatal(err)
	}
	cached, err := NewLRUStore(parent, 16)
	if err != nil {
		t.Fatal(err)
	}

	if v, ok, _ := cached.Get("A"); !ok || string(v) != "1" {
		t.Fatalf("warm miss: %q %v", v, ok)
	}
	if v, ok, _ := cached.Get("A"); !ok || string(v) != "1" {
		t.Fatalf("warm hit: %q %v", v, ok)
	}
	if err := cached.Update([]WriteOp{Put("A", []byte("2"))}); err != nil {
		t.Fatal(err)
	}
	if v, ok, _ := cached.Get("A"); !ok || string(v) != "2" {
		t.Fatalf("expected eviction to surface fresh value, got %q %v", v, ok)
	}
}
