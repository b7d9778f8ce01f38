package branchsync

import "testing"

func TestOwnerIndex(t *testing.T) {
	ix := newOwnerIndex()

	if _, ok := ix.resolve("o1"); ok {
		t.Fatalf("empty index resolved an id")
	}

	ix.recordAll("branchA", []string{"o1", "o2"})
	if b, ok := ix.resolve("o1"); !ok || b != "branchA" {
		t.Fatalf("resolve(o1) = %q, %v", b, ok)
	}
	if b, ok := ix.resolve("o2"); !ok || b != "branchA" {
		t.Fatalf("resolve(o2) = %q, %v", b, ok)
	}

	// a later fetch from another branch takes ownership (e.g. a transfer)
	ix.recordAll("branchB", []string{"o2"})
	if b, _ := ix.resolve("o2"); b != "branchB" {
		t.Fatalf("resolve(o2) after transfer = %q, want branchB", b)
	}
	if b, _ := ix.resolve("o1"); b != "branchA" {
		t.Fatalf("resolve(o1) = %q, want branchA untouched", b)
	}

	// blank ids never enter the index
	ix.recordAll("branchC", []string{"", "o3"})
	if _, ok := ix.resolve(""); ok {
		t.Fatalf("blank id was recorded")
	}
	if b, _ := ix.resolve("o3"); b != "branchC" {
		t.Fatalf("resolve(o3) = %q", b)
	}

	// nil/empty batches are no-ops
	ix.recordAll("branchD", nil)
}
