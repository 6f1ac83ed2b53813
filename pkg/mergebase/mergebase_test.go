package mergebase

import (
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
)

func newTestRepo(t *testing.T) (*git.Repository, *memory.Storage) {
	t.Helper()
	storer := memory.NewStorage()
	repo, err := git.Init(storer, nil)
	if err != nil {
		t.Fatalf("git.Init: %v", err)
	}
	return repo, storer
}

func commitWithParents(t *testing.T, storer *memory.Storage, msg string, parents ...plumbing.Hash) plumbing.Hash {
	t.Helper()
	when := time.Unix(0, 0)
	c := &object.Commit{
		Author:       object.Signature{Name: "test", When: when},
		Committer:    object.Signature{Name: "test", When: when},
		Message:      msg,
		TreeHash:     plumbing.ZeroHash,
		ParentHashes: parents,
	}
	obj := storer.NewEncodedObject()
	if err := c.Encode(obj); err != nil {
		t.Fatalf("encode commit %q: %v", msg, err)
	}
	h, err := storer.SetEncodedObject(obj)
	if err != nil {
		t.Fatalf("store commit %q: %v", msg, err)
	}
	return h
}

func TestFindMergeBase_LinearAncestry(t *testing.T) {
	repo, storer := newTestRepo(t)
	c0 := commitWithParents(t, storer, "c0")
	c1 := commitWithParents(t, storer, "c1", c0)
	c2 := commitWithParents(t, storer, "c2", c1)

	o := New(repo)

	base, found, err := o.FindMergeBase(c0, c2)
	if err != nil {
		t.Fatalf("FindMergeBase: %v", err)
	}
	if !found || base != c0 {
		t.Fatalf("expected base=%s found=true, got base=%s found=%v", c0, base, found)
	}
}

func TestFindMergeBase_DivergentBranches(t *testing.T) {
	repo, storer := newTestRepo(t)
	root := commitWithParents(t, storer, "root")
	left := commitWithParents(t, storer, "left", root)
	right := commitWithParents(t, storer, "right", root)

	o := New(repo)
	base, found, err := o.FindMergeBase(left, right)
	if err != nil {
		t.Fatalf("FindMergeBase: %v", err)
	}
	if !found || base != root {
		t.Fatalf("expected base=%s, got base=%s found=%v", root, base, found)
	}

	// Symmetric regardless of argument order.
	base2, found2, err := o.FindMergeBase(right, left)
	if err != nil {
		t.Fatalf("FindMergeBase (reversed): %v", err)
	}
	if !found2 || base2 != base {
		t.Fatalf("merge base should not depend on argument order: got %s vs %s", base2, base)
	}
}

func TestFindMergeBase_SameCommit(t *testing.T) {
	repo, storer := newTestRepo(t)
	c0 := commitWithParents(t, storer, "c0")

	o := New(repo)
	base, found, err := o.FindMergeBase(c0, c0)
	if err != nil {
		t.Fatalf("FindMergeBase: %v", err)
	}
	if !found || base != c0 {
		t.Fatalf("expected base=%s, got base=%s found=%v", c0, base, found)
	}
}

func TestFindMergeBase_Unrelated(t *testing.T) {
	repo, storer := newTestRepo(t)
	a := commitWithParents(t, storer, "a-root")
	b := commitWithParents(t, storer, "b-root")

	o := New(repo)
	_, found, err := o.FindMergeBase(a, b)
	if err != nil {
		t.Fatalf("FindMergeBase: %v", err)
	}
	if found {
		t.Fatal("expected no common ancestor for unrelated histories")
	}
}

// TestFindMergeBase_CrissCross builds a criss-cross history with two
// equally-good merge base candidates and checks that the oracle picks
// one of the two candidates, and that a repeated call returns the same
// one.
func TestFindMergeBase_CrissCross(t *testing.T) {
	repo, storer := newTestRepo(t)
	root := commitWithParents(t, storer, "root")
	a1 := commitWithParents(t, storer, "a1", root)
	b1 := commitWithParents(t, storer, "b1", root)
	// Criss-cross merges: each side merges the other's tip.
	a2 := commitWithParents(t, storer, "a2", a1, b1)
	b2 := commitWithParents(t, storer, "b2", b1, a1)

	o := New(repo)
	base1, found1, err := o.FindMergeBase(a2, b2)
	if err != nil {
		t.Fatalf("FindMergeBase: %v", err)
	}
	if !found1 {
		t.Fatal("expected a common ancestor")
	}
	if base1 != a1 && base1 != b1 {
		t.Fatalf("expected a1 or b1 as the criss-cross merge base, got %s", base1)
	}

	base2, found2, err := o.FindMergeBase(a2, b2)
	if err != nil {
		t.Fatalf("FindMergeBase (repeat): %v", err)
	}
	if !found2 || base2 != base1 {
		t.Fatalf("expected deterministic repeat result %s, got %s", base1, base2)
	}
}

func TestFindMergeBase_CachesAcrossCalls(t *testing.T) {
	repo, storer := newTestRepo(t)
	c0 := commitWithParents(t, storer, "c0")
	c1 := commitWithParents(t, storer, "c1", c0)
	c2 := commitWithParents(t, storer, "c2", c0)

	o := New(repo)
	if _, _, err := o.FindMergeBase(c1, c2); err != nil {
		t.Fatalf("FindMergeBase: %v", err)
	}
	if _, ok := o.loadBase(canonicalKey(c1, c2)); !ok {
		t.Fatal("expected the pair result to be cached")
	}
}
