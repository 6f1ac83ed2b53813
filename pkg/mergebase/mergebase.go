// Package mergebase is the Merge-Base Oracle: it finds the best common
// ancestor of two commits in a shared object database. The algorithm —
// generation-number pruning with a bidirectional max-heap BFS and a
// deterministic lexicographic tie-break — is ported from the teacher's
// pkg/repo/merge.go (FindMergeBase, findMergeBaseWithPruning), retargeted
// from its own object store onto go-git's plumbing.Hash/object.Commit so
// it walks a real Git commit graph.
package mergebase

import (
	"container/heap"
	"fmt"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	maxBFSSteps = 1_000_000
	maxBFSDepth = 1_000_000
)

// Oracle computes and caches merge bases over one repository's object
// database. An Oracle is safe for concurrent use; the Pairwise Conflict
// Engine shares a single Oracle across all of its pair computations so
// the commit/generation caches amortize across pairs.
type Oracle struct {
	repo *git.Repository

	mu          sync.RWMutex
	commits     map[plumbing.Hash]*object.Commit
	generations map[plumbing.Hash]uint64
	bases       map[pairKey]pairResult
}

// New returns an Oracle reading from repo's object database.
func New(repo *git.Repository) *Oracle {
	return &Oracle{
		repo:        repo,
		commits:     make(map[plumbing.Hash]*object.Commit),
		generations: make(map[plumbing.Hash]uint64),
		bases:       make(map[pairKey]pairResult),
	}
}

type pairKey struct{ left, right plumbing.Hash }

type pairResult struct {
	base  plumbing.Hash
	found bool
}

func canonicalKey(a, b plumbing.Hash) pairKey {
	if a.String() <= b.String() {
		return pairKey{a, b}
	}
	return pairKey{b, a}
}

// FindMergeBase returns the best common ancestor of a and b. found is
// false when the two commits share no ancestor (§4.3's UNRELATED case).
func (o *Oracle) FindMergeBase(a, b plumbing.Hash) (base plumbing.Hash, found bool, err error) {
	if a.IsZero() || b.IsZero() {
		return plumbing.ZeroHash, false, nil
	}
	if a == b {
		return a, true, nil
	}

	key := canonicalKey(a, b)
	if cached, ok := o.loadBase(key); ok {
		return cached.base, cached.found, nil
	}

	genA, err := o.generation(a)
	if err != nil {
		return plumbing.ZeroHash, false, err
	}
	genB, err := o.generation(b)
	if err != nil {
		return plumbing.ZeroHash, false, err
	}

	// Fast path: one side already contains the other. Try the
	// lower-generation side first since it is less likely to be the
	// ancestor of the higher-generation side's ancestor chain.
	lo, hi, loGen, hiGen := a, b, genA, genB
	if genA > genB {
		lo, hi, loGen, hiGen = b, a, genB, genA
	}

	if isAncestor, err := o.isAncestor(lo, hi, loGen, hiGen); err != nil {
		return plumbing.ZeroHash, false, err
	} else if isAncestor {
		o.storeBase(key, lo, true)
		return lo, true, nil
	}
	if isAncestor, err := o.isAncestor(hi, lo, hiGen, loGen); err != nil {
		return plumbing.ZeroHash, false, err
	} else if isAncestor {
		o.storeBase(key, hi, true)
		return hi, true, nil
	}

	base, found, err = o.findWithPruning(a, b, genA, genB)
	if err != nil {
		return plumbing.ZeroHash, false, err
	}
	o.storeBase(key, base, found)
	return base, found, nil
}

func (o *Oracle) loadBase(key pairKey) (pairResult, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	r, ok := o.bases[key]
	return r, ok
}

func (o *Oracle) storeBase(key pairKey, base plumbing.Hash, found bool) {
	o.mu.Lock()
	o.bases[key] = pairResult{base: base, found: found}
	o.mu.Unlock()
}

func (o *Oracle) commit(h plumbing.Hash) (*object.Commit, error) {
	o.mu.RLock()
	c, ok := o.commits[h]
	o.mu.RUnlock()
	if ok {
		return c, nil
	}

	c, err := o.repo.CommitObject(h)
	if err != nil {
		return nil, fmt.Errorf("merge base: read commit %s: %w", h, err)
	}

	o.mu.Lock()
	if existing, ok := o.commits[h]; ok {
		o.mu.Unlock()
		return existing, nil
	}
	o.commits[h] = c
	o.mu.Unlock()
	return c, nil
}

func (o *Oracle) generation(h plumbing.Hash) (uint64, error) {
	return o.generationRecursive(h, make(map[plumbing.Hash]bool))
}

func (o *Oracle) generationRecursive(h plumbing.Hash, visiting map[plumbing.Hash]bool) (uint64, error) {
	if h.IsZero() {
		return 0, nil
	}

	o.mu.RLock()
	g, ok := o.generations[h]
	o.mu.RUnlock()
	if ok {
		return g, nil
	}

	if visiting[h] {
		return 0, fmt.Errorf("merge base: commit graph cycle detected at %s", h)
	}
	visiting[h] = true
	defer delete(visiting, h)

	c, err := o.commit(h)
	if err != nil {
		return 0, err
	}

	var maxParent uint64
	for _, p := range c.ParentHashes {
		pg, err := o.generationRecursive(p, visiting)
		if err != nil {
			return 0, err
		}
		if pg > maxParent {
			maxParent = pg
		}
	}

	gen := maxParent + 1
	o.mu.Lock()
	o.generations[h] = gen
	o.mu.Unlock()
	return gen, nil
}

type bfsQueueItem struct {
	hash  plumbing.Hash
	depth int
}

// isAncestor reports whether ancestor is reachable from descendant by
// following parent edges, pruned by generation number.
func (o *Oracle) isAncestor(ancestor, descendant plumbing.Hash, ancestorGeneration, descendantGeneration uint64) (bool, error) {
	if ancestor == descendant {
		return true, nil
	}
	if ancestorGeneration > descendantGeneration {
		return false, nil
	}

	visited := map[plumbing.Hash]struct{}{descendant: {}}
	queue := []bfsQueueItem{{hash: descendant, depth: 0}}
	steps := 0

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		steps++
		if steps > maxBFSSteps {
			return false, fmt.Errorf("merge base: traversal exceeded maximum steps (%d)", maxBFSSteps)
		}
		if item.depth > maxBFSDepth {
			return false, fmt.Errorf("merge base: traversal exceeded maximum depth (%d)", maxBFSDepth)
		}

		if item.hash == ancestor {
			return true, nil
		}

		curGeneration, err := o.generation(item.hash)
		if err != nil {
			return false, err
		}
		if curGeneration <= ancestorGeneration {
			continue
		}

		c, err := o.commit(item.hash)
		if err != nil {
			return false, err
		}
		for _, p := range c.ParentHashes {
			if p.IsZero() {
				continue
			}
			if _, seen := visited[p]; seen {
				continue
			}
			parentGeneration, err := o.generation(p)
			if err != nil {
				return false, err
			}
			if parentGeneration < ancestorGeneration {
				continue
			}
			childDepth := item.depth + 1
			if childDepth > maxBFSDepth {
				return false, fmt.Errorf("merge base: traversal exceeded maximum depth (%d)", maxBFSDepth)
			}
			visited[p] = struct{}{}
			queue = append(queue, bfsQueueItem{hash: p, depth: childDepth})
		}
	}

	return false, nil
}

// findWithPruning performs a bidirectional generation-pruned BFS from a
// and b simultaneously, recording the highest-generation hash visited
// from both sides. Ties are broken by lexicographically smaller hash so
// the oracle agrees deterministically with the tree merger on which
// best ancestor among several criss-cross candidates to use (§4.3).
func (o *Oracle) findWithPruning(a, b plumbing.Hash, genA, genB uint64) (plumbing.Hash, bool, error) {
	visitedA := map[plumbing.Hash]struct{}{a: {}}
	visitedB := map[plumbing.Hash]struct{}{b: {}}
	depthA := map[plumbing.Hash]int{a: 0}
	depthB := map[plumbing.Hash]int{b: 0}

	queueA := maxHeap{{hash: a, generation: genA}}
	queueB := maxHeap{{hash: b, generation: genB}}
	heap.Init(&queueA)
	heap.Init(&queueB)

	var best plumbing.Hash
	var bestGeneration uint64
	found := false
	steps := 0

	for queueA.Len() > 0 || queueB.Len() > 0 {
		if found {
			topA, okA := queueA.Peek()
			topB, okB := queueB.Peek()
			if (!okA || topA.generation < bestGeneration) && (!okB || topB.generation < bestGeneration) {
				break
			}
		}

		traverseA := chooseFrontier(queueA, queueB)

		var item heapItem
		if traverseA {
			item = heap.Pop(&queueA).(heapItem)
		} else {
			item = heap.Pop(&queueB).(heapItem)
		}

		steps++
		if steps > maxBFSSteps {
			return plumbing.ZeroHash, false, fmt.Errorf("merge base: traversal exceeded maximum steps (%d)", maxBFSSteps)
		}
		if found && item.generation < bestGeneration {
			continue
		}

		itemDepth := depthA[item.hash]
		if !traverseA {
			itemDepth = depthB[item.hash]
		}
		if itemDepth > maxBFSDepth {
			return plumbing.ZeroHash, false, fmt.Errorf("merge base: traversal exceeded maximum depth (%d)", maxBFSDepth)
		}

		if traverseA {
			if _, seen := visitedB[item.hash]; seen {
				best, bestGeneration, found = chooseBetter(best, bestGeneration, found, item.hash, item.generation)
			}
		} else if _, seen := visitedA[item.hash]; seen {
			best, bestGeneration, found = chooseBetter(best, bestGeneration, found, item.hash, item.generation)
		}

		c, err := o.commit(item.hash)
		if err != nil {
			return plumbing.ZeroHash, false, err
		}

		for _, p := range c.ParentHashes {
			if p.IsZero() {
				continue
			}
			parentGeneration, err := o.generation(p)
			if err != nil {
				return plumbing.ZeroHash, false, err
			}
			if found && parentGeneration < bestGeneration {
				continue
			}

			childDepth := itemDepth + 1
			if childDepth > maxBFSDepth {
				return plumbing.ZeroHash, false, fmt.Errorf("merge base: traversal exceeded maximum depth (%d)", maxBFSDepth)
			}

			if traverseA {
				if _, seen := visitedA[p]; seen {
					continue
				}
				visitedA[p] = struct{}{}
				depthA[p] = childDepth
				heap.Push(&queueA, heapItem{hash: p, generation: parentGeneration})
				if _, seen := visitedB[p]; seen {
					best, bestGeneration, found = chooseBetter(best, bestGeneration, found, p, parentGeneration)
				}
			} else {
				if _, seen := visitedB[p]; seen {
					continue
				}
				visitedB[p] = struct{}{}
				depthB[p] = childDepth
				heap.Push(&queueB, heapItem{hash: p, generation: parentGeneration})
				if _, seen := visitedA[p]; seen {
					best, bestGeneration, found = chooseBetter(best, bestGeneration, found, p, parentGeneration)
				}
			}
		}
	}

	if !found {
		return plumbing.ZeroHash, false, nil
	}
	return best, true, nil
}

func chooseFrontier(queueA, queueB maxHeap) bool {
	switch {
	case queueA.Len() == 0:
		return false
	case queueB.Len() == 0:
		return true
	default:
		topA, topB := queueA[0], queueB[0]
		if topA.generation != topB.generation {
			return topA.generation > topB.generation
		}
		return topA.hash.String() <= topB.hash.String()
	}
}

func chooseBetter(best plumbing.Hash, bestGeneration uint64, found bool, candidate plumbing.Hash, candidateGeneration uint64) (plumbing.Hash, uint64, bool) {
	if !found || candidateGeneration > bestGeneration {
		return candidate, candidateGeneration, true
	}
	if candidateGeneration < bestGeneration {
		return best, bestGeneration, true
	}
	if candidate.String() < best.String() {
		return candidate, candidateGeneration, true
	}
	return best, bestGeneration, true
}
