// Package conflict implements the Pairwise Conflict Engine and the
// Single-File Predicate (§4.5, §4.6): the layer that turns opened
// working trees and a merge-base oracle into the conflict report the
// rest of the tool serializes.
package conflict

import (
	"context"
	"fmt"
	"runtime"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"golang.org/x/sync/errgroup"

	"github.com/clash-sh/clash/pkg/clasherr"
	"github.com/clash-sh/clash/pkg/clashmodel"
	"github.com/clash-sh/clash/pkg/gitrepo"
	"github.com/clash-sh/clash/pkg/mergebase"
	"github.com/clash-sh/clash/pkg/treemerge"
)

// Engine computes the N-choose-2 conflict report across a set of
// already-inspected working trees. All trees must belong to the same
// underlying repository (they share one commit/object graph); this is
// guaranteed by gitrepo.Probe/Inspect, which only ever enumerates the
// worktrees of a single repository.
type Engine struct {
	// MaxParallelPairs caps concurrent pair computation. Zero or
	// negative means GOMAXPROCS, matching §10.3's
	// engine.max_parallel_pairs default.
	MaxParallelPairs int
}

// New returns an Engine with the given parallelism cap.
func New(maxParallelPairs int) *Engine {
	return &Engine{MaxParallelPairs: maxParallelPairs}
}

type pairIndex struct {
	a, b int
}

// Report computes the conflict report for every unordered pair of
// trees. A pair whose two trees share no merge base is reported
// UNRELATED (§4.3); a pair whose tree-merge or merge-base lookup fails
// is reported ERRORED with the failure recorded, rather than aborting
// the whole run (§4.5's per-pair isolation requirement).
func (e *Engine) Report(ctx context.Context, trees []gitrepo.OpenTree) (clashmodel.ConflictReport, error) {
	if len(trees) == 0 {
		return clashmodel.ConflictReport{}, fmt.Errorf("%w: no working trees to compare", clasherr.ErrNoCommits)
	}

	oracle := mergebase.New(trees[0].Repo)

	indices := buildPairs(len(trees))
	results := make([]clashmodel.ConflictPair, len(indices))

	g, ctx := errgroup.WithContext(ctx)
	limit := e.MaxParallelPairs
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(limit)

	for idx, pi := range indices {
		idx, pi := idx, pi
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[idx] = e.computePair(oracle, trees[pi.a], trees[pi.b])
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return clashmodel.ConflictReport{}, err
	}

	return clashmodel.ConflictReport{
		Worktrees: gitrepo.WorktreeSet(trees),
		Pairs:     results,
	}, nil
}

func buildPairs(n int) []pairIndex {
	var pairs []pairIndex
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairs = append(pairs, pairIndex{a: i, b: j})
		}
	}
	return pairs
}

// computePair never returns an error itself: any failure is captured
// in the resulting ConflictPair's Status/Err fields so one bad pair
// cannot sink the whole report.
//
// left/right arrive in WorkingTreeSet position order (primary tree
// first, then linked trees sorted by id), which is not necessarily
// the pair's canonical orientation — §3 requires wt_a_id < wt_b_id
// lexicographically, and the primary tree's id ("main") can sort
// after a linked worktree's. Canonicalize before anything else so
// every downstream field (WTAID/WTBID, the merge labels, the
// base/current/other tree roles) is consistent with that invariant.
func (e *Engine) computePair(oracle *mergebase.Oracle, left, right gitrepo.OpenTree) clashmodel.ConflictPair {
	if left.Model.ID > right.Model.ID {
		left, right = right, left
	}

	pair := clashmodel.ConflictPair{
		WTAID: left.Model.ID,
		WTBID: right.Model.ID,
	}

	base, found, err := oracle.FindMergeBase(left.Head, right.Head)
	if err != nil {
		pair.Status = clashmodel.PairErrored
		pair.Err = &clasherr.PairError{WTAID: pair.WTAID, WTBID: pair.WTBID, Kind: clasherr.ErrMergeFailure, Err: err}
		return pair
	}
	if !found {
		pair.Status = clashmodel.PairUnrelated
		return pair
	}
	pair.BaseCommit = base.String()

	baseTree, err := treeAt(left, base)
	if err != nil {
		pair.Status = clashmodel.PairErrored
		pair.Err = &clasherr.PairError{WTAID: pair.WTAID, WTBID: pair.WTBID, Kind: clasherr.ErrObjectMissing, Err: err}
		return pair
	}
	currentTree, err := treeAt(left, left.Head)
	if err != nil {
		pair.Status = clashmodel.PairErrored
		pair.Err = &clasherr.PairError{WTAID: pair.WTAID, WTBID: pair.WTBID, Kind: clasherr.ErrObjectMissing, Err: err}
		return pair
	}
	otherTree, err := treeAt(right, right.Head)
	if err != nil {
		pair.Status = clashmodel.PairErrored
		pair.Err = &clasherr.PairError{WTAID: pair.WTAID, WTBID: pair.WTBID, Kind: clasherr.ErrObjectMissing, Err: err}
		return pair
	}

	conflicts, err := treemerge.Merge(left.Repo, baseTree, currentTree, otherTree, treemerge.Labels{
		Ancestor: shortHash(base.String()),
		Current:  left.Model.Branch,
		Other:    right.Model.Branch,
	})
	if err != nil {
		pair.Status = clashmodel.PairErrored
		pair.Err = &clasherr.PairError{WTAID: pair.WTAID, WTBID: pair.WTBID, Kind: clasherr.ErrMergeFailure, Err: err}
		return pair
	}

	pair.ConflictingPaths = conflicts
	if len(conflicts) > 0 {
		pair.Status = clashmodel.PairConflict
	} else {
		pair.Status = clashmodel.PairClean
	}
	return pair
}

func treeAt(tree gitrepo.OpenTree, commit plumbing.Hash) (*object.Tree, error) {
	c, err := tree.Repo.CommitObject(commit)
	if err != nil {
		return nil, fmt.Errorf("resolve commit %s in worktree %q: %w", commit, tree.Model.ID, err)
	}
	t, err := c.Tree()
	if err != nil {
		return nil, fmt.Errorf("resolve tree for commit %s in worktree %q: %w", commit, tree.Model.ID, err)
	}
	return t, nil
}

func shortHash(full string) string {
	if len(full) <= 7 {
		return full
	}
	return full[:7]
}
