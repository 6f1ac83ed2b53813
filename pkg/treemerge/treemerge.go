// Package treemerge is the Three-Way Tree Merger (§4.4): given a base,
// current, and other tree, it reports every repository-relative path a
// three-way merge cannot resolve automatically. It wraps pkg/diff3 as
// its reference textual-merge implementation and layers go-git's tree
// walking on top to cover the non-textual conflict classes (add/add,
// modify/delete, rename/rename, mode, type) the teacher's own merge.go
// (pkg/repo/merge.go's big per-path switch) enumerates for its own
// object format.
package treemerge

import (
	"fmt"
	"io"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/clash-sh/clash/pkg/diff3"
)

// Labels names the three sides of a merge for diff3's conflict markers.
type Labels struct {
	Ancestor, Current, Other string
}

type entry struct {
	hash plumbing.Hash
	mode filemode.FileMode
}

// Merge returns the sorted, deduplicated set of paths that conflict
// when merging baseTree into currentTree and otherTree. Paths are
// always reported with forward slashes, matching go-git's own tree
// path convention.
func Merge(repo *git.Repository, baseTree, currentTree, otherTree *object.Tree, labels Labels) ([]string, error) {
	baseFiles, err := flatten(baseTree)
	if err != nil {
		return nil, fmt.Errorf("flatten base tree: %w", err)
	}
	currentFiles, err := flatten(currentTree)
	if err != nil {
		return nil, fmt.Errorf("flatten current tree: %w", err)
	}
	otherFiles, err := flatten(otherTree)
	if err != nil {
		return nil, fmt.Errorf("flatten other tree: %w", err)
	}

	conflicts := make(map[string]struct{})

	for _, path := range allPaths(baseFiles, currentFiles, otherFiles) {
		base, inBase := baseFiles[path]
		cur, inCurrent := currentFiles[path]
		other, inOther := otherFiles[path]

		switch {
		case inBase && inCurrent && inOther:
			conflicted, err := mergeThreeWay(repo, base, cur, other, labels)
			if err != nil {
				return nil, fmt.Errorf("merge %q: %w", path, err)
			}
			if conflicted {
				conflicts[path] = struct{}{}
			}

		case !inBase && inCurrent && inOther:
			// Add/add: conflict only if the introduced content differs.
			if cur.hash != other.hash {
				conflicts[path] = struct{}{}
			}

		case inBase && inCurrent && !inOther:
			// Deleted by other; conflict if current actually modified it.
			if cur.hash != base.hash {
				conflicts[path] = struct{}{}
			}

		case inBase && !inCurrent && inOther:
			// Deleted by current; conflict if other actually modified it.
			if other.hash != base.hash {
				conflicts[path] = struct{}{}
			}

			// Add-only-on-one-side and both-deleted are always clean:
			// no entry is added for them.
		}
	}

	for _, p := range detectRenameRenameConflicts(baseFiles, currentFiles, otherFiles) {
		conflicts[p] = struct{}{}
	}

	paths := make([]string, 0, len(conflicts))
	for p := range conflicts {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

// mergeThreeWay classifies a path present on all three sides. When the
// two sides agree on content, or only one side changed it, only the
// mode is checked. When both changed it, a type divergence is a
// conflict; otherwise content is merged textually via diff3 (or treated
// as an unconditional conflict if any of the three blobs is binary),
// and a clean textual merge is finally checked for a mode conflict.
func mergeThreeWay(repo *git.Repository, base, cur, other entry, labels Labels) (bool, error) {
	if cur.hash == other.hash {
		return modeConflict(base.mode, cur.mode, other.mode), nil
	}
	if cur.hash == base.hash {
		return modeConflict(base.mode, cur.mode, other.mode), nil
	}
	if other.hash == base.hash {
		return modeConflict(base.mode, cur.mode, other.mode), nil
	}

	// Both sides changed content.
	if typeConflict(cur.mode, other.mode) {
		return true, nil
	}

	baseData, err := blobData(repo, base.hash)
	if err != nil {
		return false, err
	}
	curData, err := blobData(repo, cur.hash)
	if err != nil {
		return false, err
	}
	otherData, err := blobData(repo, other.hash)
	if err != nil {
		return false, err
	}

	if isBinary(baseData) || isBinary(curData) || isBinary(otherData) {
		// Binary files with divergent content are always a conflict (§4.4).
		return true, nil
	}

	result := diff3.Merge(baseData, curData, otherData, diff3.Labels{
		Ancestor: labels.Ancestor,
		Current:  labels.Current,
		Other:    labels.Other,
	})
	if result.HasConflicts {
		return true, nil
	}
	return modeConflict(base.mode, cur.mode, other.mode), nil
}

// modeConflict reports a diverging executable bit: a conflict only
// when both sides changed the mode away from base, to two different
// values. A mode change on only one side is taken cleanly, the same
// as a content change on only one side. Divergence between different
// kinds (file vs symlink vs submodule) is a type conflict, handled
// separately by typeConflict.
func modeConflict(base, cur, other filemode.FileMode) bool {
	if !isFileMode(cur) || !isFileMode(other) {
		return false
	}
	return cur != other && cur != base && other != base
}

func isFileMode(m filemode.FileMode) bool {
	return m == filemode.Regular || m == filemode.Executable
}

func typeConflict(a, b filemode.FileMode) bool {
	return kindOf(a) != kindOf(b)
}

func kindOf(m filemode.FileMode) string {
	switch m {
	case filemode.Regular, filemode.Executable:
		return "file"
	case filemode.Symlink:
		return "symlink"
	case filemode.Submodule:
		return "submodule"
	default:
		return "other"
	}
}

// isBinary sniffs for a NUL byte in the first 8000 bytes, the same
// heuristic git itself (and go-git's internal diff package) uses to
// decide whether a blob is text.
func isBinary(data []byte) bool {
	n := len(data)
	if n > 8000 {
		n = 8000
	}
	for i := 0; i < n; i++ {
		if data[i] == 0 {
			return true
		}
	}
	return false
}

func blobData(repo *git.Repository, h plumbing.Hash) ([]byte, error) {
	if h.IsZero() {
		return nil, nil
	}
	blob, err := repo.BlobObject(h)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", h, err)
	}
	r, err := blob.Reader()
	if err != nil {
		return nil, fmt.Errorf("open blob %s: %w", h, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read blob %s contents: %w", h, err)
	}
	return data, nil
}

// flatten walks tree recursively and returns a flat path->entry map,
// skipping directory entries. A nil tree (no merge base) flattens to
// an empty map.
func flatten(tree *object.Tree) (map[string]entry, error) {
	entries := make(map[string]entry)
	if tree == nil {
		return entries, nil
	}

	walker := object.NewTreeWalker(tree, true, nil)
	defer walker.Close()

	for {
		name, te, err := walker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if te.Mode == filemode.Dir {
			continue
		}
		entries[name] = entry{hash: te.Hash, mode: te.Mode}
	}
	return entries, nil
}

func allPaths(maps ...map[string]entry) []string {
	seen := make(map[string]struct{})
	for _, m := range maps {
		for p := range m {
			seen[p] = struct{}{}
		}
	}
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

type renameCandidate struct {
	from, to string
}

// detectRenames pairs a deletion in base with an addition in side when
// exactly one deletion and exactly one addition share the same blob
// content verbatim —
// the same exact-content heuristic the teacher's status.go uses for its
// own rename detection (renameMatchKey/pairRenameCandidates), adapted
// from working-tree status to tree-vs-tree comparison.
func detectRenames(base, side map[string]entry) []renameCandidate {
	deletions := make(map[plumbing.Hash][]string)
	for p, e := range base {
		if _, ok := side[p]; !ok {
			deletions[e.hash] = append(deletions[e.hash], p)
		}
	}

	additions := make(map[plumbing.Hash]int)
	for p, e := range side {
		if _, ok := base[p]; !ok {
			additions[e.hash]++
		}
	}

	var candidates []renameCandidate
	for p, e := range side {
		if _, ok := base[p]; ok {
			continue
		}
		srcs, ok := deletions[e.hash]
		if !ok || len(srcs) != 1 || additions[e.hash] != 1 {
			continue
		}
		candidates = append(candidates, renameCandidate{from: srcs[0], to: p})
	}
	return candidates
}

// detectRenameRenameConflicts reports the destination paths of the two
// rename/rename conflict shapes in §4.4: the same source renamed to
// divergent destinations on each side, or two different sources renamed
// to the same destination.
func detectRenameRenameConflicts(base, current, other map[string]entry) []string {
	currentRenames := detectRenames(base, current)
	otherRenames := detectRenames(base, other)

	currentBySrc := make(map[string]string, len(currentRenames))
	for _, r := range currentRenames {
		currentBySrc[r.from] = r.to
	}
	otherBySrc := make(map[string]string, len(otherRenames))
	for _, r := range otherRenames {
		otherBySrc[r.from] = r.to
	}

	conflictSet := make(map[string]struct{})

	for src, toCurrent := range currentBySrc {
		if toOther, ok := otherBySrc[src]; ok && toOther != toCurrent {
			conflictSet[toCurrent] = struct{}{}
			conflictSet[toOther] = struct{}{}
		}
	}

	destCurrent := make(map[string]string, len(currentRenames))
	for _, r := range currentRenames {
		destCurrent[r.to] = r.from
	}
	for _, r := range otherRenames {
		if fromCurrent, ok := destCurrent[r.to]; ok && fromCurrent != r.from {
			conflictSet[r.to] = struct{}{}
		}
	}

	paths := make([]string, 0, len(conflictSet))
	for p := range conflictSet {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
