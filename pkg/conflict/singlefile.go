package conflict

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/clash-sh/clash/pkg/clasherr"
	"github.com/clash-sh/clash/pkg/clashmodel"
	"github.com/clash-sh/clash/pkg/gitrepo"
	"github.com/clash-sh/clash/pkg/mergebase"
)

// CheckFile implements the Single-File Predicate (§4.6): for the path
// queried from currentDir, resolved against whichever working tree
// contains currentDir, it reports whether each sibling working tree
// either conflicts with it in a pairwise three-way merge or has
// diverged from it through uncommitted on-disk changes, grounded on
// the original implementation's run_check/check_file_active
// (src/check.rs).
func CheckFile(trees []gitrepo.OpenTree, currentDir, path string) (clashmodel.SingleFileReport, error) {
	current, ok := gitrepo.LocateContaining(trees, currentDir)
	if !ok {
		return clashmodel.SingleFileReport{}, fmt.Errorf("%w: %s is not inside a known working tree", clasherr.ErrNotARepository, currentDir)
	}

	relPath := toRepoRelative(path, current.Model.Path)

	report := clashmodel.SingleFileReport{
		File:            relPath,
		CurrentWorktree: current.Model.ID,
		CurrentBranch:   current.Model.Branch,
	}

	oracle := mergebase.New(current.Repo)
	e := &Engine{}

	for _, other := range trees {
		if other.Model.ID == current.Model.ID {
			continue
		}

		hasMergeConflict := pairConflictsOnPath(e, oracle, current, other, relPath)
		hasActiveChanges := fileHasActiveChanges(other, relPath)

		if hasMergeConflict || hasActiveChanges {
			report.Conflicts = append(report.Conflicts, clashmodel.FileConflict{
				Worktree:         other.Model.ID,
				Branch:           other.Model.Branch,
				HasMergeConflict: hasMergeConflict,
				HasActiveChanges: hasActiveChanges,
			})
		}
	}

	return report, nil
}

// pairConflictsOnPath runs the same per-pair merge the engine runs and
// checks whether the queried path is among its conflicting paths. A
// merge that errors is treated as conflicting: the tool cannot vouch
// for a clean merge it could not actually compute.
func pairConflictsOnPath(e *Engine, oracle *mergebase.Oracle, current, other gitrepo.OpenTree, relPath string) bool {
	pair := e.computePair(oracle, current, other)
	if pair.Status == clashmodel.PairErrored {
		return true
	}
	for _, p := range pair.ConflictingPaths {
		if p == relPath {
			return true
		}
	}
	return false
}

// fileHasActiveChanges compares a sibling's on-disk copy of relPath
// against its own HEAD blob, mirroring check_file_active's four-way
// case split on (present in HEAD, present on disk).
func fileHasActiveChanges(tree gitrepo.OpenTree, relPath string) bool {
	diskPath := filepath.Join(tree.Model.Path, relPath)
	diskData, diskErr := os.ReadFile(diskPath)
	onDisk := diskErr == nil

	headData, inHead := headFileContents(tree, relPath)

	switch {
	case !inHead && !onDisk:
		return false
	case !inHead && onDisk:
		return true
	case inHead && !onDisk:
		return true
	default:
		return !bytes.Equal(headData, diskData)
	}
}

func headFileContents(tree gitrepo.OpenTree, relPath string) ([]byte, bool) {
	commit, err := tree.Repo.CommitObject(tree.Head)
	if err != nil {
		return nil, false
	}
	t, err := commit.Tree()
	if err != nil {
		return nil, false
	}
	file, err := t.File(relPath)
	if err != nil {
		return nil, false
	}
	contents, err := file.Contents()
	if err != nil {
		return nil, false
	}
	return []byte(contents), true
}

// toRepoRelative mirrors the original's to_repo_relative: relative
// paths are assumed already repo-relative, absolute paths are stripped
// of the worktree root prefix.
func toRepoRelative(path, worktreeRoot string) string {
	if filepath.IsAbs(path) {
		rel, err := filepath.Rel(worktreeRoot, path)
		if err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
		return path
	}
	return filepath.ToSlash(path)
}
