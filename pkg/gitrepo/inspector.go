package gitrepo

import (
	"fmt"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/clash-sh/clash/pkg/clashmodel"
)

// OpenTree is one inspected working tree: the go-git handle used for
// subsequent merge-base and tree-merge calls, plus the resolved model
// record that goes into the report.
type OpenTree struct {
	Model clashmodel.WorkingTree
	Repo  *git.Repository
	Head  plumbing.Hash
}

// Inspect opens each handle and resolves its head commit, branch name
// (or the DETACHED sentinel), and clean/dirty status. A handle whose
// head cannot be resolved is dropped and reported through warn, per
// §4.2's failure semantics; the returned slice reflects only the
// successfully inspected trees, ordered per §3 (primary first, then
// linked trees sorted by ID).
func Inspect(handles []Handle, warn func(string, ...any)) []OpenTree {
	var trees []OpenTree

	for _, h := range handles {
		repo, err := git.PlainOpen(h.Path)
		if err != nil {
			warn("worktree %q: %v, skipping", h.ID, err)
			continue
		}

		headRef, err := repo.Head()
		if err != nil {
			warn("worktree %q: head does not resolve (%v), skipping", h.ID, err)
			continue
		}

		branch := clashmodel.DetachedBranch
		if headRef.Name().IsBranch() {
			branch = headRef.Name().Short()
		}

		status, err := cleanDirtyStatus(repo)
		if err != nil {
			warn("worktree %q: status check failed (%v), reporting dirty", h.ID, err)
			status = "dirty"
		}

		trees = append(trees, OpenTree{
			Model: clashmodel.WorkingTree{
				ID:         h.ID,
				Path:       h.Path,
				Branch:     branch,
				HeadCommit: headRef.Hash().String(),
				Status:     status,
			},
			Repo: repo,
			Head: headRef.Hash(),
		})
	}

	sortTrees(trees)
	return trees
}

func cleanDirtyStatus(repo *git.Repository) (string, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("open worktree: %w", err)
	}
	st, err := wt.Status()
	if err != nil {
		return "", fmt.Errorf("compute status: %w", err)
	}
	if st.IsClean() {
		return "clean", nil
	}
	return "dirty", nil
}

func sortTrees(trees []OpenTree) {
	sort.SliceStable(trees, func(i, j int) bool {
		idI, idJ := trees[i].Model.ID, trees[j].Model.ID
		if idI == clashmodel.MainWorktreeID {
			return idJ != clashmodel.MainWorktreeID
		}
		if idJ == clashmodel.MainWorktreeID {
			return false
		}
		return idI < idJ
	})
}

// WorktreeSet extracts the WorkingTreeSet model from a slice of open
// trees, in their already-normalized order.
func WorktreeSet(trees []OpenTree) clashmodel.WorkingTreeSet {
	set := make(clashmodel.WorkingTreeSet, len(trees))
	for i, t := range trees {
		set[i] = t.Model
	}
	return set
}
