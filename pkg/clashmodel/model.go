// Package clashmodel defines the data model shared by the repository
// probe, the conflict engine, and the output sinks: working trees,
// conflict pairs, and the two report shapes the CLI emits.
package clashmodel

// DetachedBranch is the sentinel branch name reported when a working
// tree's head does not resolve to a branch.
const DetachedBranch = "DETACHED"

// MainWorktreeID is the reserved identifier for the primary working tree.
const MainWorktreeID = "main"

// WorkingTree is one checked-out working directory of a repository.
type WorkingTree struct {
	ID         string
	Path       string
	Branch     string
	HeadCommit string
	Status     string // "clean" or "dirty"
}

// WorkingTreeSet is an ordered, deterministic sequence of working trees:
// the primary tree first, then linked trees sorted by ID.
type WorkingTreeSet []WorkingTree

// PairStatus classifies the outcome of comparing two working trees.
type PairStatus int

const (
	// PairClean means the three-way merge produced no conflicting paths.
	PairClean PairStatus = iota
	// PairConflict means at least one path could not be merged automatically.
	PairConflict
	// PairUnrelated means the two heads share no common ancestor.
	PairUnrelated
	// PairErrored means the merger failed for this pair specifically.
	PairErrored
)

// ConflictPair is the outcome of comparing two working trees' head commits.
type ConflictPair struct {
	WTAID            string
	WTBID            string
	BaseCommit       string // empty when Status == PairUnrelated
	ConflictingPaths []string
	Status           PairStatus
	Err              error // set only when Status == PairErrored
}

// ConflictReport is the full result of one engine invocation.
type ConflictReport struct {
	Worktrees WorkingTreeSet
	Pairs     []ConflictPair
}

// FileConflict is one sibling's conflict status for a single queried path.
type FileConflict struct {
	Worktree          string
	Branch            string
	HasMergeConflict  bool
	HasActiveChanges  bool
}

// SingleFileReport is the result of checking one path against every
// sibling working tree.
type SingleFileReport struct {
	File            string
	CurrentWorktree string
	CurrentBranch   string
	Conflicts       []FileConflict
}

// IsConflicted reports whether any sibling shows a merge conflict or
// active changes against File — the condition that drives exit code 2
// for the `check` command.
func (r SingleFileReport) IsConflicted() bool {
	for _, c := range r.Conflicts {
		if c.HasMergeConflict || c.HasActiveChanges {
			return true
		}
	}
	return false
}
