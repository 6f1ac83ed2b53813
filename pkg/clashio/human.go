package clashio

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/clash-sh/clash/pkg/clashmodel"
)

// branchColumnWidth is the fixed width of the branch column in the
// worktree table, matching the %-24s field it is printed into.
const branchColumnWidth = 24

type humanSink struct{}

// Human returns the Sink that emits decorated plain text, in the style
// of the teacher's own status command: lowercase section headers, a
// one-character prefix per entry, no color library.
func Human() Sink { return humanSink{} }

func (humanSink) EmitReport(w io.Writer, report clashmodel.ConflictReport) error {
	fmt.Fprintf(w, "worktrees: %d\n", len(report.Worktrees))
	for _, wt := range report.Worktrees {
		marker := " "
		if wt.Status == "dirty" {
			marker = "~"
		}
		fmt.Fprintf(w, "  %s %-16s %-24s %s\n", marker, wt.ID, truncateBranch(wt.Branch, branchColumnWidth), wt.Path)
	}

	conflicting := make([]clashmodel.ConflictPair, 0, len(report.Pairs))
	var unrelated, errored int
	for _, p := range report.Pairs {
		switch p.Status {
		case clashmodel.PairConflict:
			conflicting = append(conflicting, p)
		case clashmodel.PairUnrelated:
			unrelated++
		case clashmodel.PairErrored:
			errored++
		}
	}
	sort.Slice(conflicting, func(i, j int) bool {
		if conflicting[i].WTAID != conflicting[j].WTAID {
			return conflicting[i].WTAID < conflicting[j].WTAID
		}
		return conflicting[i].WTBID < conflicting[j].WTBID
	})

	if len(conflicting) == 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "no conflicts")
	} else {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "conflicts:")
		for _, p := range conflicting {
			fmt.Fprintf(w, "  %s <-> %s\n", p.WTAID, p.WTBID)
			paths := append([]string(nil), p.ConflictingPaths...)
			sort.Strings(paths)
			for _, f := range paths {
				fmt.Fprintf(w, "    ! %s\n", f)
			}
		}
	}

	if errored > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "warning: %d pair(s) could not be merged and were skipped\n", errored)
	}
	_ = unrelated // unrelated pairs are expected and not worth reporting

	return nil
}

// truncateBranch abbreviates a branch name that overflows a table
// column, ported from the original implementation's truncate_branch
// (status.rs): feature/... branches shorten to f/..., other namespaced
// branches fall back to showing their trailing segment, and anything
// else is truncated from the right with an ellipsis.
func truncateBranch(branch string, maxLen int) string {
	if len(branch) <= maxLen {
		return branch
	}
	if maxLen <= 2 {
		return "..."
	}

	if strings.HasPrefix(branch, "feature/") && maxLen > 4 {
		suffix := branch[len("feature/"):]
		abbreviated := "f/" + suffix
		if len(abbreviated) <= maxLen {
			return abbreviated
		}
		suffixMax := maxLen - 3
		if suffixMax > 0 && len(suffix) > suffixMax {
			cut := suffixMax
			if len(suffix)-1 < cut {
				cut = len(suffix) - 1
			}
			return "f/" + suffix[:cut] + "..."
		}
	}

	if strings.Contains(branch, "/") && maxLen > 6 {
		pos := strings.LastIndex(branch, "/")
		suffix := branch[pos+1:]
		if len(suffix) < maxLen-1 {
			return ".../" + suffix
		}
	}

	return branch[:maxLen-3] + "..."
}

func (humanSink) EmitSingleFileReport(w io.Writer, report clashmodel.SingleFileReport) error {
	fmt.Fprintf(w, "%s (from %s on %s)\n", report.File, report.CurrentWorktree, report.CurrentBranch)

	if len(report.Conflicts) == 0 {
		fmt.Fprintln(w, "  clean")
		return nil
	}

	for _, c := range report.Conflicts {
		switch {
		case c.HasMergeConflict && c.HasActiveChanges:
			fmt.Fprintf(w, "  ! %s (%s): merge conflict, active changes\n", c.Worktree, c.Branch)
		case c.HasMergeConflict:
			fmt.Fprintf(w, "  ! %s (%s): merge conflict\n", c.Worktree, c.Branch)
		case c.HasActiveChanges:
			fmt.Fprintf(w, "  ~ %s (%s): active changes\n", c.Worktree, c.Branch)
		}
	}
	return nil
}
