// Package clashio is the output-sink layer (§9): it defines the
// Sink capability interface and the two required variants, a JSON
// writer producing the stable wire schemas from §6 and a human writer
// producing decorated text in the teacher's status-command style
// (cmd_status.go's plain fmt.Fprintf section headers, no color
// library — this CLI's "decorated text" follows that same convention
// rather than reaching for an ANSI/terminal-styling dependency the
// teacher itself never uses for its own text output).
package clashio

import (
	"encoding/json"
	"io"
	"sort"

	"github.com/clash-sh/clash/pkg/clashmodel"
)

// Sink is the polymorphic output abstraction §9 calls for: a capability
// set over emitting a full report and a single-file report.
type Sink interface {
	EmitReport(w io.Writer, report clashmodel.ConflictReport) error
	EmitSingleFileReport(w io.Writer, report clashmodel.SingleFileReport) error
}

// wireWorktree, wireConflict, and wireConflictReport implement the
// ConflictReport JSON schema from §6 byte-for-byte, including field
// names and the field set (no internal status like ERRORED leaks into
// the wire form).
type wireWorktree struct {
	ID     string `json:"id"`
	Path   string `json:"path"`
	Branch string `json:"branch"`
	Status string `json:"status"`
}

type wireConflict struct {
	WT1ID            string   `json:"wt1_id"`
	WT2ID            string   `json:"wt2_id"`
	ConflictingFiles []string `json:"conflicting_files"`
}

type wireConflictReport struct {
	Worktrees []wireWorktree `json:"worktrees"`
	Conflicts []wireConflict `json:"conflicts"`
}

type wireFileConflict struct {
	Worktree         string `json:"worktree"`
	Branch           string `json:"branch"`
	HasMergeConflict bool   `json:"has_merge_conflict"`
	HasActiveChanges bool   `json:"has_active_changes"`
}

type wireSingleFileReport struct {
	File            string             `json:"file"`
	CurrentWorktree string             `json:"current_worktree"`
	CurrentBranch   string             `json:"current_branch"`
	Conflicts       []wireFileConflict `json:"conflicts"`
}

type jsonSink struct{}

// JSON returns the Sink that emits the §6 wire schemas.
func JSON() Sink { return jsonSink{} }

func (jsonSink) EmitReport(w io.Writer, report clashmodel.ConflictReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(toWireReport(report))
}

func (jsonSink) EmitSingleFileReport(w io.Writer, report clashmodel.SingleFileReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(toWireSingleFileReport(report))
}

// toWireReport drops UNRELATED, clean, and ERRORED pairs: §6 specifies
// that only pairs with non-empty conflicting_files appear on the wire.
func toWireReport(report clashmodel.ConflictReport) wireConflictReport {
	wire := wireConflictReport{
		Worktrees: make([]wireWorktree, len(report.Worktrees)),
		Conflicts: []wireConflict{},
	}
	for i, wt := range report.Worktrees {
		wire.Worktrees[i] = wireWorktree{ID: wt.ID, Path: wt.Path, Branch: wt.Branch, Status: wt.Status}
	}

	for _, p := range report.Pairs {
		if p.Status != clashmodel.PairConflict || len(p.ConflictingPaths) == 0 {
			continue
		}
		files := append([]string(nil), p.ConflictingPaths...)
		sort.Strings(files)
		wire.Conflicts = append(wire.Conflicts, wireConflict{
			WT1ID:            p.WTAID,
			WT2ID:            p.WTBID,
			ConflictingFiles: files,
		})
	}
	sort.Slice(wire.Conflicts, func(i, j int) bool {
		a, b := wire.Conflicts[i], wire.Conflicts[j]
		if a.WT1ID != b.WT1ID {
			return a.WT1ID < b.WT1ID
		}
		return a.WT2ID < b.WT2ID
	})
	return wire
}

func toWireSingleFileReport(report clashmodel.SingleFileReport) wireSingleFileReport {
	wire := wireSingleFileReport{
		File:            report.File,
		CurrentWorktree: report.CurrentWorktree,
		CurrentBranch:   report.CurrentBranch,
	}
	for _, c := range report.Conflicts {
		wire.Conflicts = append(wire.Conflicts, wireFileConflict{
			Worktree:         c.Worktree,
			Branch:           c.Branch,
			HasMergeConflict: c.HasMergeConflict,
			HasActiveChanges: c.HasActiveChanges,
		})
	}
	return wire
}
