package gitrepo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/clash-sh/clash/pkg/clashmodel"
)

func noWarn(string, ...any) {}

func initRepoWithCommit(t *testing.T, dir string) *git.Repository {
	t.Helper()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("one\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}
	if _, err := wt.Add("a.txt"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	sig := &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Unix(0, 0)}
	if _, err := wt.Commit("initial", &git.CommitOptions{Author: sig}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return repo
}

func TestProbe_FindsMainWorktree(t *testing.T) {
	dir := t.TempDir()
	initRepoWithCommit(t, dir)

	handles, err := Probe(dir, noWarn)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if len(handles) != 1 {
		t.Fatalf("expected exactly one handle, got %d", len(handles))
	}
	if handles[0].ID != clashmodel.MainWorktreeID {
		t.Fatalf("expected main worktree id, got %q", handles[0].ID)
	}
	abs, _ := filepath.Abs(dir)
	if filepath.Clean(handles[0].Path) != filepath.Clean(abs) {
		t.Fatalf("expected path %q, got %q", abs, handles[0].Path)
	}
}

func TestProbe_FromNestedSubdirectory(t *testing.T) {
	dir := t.TempDir()
	initRepoWithCommit(t, dir)

	sub := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	handles, err := Probe(sub, noWarn)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if len(handles) != 1 {
		t.Fatalf("expected one handle, got %d", len(handles))
	}
}

func TestProbe_NotARepositoryErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Probe(dir, noWarn); err == nil {
		t.Fatal("expected an error when no .git is found")
	}
}

func TestProbe_FindsLinkedWorktree(t *testing.T) {
	dir := t.TempDir()
	initRepoWithCommit(t, dir)

	linkedRoot := filepath.Join(dir, "linked-feature")
	if err := os.MkdirAll(linkedRoot, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	adminDir := filepath.Join(dir, ".git", "worktrees", "linked-feature")
	if err := os.MkdirAll(adminDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	gitdirContents := filepath.Join(linkedRoot, ".git") + "\n"
	if err := os.WriteFile(filepath.Join(adminDir, "gitdir"), []byte(gitdirContents), 0o644); err != nil {
		t.Fatalf("write gitdir: %v", err)
	}

	handles, err := Probe(dir, noWarn)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if len(handles) != 2 {
		t.Fatalf("expected main plus linked worktree, got %d handles", len(handles))
	}
	if handles[1].ID != "linked-feature" {
		t.Fatalf("expected linked worktree id %q, got %q", "linked-feature", handles[1].ID)
	}
}

func TestProbe_SkipsStaleLinkedWorktree(t *testing.T) {
	dir := t.TempDir()
	initRepoWithCommit(t, dir)

	adminDir := filepath.Join(dir, ".git", "worktrees", "gone")
	if err := os.MkdirAll(adminDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	missing := filepath.Join(dir, "never-existed")
	gitdirContents := filepath.Join(missing, ".git") + "\n"
	if err := os.WriteFile(filepath.Join(adminDir, "gitdir"), []byte(gitdirContents), 0o644); err != nil {
		t.Fatalf("write gitdir: %v", err)
	}

	var warnings []string
	warn := func(format string, args ...any) { warnings = append(warnings, format) }

	handles, err := Probe(dir, warn)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if len(handles) != 1 {
		t.Fatalf("expected the stale linked worktree to be skipped, got %d handles", len(handles))
	}
	if len(warnings) == 0 {
		t.Fatal("expected a warning about the stale worktree")
	}
}

func TestInspect_ResolvesCleanStatus(t *testing.T) {
	dir := t.TempDir()
	initRepoWithCommit(t, dir)

	trees := Inspect([]Handle{{ID: clashmodel.MainWorktreeID, Path: dir}}, noWarn)
	if len(trees) != 1 {
		t.Fatalf("expected one open tree, got %d", len(trees))
	}
	if trees[0].Model.Status != "clean" {
		t.Fatalf("expected clean status, got %q", trees[0].Model.Status)
	}
	if trees[0].Model.Branch == clashmodel.DetachedBranch {
		t.Fatal("expected a named branch, got detached")
	}
}

func TestInspect_ReportsDirtyStatus(t *testing.T) {
	dir := t.TempDir()
	initRepoWithCommit(t, dir)
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("changed\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	trees := Inspect([]Handle{{ID: clashmodel.MainWorktreeID, Path: dir}}, noWarn)
	if len(trees) != 1 {
		t.Fatalf("expected one open tree, got %d", len(trees))
	}
	if trees[0].Model.Status != "dirty" {
		t.Fatalf("expected dirty status, got %q", trees[0].Model.Status)
	}
}

func TestInspect_SkipsUnresolvableHead(t *testing.T) {
	dir := t.TempDir()
	if _, err := git.PlainInit(dir, false); err != nil {
		t.Fatalf("PlainInit: %v", err)
	}

	var warnings []string
	warn := func(format string, args ...any) { warnings = append(warnings, format) }

	trees := Inspect([]Handle{{ID: clashmodel.MainWorktreeID, Path: dir}}, warn)
	if len(trees) != 0 {
		t.Fatalf("expected no open trees for a repository with no commits, got %d", len(trees))
	}
	if len(warnings) == 0 {
		t.Fatal("expected a warning about the unresolvable head")
	}
}

func TestInspect_SortsMainFirstThenLexicographic(t *testing.T) {
	mainDir := t.TempDir()
	initRepoWithCommit(t, mainDir)

	alphaDir := t.TempDir()
	initRepoWithCommit(t, alphaDir)

	zetaDir := t.TempDir()
	initRepoWithCommit(t, zetaDir)

	trees := Inspect([]Handle{
		{ID: "zeta", Path: zetaDir},
		{ID: clashmodel.MainWorktreeID, Path: mainDir},
		{ID: "alpha", Path: alphaDir},
	}, noWarn)

	if len(trees) != 3 {
		t.Fatalf("expected three open trees, got %d", len(trees))
	}
	got := []string{trees[0].Model.ID, trees[1].Model.ID, trees[2].Model.ID}
	want := []string{clashmodel.MainWorktreeID, "alpha", "zeta"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestLocateContaining_MatchesNearestAncestor(t *testing.T) {
	root := t.TempDir()
	initRepoWithCommit(t, root)
	trees := Inspect([]Handle{{ID: clashmodel.MainWorktreeID, Path: root}}, noWarn)
	if len(trees) != 1 {
		t.Fatalf("expected one tree, got %d", len(trees))
	}

	nested := filepath.Join(root, "src", "pkg")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	got, ok := LocateContaining(trees, nested)
	if !ok {
		t.Fatal("expected to locate the containing worktree")
	}
	if got.Model.ID != clashmodel.MainWorktreeID {
		t.Fatalf("expected main worktree, got %q", got.Model.ID)
	}
}

func TestLocateContaining_NoMatch(t *testing.T) {
	root := t.TempDir()
	initRepoWithCommit(t, root)
	trees := Inspect([]Handle{{ID: clashmodel.MainWorktreeID, Path: root}}, noWarn)

	elsewhere := t.TempDir()
	if _, ok := LocateContaining(trees, elsewhere); ok {
		t.Fatal("expected no match for an unrelated directory")
	}
}

func TestWorktreeSet_PreservesOrder(t *testing.T) {
	root := t.TempDir()
	initRepoWithCommit(t, root)
	trees := Inspect([]Handle{{ID: clashmodel.MainWorktreeID, Path: root}}, noWarn)

	set := WorktreeSet(trees)
	if len(set) != 1 || set[0].ID != clashmodel.MainWorktreeID {
		t.Fatalf("unexpected worktree set: %+v", set)
	}
}
