// Package gitrepo implements the Repository Probe and Working-Tree
// Inspector (spec §4.1, §4.2) on top of github.com/go-git/go-git/v5,
// the way kailayerhq-kai/ivcs/internal/gitio wraps go-git for read-only
// commit/tree access. The teacher's own object store speaks an
// incompatible on-disk format, so this layer is the one part of the
// teacher's design that is rebuilt rather than ported: everything here
// talks to a real ".git" directory and real "worktrees" administrative
// records.
package gitrepo

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/clash-sh/clash/pkg/clasherr"
	"github.com/clash-sh/clash/pkg/clashmodel"
)

// Handle is one working tree the probe discovered, before the
// inspector has resolved its head/branch/status.
type Handle struct {
	ID   string
	Path string
}

// Probe opens the repository reachable from startPath (walking up
// through ancestor directories, like the teacher's repo.Open) and
// enumerates its primary and linked working trees.
//
// Stale linked-worktree administrative records — the "gitdir" pointer
// exists but the working directory it names is gone — are skipped and
// reported through warn, matching §4.1's non-fatal-skip policy. They
// never abort the probe.
func Probe(startPath string, warn func(format string, args ...any)) ([]Handle, error) {
	gitDir, err := discoverGitDir(startPath)
	if err != nil {
		return nil, err
	}

	commonDir := resolveCommonDir(gitDir)
	mainRoot := filepath.Dir(commonDir)

	handles := []Handle{{ID: clashmodel.MainWorktreeID, Path: mainRoot}}

	adminRoot := filepath.Join(commonDir, "worktrees")
	entries, err := os.ReadDir(adminRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return handles, nil
		}
		return nil, fmt.Errorf("%w: list linked worktrees: %v", clasherr.ErrIoFailure, err)
	}

	var linked []Handle
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		adminDir := filepath.Join(adminRoot, entry.Name())
		wtPath, ok := readLinkedWorktreePath(adminDir)
		if !ok {
			warn("worktree %q: stale administrative record, skipping", entry.Name())
			continue
		}
		info, statErr := os.Stat(wtPath)
		if statErr != nil || !info.IsDir() {
			warn("worktree %q: working directory %q is missing, skipping", entry.Name(), wtPath)
			continue
		}
		linked = append(linked, Handle{ID: filepath.Base(wtPath), Path: wtPath})
	}

	sort.Slice(linked, func(i, j int) bool { return linked[i].ID < linked[j].ID })
	return append(handles, linked...), nil
}

// readLinkedWorktreePath reads a worktree administrative directory's
// "gitdir" file (which names "<worktree>/.git") and returns the
// worktree's root directory.
func readLinkedWorktreePath(adminDir string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(adminDir, "gitdir"))
	if err != nil {
		return "", false
	}
	gitFilePath := strings.TrimSpace(string(data))
	if gitFilePath == "" {
		return "", false
	}
	return filepath.Dir(gitFilePath), true
}

// discoverGitDir walks up from startPath looking for a ".git" entry,
// following the "gitdir: <path>" indirection when it is a file rather
// than a directory (submodules, linked worktrees).
func discoverGitDir(startPath string) (string, error) {
	abs, err := filepath.Abs(startPath)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", startPath, err)
	}

	dir := abs
	for {
		candidate := filepath.Join(dir, ".git")
		if info, statErr := os.Stat(candidate); statErr == nil {
			if info.IsDir() {
				return candidate, nil
			}
			if resolved, ok := followGitFile(candidate); ok {
				return resolved, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w: %s", clasherr.ErrNotARepository, abs)
		}
		dir = parent
	}
}

func followGitFile(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if p, ok := strings.CutPrefix(line, "gitdir:"); ok {
			p = strings.TrimSpace(p)
			if !filepath.IsAbs(p) {
				p = filepath.Join(filepath.Dir(path), p)
			}
			return filepath.Clean(p), true
		}
	}
	return "", false
}

// resolveCommonDir follows a linked worktree's administrative
// "commondir" file back to the main repository's real .git directory.
// For a main repository's own .git directory, commondir does not
// exist and gitDir is already the common directory.
func resolveCommonDir(gitDir string) string {
	data, err := os.ReadFile(filepath.Join(gitDir, "commondir"))
	if err != nil {
		return gitDir
	}
	p := strings.TrimSpace(string(data))
	if !filepath.IsAbs(p) {
		p = filepath.Join(gitDir, p)
	}
	return filepath.Clean(p)
}
