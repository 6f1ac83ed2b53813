// Package watch implements the Change Observer (§4.7): a filesystem
// watcher over every working tree's directory that debounces bursts of
// mutation events into a single conflict-report recompute, grounded on
// the original implementation's watch/watcher.rs (event filtering) and
// watch/app.rs (the debounce loop), adapted from its terminal dashboard
// into a cold stream of snapshots a caller pulls from a channel.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/clash-sh/clash/pkg/clasherr"
	"github.com/clash-sh/clash/pkg/clashlog"
	"github.com/clash-sh/clash/pkg/clashmodel"
	"github.com/clash-sh/clash/pkg/conflict"
	"github.com/clash-sh/clash/pkg/gitrepo"
)

// DefaultDebounce is the quiescence window §4.7 specifies: roughly
// 250ms after the last relevant event before a recompute fires.
const DefaultDebounce = 250 * time.Millisecond

// Observer streams ConflictReport snapshots for a fixed set of working
// trees, recomputing whenever their filesystems go quiet after a burst
// of changes.
type Observer struct {
	trees    []gitrepo.OpenTree
	engine   *conflict.Engine
	debounce time.Duration
	ignore   []string
	log      *clashlog.Logger

	// root and matcher hold the primary working tree's .gitignore, set
	// up once in Run. All worktrees share one repository, so the main
	// worktree's .gitignore is what gitignore-style matching is judged
	// against, the same way the original implementation's setup_watcher
	// loads one Gitignore from the main worktree's root.
	root    string
	matcher gitignore.Matcher
}

// New returns an Observer. ignore holds doublestar glob patterns
// (matched against forward-slash, repo-relative-or-absolute paths)
// filtered out of consideration in addition to the built-in editor
// temp-file and non-operational git-metadata filters.
func New(trees []gitrepo.OpenTree, engine *conflict.Engine, debounce time.Duration, ignore []string, log *clashlog.Logger) *Observer {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = clashlog.Discard()
	}
	return &Observer{trees: trees, engine: engine, debounce: debounce, ignore: ignore, log: log}
}

// Run watches every tree's working directory and sends one complete
// ConflictReport snapshot to reports each time the debounce window
// elapses after a relevant change. Run blocks until ctx is cancelled,
// returning nil, or returns an error if the watcher itself could not
// be set up. Each recompute runs synchronously inside the event loop,
// so at most one is in flight (§4.7's "exactly one recompute at a
// time" contract). Events that arrive during a recompute are read only
// after it returns and then schedule the next one; a recompute in
// progress is not cancelled by new events, only by cancelling ctx.
func (o *Observer) Run(ctx context.Context, reports chan<- clashmodel.ConflictReport) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: create filesystem watcher: %v", clasherr.ErrIoFailure, err)
	}
	defer watcher.Close()

	watched := 0
	for _, t := range o.trees {
		if err := addRecursive(watcher, t.Model.Path); err != nil {
			o.log.Warn("watch %q: %v", t.Model.Path, err)
			continue
		}
		watched++
	}
	o.log.Warn("watching %d of %d working trees", watched, len(o.trees))

	if len(o.trees) > 0 {
		o.root = o.trees[0].Model.Path
		patterns, err := gitignore.ReadPatterns(osfs.New(o.root), nil)
		if err != nil {
			o.log.Warn("load .gitignore for %q: %v", o.root, err)
		} else {
			o.matcher = gitignore.NewMatcher(patterns)
		}
	}

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	pending := false

	var recomputeCancel context.CancelFunc
	defer func() {
		if recomputeCancel != nil {
			recomputeCancel()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op.Has(fsnotify.Create) {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := watcher.Add(ev.Name); addErr != nil {
						o.log.Warn("watch new directory %q: %v", ev.Name, addErr)
					}
				}
			}
			if !o.relevant(ev) {
				continue
			}
			pending = true
			resetTimer(timer, o.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			o.log.Warn("watch error: %v", err)

		case <-timer.C:
			if !pending {
				continue
			}
			pending = false

			if recomputeCancel != nil {
				recomputeCancel()
			}
			recomputeCtx, cancel := context.WithCancel(ctx)
			recomputeCancel = cancel

			report, err := o.engine.Report(recomputeCtx, o.trees)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					o.log.Warn("recompute failed: %v", err)
				}
				continue
			}

			select {
			case reports <- report:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func resetTimer(timer *time.Timer, d time.Duration) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(d)
}

func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		return watcher.Add(path)
	})
}

// relevant mirrors should_process_event: it filters editor/build temp
// files outright, treats the git metadata directory specially (only
// the files that actually signal a commit/checkout/merge matter), then
// applies the configured ignore globs to everything else.
func (o *Observer) relevant(ev fsnotify.Event) bool {
	if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) &&
		!ev.Op.Has(fsnotify.Remove) && !ev.Op.Has(fsnotify.Rename) {
		return false
	}

	path := ev.Name
	base := filepath.Base(path)

	if strings.HasSuffix(base, ".tmp") || strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, "~") || strings.Contains(base, ".tmp.") {
		return false
	}

	if isGitMetadataPath(path) {
		return isGitOperationSignal(path)
	}

	if o.gitignored(path) {
		return false
	}

	slashPath := filepath.ToSlash(path)
	for _, pattern := range o.ignore {
		if matched, _ := doublestar.Match(pattern, slashPath); matched {
			return false
		}
		if matched, _ := doublestar.Match(pattern, base); matched {
			return false
		}
	}
	return true
}

// gitignored reports whether path matches the main working tree's
// .gitignore, mirroring should_process_event's
// gitignore.matched_path_or_any_parents check. A path outside the
// main worktree's root, or the absence of a loadable .gitignore,
// never counts as ignored.
func (o *Observer) gitignored(path string) bool {
	if o.matcher == nil || o.root == "" {
		return false
	}
	rel, err := filepath.Rel(o.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	segments := strings.Split(filepath.ToSlash(rel), "/")

	isDir := false
	if info, statErr := os.Stat(path); statErr == nil {
		isDir = info.IsDir()
	}
	return o.matcher.Match(segments, isDir)
}

func isGitMetadataPath(path string) bool {
	return strings.Contains(filepath.ToSlash(path), "/.git/")
}

// isGitOperationSignal reports whether a path inside .git actually
// indicates a commit, checkout, merge, or rebase in progress — the
// only git-internal changes that can move a head commit and thus
// change conflict results.
func isGitOperationSignal(path string) bool {
	p := filepath.ToSlash(path)
	switch {
	case strings.Contains(p, "/.git/index"),
		strings.HasSuffix(p, "index.lock"),
		strings.Contains(p, "/.git/HEAD"),
		strings.HasSuffix(p, "HEAD.lock"),
		strings.Contains(p, "/.git/refs/"),
		strings.Contains(p, "/.git/MERGE_HEAD"),
		strings.Contains(p, "/.git/REBASE_HEAD"):
		return true
	case strings.Contains(p, "/refs/") && strings.HasSuffix(p, ".lock"):
		return true
	default:
		return false
	}
}
