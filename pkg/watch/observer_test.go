package watch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

func TestObserver_RelevantFiltersTempFiles(t *testing.T) {
	o := New(nil, nil, 0, nil, nil)
	cases := []struct {
		name string
		op   fsnotify.Op
		want bool
	}{
		{"/repo/a.txt", fsnotify.Write, true},
		{"/repo/a.txt.swp", fsnotify.Write, false},
		{"/repo/a.txt~", fsnotify.Write, false},
		{"/repo/.a.txt.tmp.12345", fsnotify.Write, false},
		{"/repo/a.txt", fsnotify.Chmod, false},
	}
	for _, c := range cases {
		got := o.relevant(fsnotify.Event{Name: c.name, Op: c.op})
		if got != c.want {
			t.Errorf("relevant(%q, %v) = %v, want %v", c.name, c.op, got, c.want)
		}
	}
}

func TestObserver_RelevantHonorsIgnoreGlobs(t *testing.T) {
	o := New(nil, nil, 0, []string{"**/*.log", "node_modules/**"}, nil)
	if o.relevant(fsnotify.Event{Name: "/repo/build/output.log", Op: fsnotify.Write}) {
		t.Fatal("expected *.log to be ignored")
	}
	if !o.relevant(fsnotify.Event{Name: "/repo/src/main.go", Op: fsnotify.Write}) {
		t.Fatal("expected main.go to be relevant")
	}
}

func TestObserver_RelevantHonorsGitignore(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ".gitignore"), []byte("*.log\nbuild/\n"), 0o644); err != nil {
		t.Fatalf("write .gitignore: %v", err)
	}

	patterns, err := gitignore.ReadPatterns(osfs.New(root), nil)
	if err != nil {
		t.Fatalf("ReadPatterns: %v", err)
	}

	o := New(nil, nil, 0, nil, nil)
	o.root = root
	o.matcher = gitignore.NewMatcher(patterns)

	if o.relevant(fsnotify.Event{Name: filepath.Join(root, "output.log"), Op: fsnotify.Write}) {
		t.Fatal("expected a .gitignore'd *.log file to be filtered out")
	}
	if o.relevant(fsnotify.Event{Name: filepath.Join(root, "build", "main"), Op: fsnotify.Write}) {
		t.Fatal("expected a file under the ignored build/ directory to be filtered out")
	}
	if !o.relevant(fsnotify.Event{Name: filepath.Join(root, "main.go"), Op: fsnotify.Write}) {
		t.Fatal("expected main.go to remain relevant")
	}
}

func TestObserver_RelevantGitMetadataOnlyOperationalFiles(t *testing.T) {
	o := New(nil, nil, 0, nil, nil)
	cases := []struct {
		name string
		want bool
	}{
		{"/repo/.git/index", true},
		{"/repo/.git/HEAD", true},
		{"/repo/.git/refs/heads/main", true},
		{"/repo/.git/MERGE_HEAD", true},
		{"/repo/.git/objects/pack/pack-abc.pack", false},
		{"/repo/.git/logs/HEAD", false},
	}
	for _, c := range cases {
		got := o.relevant(fsnotify.Event{Name: c.name, Op: fsnotify.Write})
		if got != c.want {
			t.Errorf("relevant(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}
