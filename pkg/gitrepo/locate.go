package gitrepo

import "path/filepath"

// LocateContaining returns the OpenTree whose path is the nearest
// ancestor of dir, walking up through parent directories. This mirrors
// the original implementation's find_containing (worktree/manager.rs):
// a simple longest-prefix match is not enough when the queried
// directory is several levels below a worktree root, so ancestors are
// checked one at a time rather than compared by string prefix alone.
func LocateContaining(trees []OpenTree, dir string) (OpenTree, bool) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return OpenTree{}, false
	}
	abs = filepath.Clean(abs)

	for {
		for _, t := range trees {
			if filepath.Clean(t.Model.Path) == abs {
				return t, true
			}
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return OpenTree{}, false
		}
		abs = parent
	}
}
