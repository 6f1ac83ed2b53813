// Package clasherr defines the error kinds from the error-handling
// design: sentinels other packages wrap with fmt.Errorf("...: %w", ...)
// so callers can classify a failure with errors.Is without parsing
// message text.
package clasherr

import "errors"

var (
	// ErrNotARepository means the supplied path is not a source-control
	// repository, nor is any ancestor directory.
	ErrNotARepository = errors.New("not a repository")

	// ErrNoCommits means a working tree's head does not resolve to a commit.
	ErrNoCommits = errors.New("no commits")

	// ErrObjectMissing means a referenced commit or tree is not present
	// in the object database.
	ErrObjectMissing = errors.New("object missing")

	// ErrMergeFailure means the three-way merge step errored internally
	// for a pair.
	ErrMergeFailure = errors.New("merge failure")

	// ErrIoFailure means a filesystem read or watch registration failed.
	ErrIoFailure = errors.New("io failure")

	// ErrInterrupted means the operation was cancelled.
	ErrInterrupted = errors.New("interrupted")
)

// PairError carries which pair failed and why, so an ERRORED
// ConflictPair can report its cause without losing the wrapped error.
type PairError struct {
	WTAID, WTBID string
	Kind         error
	Err          error
}

func (e *PairError) Error() string {
	return e.WTAID + "/" + e.WTBID + ": " + e.Err.Error()
}

func (e *PairError) Unwrap() error { return e.Err }

// Is lets errors.Is(pairErr, clasherr.ErrMergeFailure) succeed by
// comparing against the carried Kind sentinel.
func (e *PairError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}
