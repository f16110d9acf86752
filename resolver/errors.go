package resolver

import "errors"

var (
	// ErrLockCommitDrift is returned when a lock file entry's commit hash
	// no longer matches what the inner resolver actually resolves to
	// (the remote ref moved, or the entry is stale).
	ErrLockCommitDrift = errors.New("resolved commit differs from the lock file")
	// ErrLockMissingEntry is returned in strict-verify (locked) mode when
	// no lock file entry matches a (coordinate, specification) pair.
	ErrLockMissingEntry = errors.New("no entry for dependency in the lock file")
)
