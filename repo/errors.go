package repo

import "errors"

var (
	// ErrBranchNotFound is returned when a RevisionSpecification names a
	// branch that does not exist on the remote.
	ErrBranchNotFound = errors.New("branch not found")
	// ErrRevisionNotOnBranch is returned when a pinned revision is not an
	// ancestor of the named branch's tip.
	ErrRevisionNotOnBranch = errors.New("revision does not belong to the branch")
	// ErrWorktreeExists is returned when the commit protofetch wants to
	// check out is already checked out in a worktree registered at a
	// different path.
	ErrWorktreeExists = errors.New("worktree already exists at a different path")
)
