package resolver

import (
	"context"
	"fmt"

	"github.com/utilitywarehouse/protofetch/model"
)

// LockOverlay wraps an inner ModuleResolver with a prior LockFile. It
// implements all three lock modes the CLI exposes:
//   - strict-verify: locked=true against the existing lock file.
//   - update: locked=false against the existing lock file (entries that
//     are present are re-resolved and take the fresh commit; new or
//     changed entries resolve without a lock entry).
//   - recreate: locked=false against an empty LockFile, so every
//     dependency resolves fresh.
type LockOverlay struct {
	inner    ModuleResolver
	lockFile model.LockFile
	locked   bool
}

// NewLockOverlay builds a LockOverlay around inner.
func NewLockOverlay(inner ModuleResolver, lockFile model.LockFile, locked bool) *LockOverlay {
	return &LockOverlay{inner: inner, lockFile: lockFile, locked: locked}
}

// Resolve looks up (coordinate, specification) in the lock file. A match
// resolves fresh against the inner resolver (no commit hint, so a
// branch-tracking specification is re-derived rather than trusted back to
// the locked value) and fails with ErrLockCommitDrift in locked mode if the
// freshly resolved commit disagrees with the locked one; in update mode a
// disagreement is returned as the new, reconciled result instead. A miss
// fails with ErrLockMissingEntry in locked mode, or falls through to an
// unconstrained inner resolve otherwise.
func (o *LockOverlay) Resolve(ctx context.Context, coordinate model.Coordinate, specification model.RevisionSpecification, commitHash *string, name model.ModuleName) (CommitAndDescriptor, error) {
	entry, found := o.lockFile.Find(coordinate, specification)
	switch {
	case found:
		// Resolve independently (no hint) so a branch-tracking
		// specification is re-derived from its current remote tip
		// rather than trusting the locked commit back to itself;
		// CacheResolver.Resolve echoes a provided hint verbatim
		// instead of re-deriving it, which would make drift here
		// unobservable.
		resolved, err := o.inner.Resolve(ctx, coordinate, specification, nil, name)
		if err != nil {
			return CommitAndDescriptor{}, err
		}
		if resolved.CommitHash != entry.CommitHash && o.locked {
			return CommitAndDescriptor{}, fmt.Errorf("%w: %s %s: lock file has %s, resolved %s", ErrLockCommitDrift, coordinate, specification, entry.CommitHash, resolved.CommitHash)
		}
		return resolved, nil

	case o.locked:
		return CommitAndDescriptor{}, fmt.Errorf("%w: %s %s", ErrLockMissingEntry, coordinate, specification)

	default:
		return o.inner.Resolve(ctx, coordinate, specification, commitHash, name)
	}
}
