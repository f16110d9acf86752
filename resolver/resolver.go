// Package resolver fetches and pins individual dependencies. A
// ModuleResolver turns a (coordinate, revision specification) pair into a
// concrete commit and its descriptor; the graph engine calls it once per
// unvisited node while walking the dependency graph.
package resolver

import (
	"context"

	"github.com/utilitywarehouse/protofetch/model"
)

// CommitAndDescriptor is the result of resolving one dependency: the commit
// it pinned to, and the descriptor found at that commit (possibly a
// synthetic empty one, for a leaf dependency with no manifest of its own).
type CommitAndDescriptor struct {
	CommitHash string
	Descriptor model.Descriptor
}

// ModuleResolver resolves a dependency to a commit and its descriptor. If
// commitHash is non-nil, the resolver trusts the caller's expected commit
// and only needs to make it fetchable (no revision resolution is
// performed); if nil, it fetches according to specification and resolves a
// commit itself.
type ModuleResolver interface {
	Resolve(ctx context.Context, coordinate model.Coordinate, specification model.RevisionSpecification, commitHash *string, name model.ModuleName) (CommitAndDescriptor, error)
}
