package resolver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utilitywarehouse/protofetch/cache"
	"github.com/utilitywarehouse/protofetch/internal/gitexec"
	"github.com/utilitywarehouse/protofetch/model"
	"github.com/utilitywarehouse/protofetch/repo"
)

// CacheResolver is the concrete, cache-backed ModuleResolver: it ensures a
// bare clone exists for the dependency's coordinate, then chains
// fetch(-commit)+resolve+extract against it.
type CacheResolver struct {
	store  *cache.Store
	runner *gitexec.Runner
	log    *slog.Logger
}

// NewCacheResolver builds a CacheResolver over an already-open cache Store.
func NewCacheResolver(store *cache.Store, runner *gitexec.Runner, log *slog.Logger) *CacheResolver {
	return &CacheResolver{store: store, runner: runner, log: log}
}

// Resolve ensures the bare clone for coordinate exists, fetches according to
// specification (or just the expected commit, if commitHash is given), and
// extracts the descriptor at the resulting commit.
func (r *CacheResolver) Resolve(ctx context.Context, coordinate model.Coordinate, specification model.RevisionSpecification, commitHash *string, name model.ModuleName) (CommitAndDescriptor, error) {
	barePath, err := r.store.EnsureBare(ctx, coordinate)
	if err != nil {
		return CommitAndDescriptor{}, fmt.Errorf("resolving %s: %w", name, err)
	}
	repository := repo.New(barePath, r.store.WorktreesDir(), name, r.runner, r.log)

	var resolved string
	if commitHash != nil {
		if err := repository.FetchCommit(ctx, specification, *commitHash); err != nil {
			return CommitAndDescriptor{}, err
		}
		resolved = *commitHash
	} else {
		if err := repository.Fetch(ctx, specification); err != nil {
			return CommitAndDescriptor{}, err
		}
		resolved, err = repository.ResolveCommitHash(ctx, specification)
		if err != nil {
			return CommitAndDescriptor{}, err
		}
	}

	descriptor, err := repository.ExtractDescriptor(ctx, resolved)
	if err != nil {
		return CommitAndDescriptor{}, err
	}
	return CommitAndDescriptor{CommitHash: resolved, Descriptor: descriptor}, nil
}
