// Package graph walks a manifest's dependency tree into a flat,
// conflict-reconciled ResolvedModule and the LockFile it implies. It knows
// nothing about fetching or file selection — those are the resolver and
// proto packages' jobs; graph only sequences calls to a
// resolver.ModuleResolver and assembles their results deterministically.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/utilitywarehouse/protofetch/model"
	"github.com/utilitywarehouse/protofetch/resolver"
)

// Builder walks a descriptor's dependency graph breadth-first, resolving
// each unvisited (coordinate, specification) edge through resolver and
// assembling the flat, deduplicated result.
type Builder struct {
	resolver resolver.ModuleResolver
	log      *slog.Logger
}

// NewBuilder builds a Builder over the given resolver (typically a
// resolver.LockOverlay wrapping a resolver.CacheResolver).
func NewBuilder(r resolver.ModuleResolver, log *slog.Logger) *Builder {
	return &Builder{resolver: r, log: log}
}

// Build walks descriptor's dependency graph and returns the resolved
// module plus the lock file it implies, sorted for reproducibility.
func (b *Builder) Build(ctx context.Context, descriptor model.Descriptor) (model.ResolvedModule, model.LockFile, error) {
	start := time.Now()

	byCoord := map[string]*model.ResolvedDependency{}
	firstSpec := map[string]model.RevisionSpecification{}
	var order []string

	queue := append([]model.Dependency(nil), descriptor.Dependencies...)
	for len(queue) > 0 {
		dep := queue[0]
		queue = queue[1:]

		coordKey := coordinateKey(dep.Coordinate)

		if existing, seen := firstSpec[coordKey]; seen {
			if existing.Equal(dep.Specification) {
				continue
			}
			b.log.Warn("discarding conflicting pin in favor of the first one discovered",
				"coordinate", dep.Coordinate.String(),
				"kept", existing.String(),
				"discarded", dep.Specification.String())
			continue
		}
		firstSpec[coordKey] = dep.Specification

		b.log.Info("resolving dependency", "name", dep.Name, "coordinate", dep.Coordinate.String(), "specification", dep.Specification.String())
		result, err := b.resolver.Resolve(ctx, dep.Coordinate, dep.Specification, nil, dep.Name)
		if err != nil {
			return model.ResolvedModule{}, model.LockFile{}, fmt.Errorf("resolving %s (%s): %w", dep.Name, dep.Coordinate, err)
		}

		resolved := &model.ResolvedDependency{
			Name:          dep.Name,
			CommitHash:    result.CommitHash,
			Coordinate:    dep.Coordinate,
			Specification: dep.Specification,
			Rules:         dep.Rules,
			Dependencies:  map[model.ModuleName]struct{}{},
		}
		for _, child := range result.Descriptor.Dependencies {
			resolved.Dependencies[child.Name] = struct{}{}
			queue = append(queue, child)
		}

		byCoord[coordKey] = resolved
		order = append(order, coordKey)
	}

	module := model.ResolvedModule{ModuleName: descriptor.Name}
	lockFile := model.LockFile{}
	for _, coordKey := range order {
		resolved := byCoord[coordKey]
		module.Dependencies = append(module.Dependencies, *resolved)
		lockFile.Dependencies = append(lockFile.Dependencies, model.LockedDependency{
			Name:          resolved.Name,
			Coordinate:    resolved.Coordinate,
			Specification: resolved.Specification,
			CommitHash:    resolved.CommitHash,
		})
	}
	lockFile.Sort()

	recordBuild(descriptor.Name.String(), start, len(module.Dependencies))
	return module, lockFile, nil
}

// coordinateKey builds a map key that distinguishes coordinates by every
// field Coordinate.Equal compares, including a nil vs. set protocol.
func coordinateKey(c model.Coordinate) string {
	protocol := ""
	if c.Protocol != nil {
		protocol = string(*c.Protocol)
	}
	return c.Forge + "\x00" + c.Organization + "\x00" + c.Repository + "\x00" + protocol
}
