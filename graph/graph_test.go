package graph

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/utilitywarehouse/protofetch/model"
	"github.com/utilitywarehouse/protofetch/resolver"
)

// fakeResolver resolves a dependency by looking up a canned descriptor and
// commit hash for its coordinate — it never touches git.
type fakeResolver struct {
	descriptors map[string]model.Descriptor
	commits     map[string]string
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{descriptors: map[string]model.Descriptor{}, commits: map[string]string{}}
}

func (f *fakeResolver) add(repo string, descriptor model.Descriptor, commit string) {
	key := coord(repo).String()
	f.descriptors[key] = descriptor
	f.commits[key] = commit
}

func (f *fakeResolver) Resolve(ctx context.Context, coordinate model.Coordinate, specification model.RevisionSpecification, commitHash *string, name model.ModuleName) (resolver.CommitAndDescriptor, error) {
	key := coordinate.String()
	return resolver.CommitAndDescriptor{CommitHash: f.commits[key], Descriptor: f.descriptors[key]}, nil
}

func coord(repo string) model.Coordinate {
	return model.Coordinate{Forge: "github.com", Organization: "org", Repository: repo}
}

func TestBuild_LinearChain(t *testing.T) {
	r := newFakeResolver()
	r.add("b", model.EmptyDescriptor("b"), "commit-b")

	root := model.Descriptor{
		Name: "root",
		Dependencies: []model.Dependency{
			{Name: "b", Coordinate: coord("b"), Specification: model.RevisionSpecification{Revision: model.Arbitrary}},
		},
	}

	builder := NewBuilder(r, slog.Default())
	module, lockFile, err := builder.Build(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, module.Dependencies, 1)
	require.Equal(t, model.ModuleName("b"), module.Dependencies[0].Name)
	require.Equal(t, "commit-b", module.Dependencies[0].CommitHash)
	require.Len(t, lockFile.Dependencies, 1)
}

func TestBuild_ConflictingPinsKeepsFirst(t *testing.T) {
	r := newFakeResolver()
	r.add("shared", model.EmptyDescriptor("shared"), "commit-shared")

	specA := model.RevisionSpecification{Revision: model.Pinned("v1")}
	specB := model.RevisionSpecification{Revision: model.Pinned("v2")}

	r.add("a", model.Descriptor{Name: "a", Dependencies: []model.Dependency{
		{Name: "shared", Coordinate: coord("shared"), Specification: specA},
	}}, "commit-a")

	root := model.Descriptor{
		Name: "root",
		Dependencies: []model.Dependency{
			{Name: "a", Coordinate: coord("a"), Specification: model.RevisionSpecification{Revision: model.Arbitrary}},
			{Name: "shared-again", Coordinate: coord("shared"), Specification: specB},
		},
	}

	builder := NewBuilder(r, slog.Default())
	module, _, err := builder.Build(context.Background(), root)
	require.NoError(t, err)

	var sharedCount int
	for _, dep := range module.Dependencies {
		if dep.Coordinate.Equal(coord("shared")) {
			sharedCount++
			require.True(t, dep.Specification.Equal(specB), "the root's own pin is reached first in BFS order and should win over the one from a")
		}
	}
	require.Equal(t, 1, sharedCount, "the conflicting second pin should be discarded, not duplicated")
}

func TestBuild_DiamondDependencyDeduped(t *testing.T) {
	r := newFakeResolver()
	spec := model.RevisionSpecification{Revision: model.Arbitrary}
	r.add("leaf", model.EmptyDescriptor("leaf"), "commit-leaf")
	r.add("a", model.Descriptor{Name: "a", Dependencies: []model.Dependency{
		{Name: "leaf", Coordinate: coord("leaf"), Specification: spec},
	}}, "commit-a")
	r.add("b", model.Descriptor{Name: "b", Dependencies: []model.Dependency{
		{Name: "leaf", Coordinate: coord("leaf"), Specification: spec},
	}}, "commit-b")

	root := model.Descriptor{
		Name: "root",
		Dependencies: []model.Dependency{
			{Name: "a", Coordinate: coord("a"), Specification: spec},
			{Name: "b", Coordinate: coord("b"), Specification: spec},
		},
	}

	builder := NewBuilder(r, slog.Default())
	module, _, err := builder.Build(context.Background(), root)
	require.NoError(t, err)

	var leafCount int
	for _, dep := range module.Dependencies {
		if dep.Name == "leaf" {
			leafCount++
		}
	}
	require.Equal(t, 1, leafCount, "the diamond-shared leaf should appear exactly once")
}
