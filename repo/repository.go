// Package repo implements per-repository git operations against a single
// bare clone: fetching, revision resolution, descriptor extraction, and
// worktree materialization. It knows nothing about caching or locking —
// that is the cache package's job; a GitRepository is handed a bare-repo
// path and operates on it directly via the git CLI.
package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/utilitywarehouse/protofetch/config"
	"github.com/utilitywarehouse/protofetch/internal/gitexec"
	"github.com/utilitywarehouse/protofetch/model"
)

const manifestFileName = "protofetch.toml"

// GitRepository is a bare clone plus the git runner used to operate on it.
type GitRepository struct {
	path         string
	worktreesDir string
	name         model.ModuleName
	runner       *gitexec.Runner
	log          *slog.Logger
}

// New wraps the bare clone at path for coordinate/name, with worktrees
// created under worktreesDir/name/<commit>.
func New(path, worktreesDir string, name model.ModuleName, runner *gitexec.Runner, log *slog.Logger) *GitRepository {
	return &GitRepository{path: path, worktreesDir: worktreesDir, name: name, runner: runner, log: log}
}

// Fetch updates the bare clone's refs for specification: every tag and
// every branch, since a pinned revision may name a tag, a branch, or a raw
// commit hash and manifests frequently leave branch unset entirely. The
// original tool fetches one exact tag refspec for a pinned revision; the
// git CLI (unlike the libgit2 transfer this was ported from) hard-fails a
// `git fetch` whose refspec matches no remote ref, which a revision that is
// actually a commit hash or branch name would trigger. Fetching all tags
// via a wildcard refspec avoids that failure mode while fetching no less
// than the original intended.
func (g *GitRepository) Fetch(ctx context.Context, specification model.RevisionSpecification) error {
	refspecs := []string{"+refs/tags/*:refs/tags/*", "+refs/heads/*:refs/remotes/origin/*"}
	if specification.Branch != nil {
		refspecs = append(refspecs, fmt.Sprintf("+refs/heads/%s:refs/remotes/origin/%s", *specification.Branch, *specification.Branch))
	}

	args := append([]string{"fetch", "origin"}, refspecs...)
	if _, err := g.runner.Run(ctx, g.path, args...); err != nil {
		return fmt.Errorf("fetching %s: %w", g.name, err)
	}
	return nil
}

// FetchCommit fetches a single commit directly, which is much cheaper than
// a full ref fetch on forges that support it. If the commit is already
// present locally, this is a no-op; if the single-commit fetch is
// rejected, it falls back to Fetch.
func (g *GitRepository) FetchCommit(ctx context.Context, specification model.RevisionSpecification, commitHash string) error {
	if _, err := g.runner.Run(ctx, g.path, "cat-file", "-e", commitHash+"^{commit}"); err == nil {
		return nil
	}

	if _, err := g.runner.Run(ctx, g.path, "fetch", "origin", commitHash); err != nil {
		g.log.Debug("single commit fetch failed, falling back to full fetch", "name", g.name, "commit", commitHash, "err", err)
		return g.Fetch(ctx, specification)
	}
	return nil
}

// ResolveCommitHash resolves specification to a commit hash using the same
// four-case table regardless of transport: no branch + arbitrary resolves
// HEAD; no branch + pinned resolves the revision directly; a branch with
// no pinned revision resolves the branch tip; a branch with a pinned
// revision requires the revision to be an ancestor of the branch tip.
func (g *GitRepository) ResolveCommitHash(ctx context.Context, specification model.RevisionSpecification) (string, error) {
	revision, pinned := specification.Revision.Value()

	switch {
	case specification.Branch == nil && !pinned:
		return g.revparseCommit(ctx, "HEAD")

	case specification.Branch == nil && pinned:
		return g.revparseCommit(ctx, revision)

	case specification.Branch != nil && !pinned:
		branchCommit, err := g.revparseCommit(ctx, "origin/"+*specification.Branch)
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrBranchNotFound, *specification.Branch)
		}
		return branchCommit, nil

	default:
		branchCommit, err := g.revparseCommit(ctx, "origin/"+*specification.Branch)
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrBranchNotFound, *specification.Branch)
		}
		revisionCommit, err := g.revparseCommit(ctx, revision)
		if err != nil {
			return "", fmt.Errorf("resolving revision %s for %s: %w", revision, g.name, err)
		}
		isAncestor, err := g.IsAncestor(ctx, revisionCommit, branchCommit)
		if err != nil {
			return "", err
		}
		if !isAncestor {
			return "", fmt.Errorf("%w: revision %s, branch %s", ErrRevisionNotOnBranch, revision, *specification.Branch)
		}
		return revisionCommit, nil
	}
}

func (g *GitRepository) revparseCommit(ctx context.Context, obj string) (string, error) {
	out, err := g.runner.Run(ctx, g.path, "rev-parse", "--verify", obj+"^{commit}")
	if err != nil {
		return "", fmt.Errorf("resolving %s for %s: %w", obj, g.name, err)
	}
	return out, nil
}

// IsAncestor reports whether ancestor is an ancestor of (or equal to)
// descendant.
func (g *GitRepository) IsAncestor(ctx context.Context, ancestor, descendant string) (bool, error) {
	mergeBase, err := g.runner.Run(ctx, g.path, "merge-base", ancestor, descendant)
	if err != nil {
		return false, fmt.Errorf("computing merge-base of %s and %s for %s: %w", ancestor, descendant, g.name, err)
	}
	return mergeBase == ancestor, nil
}

// ExtractDescriptor reads protofetch.toml as it existed at commitHash. A
// commit with no manifest of its own is a dependency leaf and yields an
// empty Descriptor rather than an error.
func (g *GitRepository) ExtractDescriptor(ctx context.Context, commitHash string) (model.Descriptor, error) {
	content, err := g.runner.Run(ctx, g.path, "show", fmt.Sprintf("%s:%s", commitHash, manifestFileName))
	if err != nil {
		if gitexec.IsNotFound(err) {
			g.log.Debug("no manifest at commit, treating as a leaf dependency", "name", g.name, "commit", commitHash)
			return model.EmptyDescriptor(g.name), nil
		}
		return model.Descriptor{}, fmt.Errorf("reading manifest at %s for %s: %w", commitHash, g.name, err)
	}

	descriptor, err := config.ParseManifest([]byte(content))
	if err != nil {
		return model.Descriptor{}, fmt.Errorf("parsing manifest at %s for %s: %w", commitHash, g.name, err)
	}
	return descriptor, nil
}

// CreateWorktree materializes commitHash into worktreesDir/name/commitHash,
// creating the worktree if absent and verifying it is the one it claims to
// be if already registered. Worktrees are immutable once created and safe
// to reuse across runs, keyed by (name, commit).
func (g *GitRepository) CreateWorktree(ctx context.Context, commitHash string) (string, error) {
	basePath := filepath.Join(g.worktreesDir, string(g.name))
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return "", fmt.Errorf("creating worktree base dir: %w", err)
	}
	worktreePath := filepath.Join(basePath, commitHash)

	existing, err := g.registeredWorktreePath(ctx, commitHash)
	if err != nil {
		return "", err
	}

	switch {
	case existing == "":
		g.log.Info("creating worktree", "name", g.name, "commit", commitHash, "path", worktreePath)
		if _, err := g.runner.Run(ctx, g.path, "worktree", "add", "--force", "--detach", worktreePath, commitHash); err != nil {
			return "", fmt.Errorf("creating worktree for %s at %s: %w", g.name, commitHash, err)
		}
	case samePath(existing, worktreePath):
		g.log.Debug("reusing existing worktree", "name", g.name, "commit", commitHash, "path", worktreePath)
	default:
		return "", fmt.Errorf("%w: %s wants %s but commit %s is already checked out at %s", ErrWorktreeExists, g.name, worktreePath, commitHash, existing)
	}

	if _, err := g.runner.Run(ctx, worktreePath, "reset", "--hard", commitHash); err != nil {
		return "", fmt.Errorf("resetting worktree for %s to %s: %w", g.name, commitHash, err)
	}
	return worktreePath, nil
}

// registeredWorktreePath returns the path git already has registered for a
// worktree whose HEAD is commitHash, or "" if none exists.
func (g *GitRepository) registeredWorktreePath(ctx context.Context, commitHash string) (string, error) {
	out, err := g.runner.Run(ctx, g.path, "worktree", "list", "--porcelain")
	if err != nil {
		return "", fmt.Errorf("listing worktrees for %s: %w", g.name, err)
	}

	var currentPath string
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.HasPrefix(line, "worktree "):
			currentPath = strings.TrimPrefix(line, "worktree ")
		case strings.HasPrefix(line, "HEAD "):
			if strings.TrimPrefix(line, "HEAD ") == commitHash {
				return currentPath, nil
			}
		}
	}
	return "", nil
}

func samePath(a, b string) bool {
	ra, errA := filepath.EvalSymlinks(a)
	rb, errB := filepath.EvalSymlinks(b)
	if errors.Is(errA, os.ErrNotExist) || errors.Is(errB, os.ErrNotExist) {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return ra == rb
}
