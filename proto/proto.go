// Package proto selects, prunes, and copies the .proto files a resolved
// dependency graph contributes to the output directory, honoring each
// dependency's content roots, pruning mode, and allow/deny file policies.
package proto

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/utilitywarehouse/protofetch/model"
)

// WorktreeProvider materializes a dependency's worktree at its pinned
// commit and returns its path, creating it if necessary.
type WorktreeProvider interface {
	Worktree(ctx context.Context, coordinate model.Coordinate, commitHash string, name model.ModuleName) (string, error)
}

// fileMapping is one file to copy. from is either a path relative to the
// owning dependency's worktree, or (for a file sourced out of a
// transitive dependency's worktree during pruning) an absolute
// filesystem path standing in for the original's PathBuf::join-with-
// absolute-path trick, see copyProtoSourcesForDep.
type fileMapping struct {
	from string
	to   string
}

// canonicalMapping pairs a proto file's absolute filesystem location with
// its package path (the path under which consumers import it).
type canonicalMapping struct {
	fullPath    string
	packagePath string
}

// Copier copies the proto files a resolved module selects into an output
// directory.
type Copier struct {
	worktrees WorktreeProvider
	log       *slog.Logger
}

// NewCopier builds a Copier over the given WorktreeProvider.
func NewCopier(worktrees WorktreeProvider, log *slog.Logger) *Copier {
	return &Copier{worktrees: worktrees, log: log}
}

// Copy selects and copies every dependency's proto files under resolved
// into protoDir, creating it if absent.
func (c *Copier) Copy(ctx context.Context, resolved model.ResolvedModule, protoDir string) error {
	c.log.Info("copying proto files", "module", resolved.ModuleName)
	if err := os.MkdirAll(protoDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir %s: %w", protoDir, err)
	}

	for _, dep := range collectAllRootDependencies(resolved) {
		depDir, err := c.worktrees.Worktree(ctx, dep.Coordinate, dep.CommitHash, dep.Name)
		if err != nil {
			return fmt.Errorf("materializing worktree for %s: %w", dep.Name, err)
		}

		var mappings map[fileMapping]struct{}
		if !dep.Rules.Prune {
			mappings, err = copyAllProtoFilesForDep(depDir, dep)
		} else {
			mappings, err = c.prunedTransitiveDependencies(ctx, dep, resolved)
		}
		if err != nil {
			return fmt.Errorf("selecting proto files for %s: %w", dep.Name, err)
		}

		filtered := map[fileMapping]struct{}{}
		for m := range mappings {
			if !dep.Rules.DenyPolicies.ShouldDeny(m.to) {
				filtered[m] = struct{}{}
			}
		}

		if err := copyProtoSourcesForDep(protoDir, depDir, dep, filtered); err != nil {
			return fmt.Errorf("copying proto files for %s: %w", dep.Name, err)
		}
	}
	return nil
}

// copyAllProtoFilesForDep enumerates every .proto file reachable under
// dep_cache_dir's immediate subdirectories (top-level loose files are not
// scanned — a carried-over limitation of the selector this was ported
// from), content-root-stripping and allow-filtering each.
func copyAllProtoFilesForDep(depDir string, dep model.ResolvedDependency) (map[fileMapping]struct{}, error) {
	mappings := map[fileMapping]struct{}{}
	entries, err := os.ReadDir(depDir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", depDir, err)
	}
	for _, entry := range entries {
		top := filepath.Join(depDir, entry.Name())
		files, err := findProtoFiles(top)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			rel, err := relSlash(depDir, f)
			if err != nil {
				return nil, err
			}
			zoomed := zoomInContentRoot(dep, rel)
			if !dep.Rules.AllowPolicies.ShouldAllow(zoomed) {
				continue
			}
			mappings[fileMapping{from: rel, to: zoomed}] = struct{}{}
		}
	}
	return mappings, nil
}

// prunedTransitiveDependencies computes the import closure of dep's own
// allow-listed proto files: starting from dep's files, each file's
// "import" lines are resolved against dep's own worktree and its
// transitive dependencies' worktrees, recursively, until no new files are
// discovered.
func (c *Copier) prunedTransitiveDependencies(ctx context.Context, dep model.ResolvedDependency, resolved model.ResolvedModule) (map[fileMapping]struct{}, error) {
	found := map[canonicalMapping]struct{}{}
	visited := map[string]struct{}{}

	processMappingFile := func(mapping canonicalMapping) error {
		visited[mapping.packagePath] = struct{}{}
		fileDeps, err := extractProtoDependenciesFromFile(mapping.fullPath)
		if err != nil {
			return err
		}
		candidates := append(collectTransitiveDependencies(dep, resolved), dep)
		newMappings, err := c.canonicalMappingForProtoFiles(ctx, fileDeps, candidates)
		if err != nil {
			return err
		}
		newMappings = append(newMappings, mapping)
		for _, m := range newMappings {
			found[m] = struct{}{}
		}
		return nil
	}

	var innerLoop func(d model.ResolvedDependency) error
	innerLoop = func(d model.ResolvedDependency) error {
		depDir, err := c.worktrees.Worktree(ctx, d.Coordinate, d.CommitHash, d.Name)
		if err != nil {
			return fmt.Errorf("materializing worktree for %s: %w", d.Name, err)
		}
		entries, err := os.ReadDir(depDir)
		if err != nil {
			return fmt.Errorf("reading %s: %w", depDir, err)
		}
		for _, entry := range entries {
			top := filepath.Join(depDir, entry.Name())
			files, err := findProtoFiles(top)
			if err != nil {
				return err
			}
			filteredMapping, err := filteredProtoFiles(files, depDir, d, false)
			if err != nil {
				return err
			}
			filteredSet := map[canonicalMapping]struct{}{}
			for _, m := range filteredMapping {
				filteredSet[m] = struct{}{}
			}

			var notVisited []canonicalMapping
			for m := range found {
				if _, ok := filteredSet[m]; !ok {
					continue
				}
				if _, seen := visited[m.packagePath]; seen {
					continue
				}
				notVisited = append(notVisited, m)
			}
			sort.Slice(notVisited, func(i, j int) bool {
				if notVisited[i].packagePath != notVisited[j].packagePath {
					return notVisited[i].packagePath < notVisited[j].packagePath
				}
				return notVisited[i].fullPath < notVisited[j].fullPath
			})

			for _, m := range notVisited {
				if err := processMappingFile(m); err != nil {
					return err
				}
				if err := innerLoop(d); err != nil {
					return err
				}
			}
		}
		return nil
	}

	depDir, err := c.worktrees.Worktree(ctx, dep.Coordinate, dep.CommitHash, dep.Name)
	if err != nil {
		return nil, fmt.Errorf("materializing worktree for %s: %w", dep.Name, err)
	}
	entries, err := os.ReadDir(depDir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", depDir, err)
	}
	for _, entry := range entries {
		top := filepath.Join(depDir, entry.Name())
		files, err := findProtoFiles(top)
		if err != nil {
			return nil, err
		}
		filteredMapping, err := filteredProtoFiles(files, depDir, dep, true)
		if err != nil {
			return nil, err
		}
		for _, m := range filteredMapping {
			if err := processMappingFile(m); err != nil {
				return nil, err
			}
			if err := innerLoop(dep); err != nil {
				return nil, err
			}
		}
	}

	for _, tDep := range collectTransitiveDependencies(dep, resolved) {
		if err := innerLoop(tDep); err != nil {
			return nil, err
		}
	}

	c.log.Debug("found proto files for pruned dependency", "name", dep.Name, "count", len(found))
	result := make(map[fileMapping]struct{}, len(found))
	for m := range found {
		result[fileMapping{from: m.fullPath, to: m.packagePath}] = struct{}{}
	}
	return result, nil
}

// copyProtoSourcesForDep copies every surviving mapping from the
// dependency's worktree (or, for a mapping sourced out of a different
// dependency's worktree during pruning, straight from its absolute
// fullPath) into protoDir.
func copyProtoSourcesForDep(protoDir, depDir string, dep model.ResolvedDependency, sourcesToCopy map[fileMapping]struct{}) error {
	for m := range sourcesToCopy {
		var source string
		if filepath.IsAbs(m.from) {
			source = m.from
		} else {
			source = filepath.Join(depDir, filepath.FromSlash(m.from))
		}
		if m.to == "" {
			return fmt.Errorf("%w: empty package path for %s", ErrBadPath, source)
		}
		dest := filepath.Join(protoDir, filepath.FromSlash(m.to))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		if err := copyFile(source, dest); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

// extractProtoDependenciesFromFile scans a .proto file for import lines
// and returns the quoted package paths they name.
func extractProtoDependenciesFromFile(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var deps []string
	for _, line := range strings.Split(string(content), "\n") {
		if !strings.HasPrefix(line, "import ") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		dep := strings.NewReplacer(";", "", `"`, "").Replace(fields[1])
		deps = append(deps, dep)
	}
	return deps, nil
}

// findProtoFiles recursively collects every .proto file under dir. A path
// that is not a directory yields no files, even if it is itself a .proto
// file — callers always pass dep_cache_dir's immediate children, so a
// loose .proto file directly at a worktree's root is never found.
func findProtoFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var files []string
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			sub, err := findProtoFiles(path)
			if err != nil {
				return nil, err
			}
			files = append(files, sub...)
		} else if filepath.Ext(path) == ".proto" {
			files = append(files, path)
		}
	}
	return files, nil
}

// collectTransitiveDependencies returns every dependency dep itself
// depends on, plus every dependency marked transitive regardless of
// whether dep depends on it directly.
func collectTransitiveDependencies(dep model.ResolvedDependency, resolved model.ResolvedModule) []model.ResolvedDependency {
	var result []model.ResolvedDependency
	for _, x := range resolved.Dependencies {
		_, isChild := dep.Dependencies[x.Name]
		if isChild || x.Rules.Transitive {
			result = append(result, x)
		}
	}
	return result
}

// collectAllRootDependencies selects which dependencies are eligible for
// copying at all: a dependency is copied directly if no pruning dependency
// lists it as a child and it is not transitive, or if at least one
// non-pruning dependency lists it as a child. Any other dependency (its
// files only surface through the pruning closure of whichever root needs
// them) is never copied directly.
func collectAllRootDependencies(resolved model.ResolvedModule) []model.ResolvedDependency {
	var deps []model.ResolvedDependency
	for _, dep := range resolved.Dependencies {
		var pruned, nonPruned bool
		for _, iterDep := range resolved.Dependencies {
			if _, ok := iterDep.Dependencies[dep.Name]; !ok {
				continue
			}
			if iterDep.Rules.Prune {
				pruned = true
			} else {
				nonPruned = true
			}
		}
		if (!pruned && !dep.Rules.Transitive) || nonPruned {
			deps = append(deps, dep)
		}
	}
	return deps
}

// filteredProtoFiles strips dep_cache_dir and content roots from each
// proto file path, optionally filtering by allow_policies.
func filteredProtoFiles(protoFiles []string, depDir string, dep model.ResolvedDependency, shouldFilter bool) ([]canonicalMapping, error) {
	var mappings []canonicalMapping
	for _, p := range protoFiles {
		rel, err := relSlash(depDir, p)
		if err != nil {
			continue
		}
		zoomed := zoomInContentRoot(dep, rel)
		if dep.Rules.AllowPolicies.ShouldAllow(zoomed) || !shouldFilter {
			mappings = append(mappings, canonicalMapping{fullPath: p, packagePath: zoomed})
		}
	}
	return mappings, nil
}

// canonicalMappingForProtoFiles resolves each logical import path to the
// absolute file it actually names, searching deps' worktrees in order; a
// later candidate's match overwrites an earlier one, matching the
// original resolver's last-match-wins loop.
func (c *Copier) canonicalMappingForProtoFiles(ctx context.Context, protoFiles []string, deps []model.ResolvedDependency) ([]canonicalMapping, error) {
	result := make([]canonicalMapping, 0, len(protoFiles))
	for _, p := range protoFiles {
		full, err := c.zoomOutContentRoot(ctx, deps, p)
		if err != nil {
			return nil, err
		}
		result = append(result, canonicalMapping{fullPath: full, packagePath: p})
	}
	return result, nil
}

// zoomInContentRoot strips the first matching content root from relPath,
// producing the package path under which consumers import the file. An
// empty content-root set is a no-op.
func zoomInContentRoot(dep model.ResolvedDependency, relPath string) string {
	if dep.Rules.ContentRoots.Empty() {
		return relPath
	}
	for _, root := range dep.Rules.ContentRoots.Roots() {
		if stripped, ok := stripPathPrefix(relPath, root); ok {
			return stripped
		}
	}
	return relPath
}

// zoomOutContentRoot is zoomInContentRoot's inverse: given a package path,
// it locates the matching .proto file inside one of the candidate
// dependencies' worktrees whose path ends with that package path.
func (c *Copier) zoomOutContentRoot(ctx context.Context, deps []model.ResolvedDependency, packagePath string) (string, error) {
	result := packagePath
	for _, dep := range deps {
		depDir, err := c.worktrees.Worktree(ctx, dep.Coordinate, dep.CommitHash, dep.Name)
		if err != nil {
			return "", fmt.Errorf("materializing worktree for %s: %w", dep.Name, err)
		}
		entries, err := os.ReadDir(depDir)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", depDir, err)
		}
		for _, entry := range entries {
			top := filepath.Join(depDir, entry.Name())
			files, err := findProtoFiles(top)
			if err != nil {
				return "", err
			}
			for _, f := range files {
				if pathHasSuffix(filepath.ToSlash(f), packagePath) {
					result = f
				}
			}
		}
	}
	return result, nil
}

// relSlash returns path relative to base, using forward slashes
// regardless of OS, for comparison against manifest-authored content
// roots and package paths.
func relSlash(base, path string) (string, error) {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return "", fmt.Errorf("%s is not under %s: %w", path, base, err)
	}
	return filepath.ToSlash(rel), nil
}

// stripPathPrefix removes prefix from path component-wise (not a raw
// string prefix — "foo2/bar" must not match prefix "foo"), returning the
// remainder and true if prefix matched.
func stripPathPrefix(path, prefix string) (string, bool) {
	pathParts := strings.Split(path, "/")
	prefixParts := strings.Split(prefix, "/")
	if len(prefixParts) > len(pathParts) {
		return "", false
	}
	for i, part := range prefixParts {
		if pathParts[i] != part {
			return "", false
		}
	}
	return strings.Join(pathParts[len(prefixParts):], "/"), true
}

// pathHasSuffix reports whether path ends with suffix component-wise.
func pathHasSuffix(path, suffix string) bool {
	pathParts := strings.Split(path, "/")
	suffixParts := strings.Split(suffix, "/")
	if len(suffixParts) > len(pathParts) {
		return false
	}
	offset := len(pathParts) - len(suffixParts)
	for i, part := range suffixParts {
		if pathParts[offset+i] != part {
			return false
		}
	}
	return true
}
