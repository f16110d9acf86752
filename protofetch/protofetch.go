// Package protofetch is the top-level facade composing config, cache, repo,
// resolver, graph and proto into the operations the CLI and any library
// caller use: init, fetch, lock, migrate, clean and clear-cache.
package protofetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/utilitywarehouse/protofetch/cache"
	"github.com/utilitywarehouse/protofetch/config"
	"github.com/utilitywarehouse/protofetch/graph"
	"github.com/utilitywarehouse/protofetch/internal/gitexec"
	"github.com/utilitywarehouse/protofetch/model"
	"github.com/utilitywarehouse/protofetch/proto"
	"github.com/utilitywarehouse/protofetch/repo"
	"github.com/utilitywarehouse/protofetch/resolver"
)

const defaultOutputDirName = "proto_src"

// LockMode controls how a Fetch or Lock call reconciles the manifest
// against an existing lock file.
type LockMode int

const (
	// LockModeUpdate resolves missing entries and re-resolves present
	// ones, writing any commit that has drifted into the lock file
	// instead of failing. The default mode.
	LockModeUpdate LockMode = iota
	// LockModeLocked requires every manifest dependency to already have
	// a lock entry and fails if any is missing or has drifted. The mode
	// a CI pipeline should run in.
	LockModeLocked
	// LockModeRecreate ignores any existing lock file and re-resolves
	// every dependency from scratch.
	LockModeRecreate
)

// Protofetch is a configured instance bound to one project root, manifest
// and lock file location, and cache directory. Construct one with Builder.
type Protofetch struct {
	cache            *cache.Store
	runner           *gitexec.Runner
	log              *slog.Logger
	root             string
	manifestFileName string
	lockFileName     string
	outputDirName    string
}

// Init creates a manifest file in the project root. name defaults to the
// root directory's basename when nil.
func (p *Protofetch) Init(name *string) error {
	moduleName, err := config.BuildModuleName(name, p.root)
	if err != nil {
		return err
	}
	manifestPath := filepath.Join(p.root, p.manifestFileName)
	if _, err := os.Stat(manifestPath); err == nil {
		return fmt.Errorf("manifest already exists: %s", manifestPath)
	}
	descriptor := model.Descriptor{Name: moduleName}
	data, err := config.EncodeManifest(descriptor)
	if err != nil {
		return err
	}
	return os.WriteFile(manifestPath, data, 0o644)
}

// Lock resolves the manifest's dependency graph per mode and writes the
// resulting lock file to disk, returning it.
func (p *Protofetch) Lock(ctx context.Context, mode LockMode) (model.LockFile, error) {
	_, lockFile, err := p.resolveAndLock(ctx, mode)
	return lockFile, err
}

// resolveAndLock is the shared implementation behind Lock and Fetch: it
// reads the manifest, reconciles it against any existing lock file per
// mode, walks the dependency graph and persists the resulting lock file.
func (p *Protofetch) resolveAndLock(ctx context.Context, mode LockMode) (model.ResolvedModule, model.LockFile, error) {
	descriptor, err := p.readManifest()
	if err != nil {
		return model.ResolvedModule{}, model.LockFile{}, err
	}

	existing, err := p.readLockFile()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return model.ResolvedModule{}, model.LockFile{}, err
	}

	locked := mode == LockModeLocked
	if mode == LockModeRecreate {
		existing = model.LockFile{}
		locked = false
	}

	base := resolver.NewCacheResolver(p.cache, p.runner, p.log)
	overlay := resolver.NewLockOverlay(base, existing, locked)
	builder := graph.NewBuilder(overlay, p.log)

	resolved, lockFile, err := builder.Build(ctx, descriptor)
	if err != nil {
		return model.ResolvedModule{}, model.LockFile{}, err
	}

	data, err := config.EncodeLockFile(lockFile)
	if err != nil {
		return model.ResolvedModule{}, model.LockFile{}, err
	}
	if err := os.WriteFile(p.lockFilePath(), data, 0o644); err != nil {
		return model.ResolvedModule{}, model.LockFile{}, err
	}
	p.log.Info("wrote lock file", "path", p.lockFilePath())
	return resolved, lockFile, nil
}

// Fetch reconciles the lock file per mode, then materializes the resolved
// proto sources into the output directory.
func (p *Protofetch) Fetch(ctx context.Context, mode LockMode) error {
	resolved, _, err := p.resolveAndLock(ctx, mode)
	if err != nil {
		return err
	}

	outputDir, err := p.resolveOutputDir()
	if err != nil {
		return err
	}

	worktrees := &cacheWorktreeProvider{cache: p.cache, runner: p.runner, log: p.log}
	copier := proto.NewCopier(worktrees, p.log)
	return copier.Copy(ctx, resolved, filepath.Join(p.root, outputDir))
}

// Migrate converts a legacy protodep.toml/protodep.lock pair found under
// sourceDir into a protofetch manifest, then removes the legacy files.
func (p *Protofetch) Migrate(name *string, sourceDir string) error {
	legacyPath := filepath.Join(sourceDir, "protodep.toml")
	data, err := os.ReadFile(legacyPath)
	if err != nil {
		return fmt.Errorf("reading legacy manifest: %w", err)
	}
	legacy, err := config.ParseLegacyManifest(data)
	if err != nil {
		return err
	}
	moduleName, err := config.BuildModuleName(name, p.root)
	if err != nil {
		return err
	}
	descriptor, err := config.MigrateLegacyManifest(moduleName, legacy)
	if err != nil {
		return err
	}
	encoded, err := config.EncodeManifest(descriptor)
	if err != nil {
		return err
	}
	manifestPath := filepath.Join(p.root, p.manifestFileName)
	if err := os.WriteFile(manifestPath, encoded, 0o644); err != nil {
		return err
	}

	if err := os.Remove(legacyPath); err != nil {
		return fmt.Errorf("removing legacy manifest: %w", err)
	}
	legacyLockPath := filepath.Join(sourceDir, "protodep.lock")
	if err := os.Remove(legacyLockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing legacy lock file: %w", err)
	}
	return nil
}

// Clean removes the generated proto output directory and the lock file.
func (p *Protofetch) Clean() error {
	lockPath := p.lockFilePath()
	if _, err := os.Stat(lockPath); os.IsNotExist(err) {
		return nil
	}

	outputDir, err := p.resolveOutputDir()
	if err != nil {
		return err
	}
	p.log.Info("cleaning proto output directory", "path", outputDir)
	if err := os.RemoveAll(filepath.Join(p.root, outputDir)); err != nil {
		return fmt.Errorf("removing output directory: %w", err)
	}
	return os.Remove(lockPath)
}

// ClearCache removes the entire on-disk cache, bare clones and worktrees
// alike.
func (p *Protofetch) ClearCache() error {
	p.log.Info("clearing cache")
	return p.cache.Clear()
}

func (p *Protofetch) lockFilePath() string {
	return filepath.Join(p.root, p.lockFileName)
}

func (p *Protofetch) readManifest() (model.Descriptor, error) {
	data, err := os.ReadFile(filepath.Join(p.root, p.manifestFileName))
	if err != nil {
		return model.Descriptor{}, fmt.Errorf("reading manifest: %w", err)
	}
	return config.ParseManifest(data)
}

func (p *Protofetch) readLockFile() (model.LockFile, error) {
	data, err := os.ReadFile(p.lockFilePath())
	if err != nil {
		return model.LockFile{}, err
	}
	return config.ParseLockFile(data)
}

func (p *Protofetch) resolveOutputDir() (string, error) {
	if p.outputDirName != "" {
		return p.outputDirName, nil
	}
	descriptor, err := p.readManifest()
	if err != nil {
		return "", err
	}
	if descriptor.ProtoOutDir != nil {
		return *descriptor.ProtoOutDir, nil
	}
	return defaultOutputDirName, nil
}

// cacheWorktreeProvider adapts cache.Store and repo.GitRepository into
// proto.WorktreeProvider: the only place in this codebase that composes the
// two to materialize a dependency's checked-out files on demand.
type cacheWorktreeProvider struct {
	cache  *cache.Store
	runner *gitexec.Runner
	log    *slog.Logger
}

func (w *cacheWorktreeProvider) Worktree(ctx context.Context, coordinate model.Coordinate, commitHash string, name model.ModuleName) (string, error) {
	barePath, err := w.cache.EnsureBare(ctx, coordinate)
	if err != nil {
		return "", err
	}
	repository := repo.New(barePath, w.cache.WorktreesDir(), name, w.runner, w.log)
	return repository.CreateWorktree(ctx, commitHash)
}
