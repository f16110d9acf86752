package protofetch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/utilitywarehouse/protofetch/config"
	"github.com/utilitywarehouse/protofetch/model"
)

var fixtureCounter int64

// testEnv builds a scratch git config so fixture setup never touches the
// real user/system git config, matching cache's and resolver's e2e tests.
func testEnv(t *testing.T) []string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gitconfig")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	envs := []string{
		"GIT_CONFIG_GLOBAL=" + path,
		"GIT_CONFIG_SYSTEM=/dev/null",
		"HOME=" + t.TempDir(),
	}
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Env = append(os.Environ(), envs...)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v failed: %s", args, out)
	}
	run("config", "--global", "user.name", "protofetch-test")
	run("config", "--global", "user.email", "protofetch-test@example.com")
	return envs
}

func mustExec(t *testing.T, envs []string, cwd, name string, args ...string) string {
	t.Helper()
	cmd := exec.Command(name, args...)
	cmd.Dir = cwd
	cmd.Env = append(os.Environ(), envs...)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "command %s %v failed: %s", name, args, out)
	return strings.TrimSpace(string(out))
}

// newFixtureDependency creates a throwaway upstream repository containing a
// single .proto file, tags it v1.0.0, and rewrites its coordinate's URL to
// resolve locally via git's insteadOf config.
func newFixtureDependency(t *testing.T, envs []string) model.Coordinate {
	t.Helper()
	coordinate, _ := newFixtureDependencyDir(t, envs)
	return coordinate
}

// newFixtureDependencyDir is newFixtureDependency but also returns the
// upstream repository's working directory, for tests that need to push
// further commits to it (e.g. to simulate a branch tip moving).
func newFixtureDependencyDir(t *testing.T, envs []string) (model.Coordinate, string) {
	t.Helper()
	dir := t.TempDir()
	mustExec(t, envs, dir, "git", "init", "-q", "-b", "main")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "proto"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "proto", "dep.proto"), []byte("syntax = \"proto3\";\n"), 0o644))
	mustExec(t, envs, dir, "git", "add", ".")
	mustExec(t, envs, dir, "git", "commit", "-q", "-m", "initial")
	mustExec(t, envs, dir, "git", "tag", "v1.0.0")

	name := fmt.Sprintf("dep%d", atomic.AddInt64(&fixtureCounter, 1))
	coordinate := model.Coordinate{Forge: "local", Organization: "org", Repository: name}
	rewriteFrom := coordinate.URL(model.ProtocolHTTPS)
	rewriteTo := "file://" + dir

	var globalConfig string
	for _, e := range envs {
		if rest, ok := strings.CutPrefix(e, "GIT_CONFIG_GLOBAL="); ok {
			globalConfig = rest
		}
	}
	require.NotEmpty(t, globalConfig)
	mustExec(t, envs, "", "git", "config", "--file", globalConfig,
		fmt.Sprintf("url.%s.insteadOf", rewriteTo), rewriteFrom)

	return coordinate, dir
}

func newProject(t *testing.T, envs []string, coordinate model.Coordinate) string {
	t.Helper()
	return newProjectWithSpec(t, envs, coordinate, model.RevisionSpecification{Revision: model.Pinned("v1.0.0")})
}

func newProjectWithSpec(t *testing.T, envs []string, coordinate model.Coordinate, specification model.RevisionSpecification) string {
	t.Helper()
	root := t.TempDir()
	descriptor := model.Descriptor{
		Name: "root",
		Dependencies: []model.Dependency{
			{
				Name:          "dep",
				Coordinate:    coordinate,
				Specification: specification,
			},
		},
	}
	data, err := config.EncodeManifest(descriptor)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, defaultManifestFileName), data, 0o644))
	return root
}

func newProtofetch(t *testing.T, envs []string, root string) *Protofetch {
	t.Helper()
	p, err := NewBuilder().
		Root(root).
		CacheDirectory(filepath.Join(t.TempDir(), "cache")).
		Logger(slog.Default()).
		Envs(append(os.Environ(), envs...)).
		Build(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestProtofetch_Init(t *testing.T) {
	root := t.TempDir()
	p := newProtofetch(t, testEnv(t), root)

	require.NoError(t, p.Init(nil))
	require.FileExists(t, filepath.Join(root, defaultManifestFileName))
}

func TestProtofetch_Init_RefusesToOverwrite(t *testing.T) {
	root := t.TempDir()
	p := newProtofetch(t, testEnv(t), root)

	require.NoError(t, p.Init(nil))
	require.Error(t, p.Init(nil))
}

func TestProtofetch_LockAndFetch(t *testing.T) {
	envs := testEnv(t)
	coordinate := newFixtureDependency(t, envs)
	root := newProject(t, envs, coordinate)
	p := newProtofetch(t, envs, root)

	lockFile, err := p.Lock(context.Background(), LockModeUpdate)
	require.NoError(t, err)
	require.Len(t, lockFile.Dependencies, 1)
	require.FileExists(t, filepath.Join(root, defaultLockFileName))

	require.NoError(t, p.Fetch(context.Background(), LockModeUpdate))
	require.FileExists(t, filepath.Join(root, defaultOutputDirName, "proto", "dep.proto"))
}

func TestProtofetch_Fetch_LockedModeFailsWithoutLockFile(t *testing.T) {
	envs := testEnv(t)
	coordinate := newFixtureDependency(t, envs)
	root := newProject(t, envs, coordinate)
	p := newProtofetch(t, envs, root)

	err := p.Fetch(context.Background(), LockModeLocked)
	require.Error(t, err)
}

func TestProtofetch_Clean(t *testing.T) {
	envs := testEnv(t)
	coordinate := newFixtureDependency(t, envs)
	root := newProject(t, envs, coordinate)
	p := newProtofetch(t, envs, root)

	require.NoError(t, p.Fetch(context.Background(), LockModeUpdate))
	require.NoError(t, p.Clean())

	require.NoFileExists(t, filepath.Join(root, defaultLockFileName))
	require.NoDirExists(t, filepath.Join(root, defaultOutputDirName))
}

// TestProtofetch_LockedModeFailsWhenRemoteBranchMoves and its update-mode
// sibling below exercise spec scenario 6: a branch-tracking dependency
// whose remote tip advances after the lock file was written must fail in
// locked mode and be transparently re-pinned in update mode.
func TestProtofetch_LockedModeFailsWhenRemoteBranchMoves(t *testing.T) {
	envs := testEnv(t)
	coordinate, dir := newFixtureDependencyDir(t, envs)
	branch := "main"
	root := newProjectWithSpec(t, envs, coordinate, model.RevisionSpecification{Revision: model.Arbitrary, Branch: &branch})
	p := newProtofetch(t, envs, root)

	_, err := p.Lock(context.Background(), LockModeUpdate)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "proto", "dep.proto"), []byte("syntax = \"proto3\";\n\nmessage New {}\n"), 0o644))
	mustExec(t, envs, dir, "git", "add", ".")
	mustExec(t, envs, dir, "git", "commit", "-q", "-m", "move the branch tip")

	_, err = p.Lock(context.Background(), LockModeLocked)
	require.Error(t, err)
}

func TestProtofetch_UpdateModeRewritesCommitWhenRemoteBranchMoves(t *testing.T) {
	envs := testEnv(t)
	coordinate, dir := newFixtureDependencyDir(t, envs)
	branch := "main"
	root := newProjectWithSpec(t, envs, coordinate, model.RevisionSpecification{Revision: model.Arbitrary, Branch: &branch})
	p := newProtofetch(t, envs, root)

	before, err := p.Lock(context.Background(), LockModeUpdate)
	require.NoError(t, err)
	require.Len(t, before.Dependencies, 1)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "proto", "dep.proto"), []byte("syntax = \"proto3\";\n\nmessage New {}\n"), 0o644))
	mustExec(t, envs, dir, "git", "add", ".")
	mustExec(t, envs, dir, "git", "commit", "-q", "-m", "move the branch tip")

	after, err := p.Lock(context.Background(), LockModeUpdate)
	require.NoError(t, err)
	require.Len(t, after.Dependencies, 1)
	require.NotEqual(t, before.Dependencies[0].CommitHash, after.Dependencies[0].CommitHash)
}

func TestProtofetch_ClearCache(t *testing.T) {
	envs := testEnv(t)
	coordinate := newFixtureDependency(t, envs)
	root := newProject(t, envs, coordinate)
	p := newProtofetch(t, envs, root)

	require.NoError(t, p.Fetch(context.Background(), LockModeUpdate))
	require.NoError(t, p.ClearCache())
}
