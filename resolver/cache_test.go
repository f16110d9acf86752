package resolver

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

	"github.com/utilitywarehouse/protofetch/cache"
	"github.com/utilitywarehouse/protofetch/internal/gitexec"
	"github.com/utilitywarehouse/protofetch/model"
)

var fixtureCounter int64

// testEnv builds a scratch GIT_CONFIG_GLOBAL so fixture setup never touches
// the real user/system git config, matching cache's own e2e test pattern.
func testEnv(t *testing.T) []string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gitconfig")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	envs := []string{
		"GIT_CONFIG_GLOBAL=" + path,
		"GIT_CONFIG_SYSTEM=/dev/null",
		"HOME=" + t.TempDir(),
	}
	run := func(cwd string, args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = cwd
		cmd.Env = append(os.Environ(), envs...)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v failed: %s", args, out)
	}
	run("", "config", "--global", "user.name", "protofetch-test")
	run("", "config", "--global", "user.email", "protofetch-test@example.com")
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

// newFixtureRepo creates a throwaway upstream repository tagged "v1.0.0"
// and rewrites a unique "https://local/org/<name>" URL to point at it via
// git's insteadOf config, so production code can go through
// Coordinate.URL() unmodified.
func newFixtureRepo(t *testing.T, envs []string) (model.Coordinate, string) {
	t.Helper()
	dir := t.TempDir()
	mustExec(t, envs, dir, "git", "init", "-q", "-b", "main")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "protofetch.toml"), []byte("name = \"dep\"\n"), 0o644))
	mustExec(t, envs, dir, "git", "add", ".")
	mustExec(t, envs, dir, "git", "commit", "-q", "-m", "initial")
	commit := mustExec(t, envs, dir, "git", "rev-parse", "HEAD")
	mustExec(t, envs, dir, "git", "tag", "v1.0.0")

	name := fmt.Sprintf("repo%d", atomic.AddInt64(&fixtureCounter, 1))
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

	return coordinate, commit
}

func newCacheResolver(t *testing.T, envs []string) *CacheResolver {
	t.Helper()
	runner := gitexec.NewRunner(slog.Default(), envs)
	store, err := cache.Open(context.Background(), t.TempDir(), model.ProtocolHTTPS, runner, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewCacheResolver(store, runner, slog.Default())
}

func TestCacheResolver_ResolveArbitrary(t *testing.T) {
	envs := testEnv(t)
	coordinate, commit := newFixtureRepo(t, envs)
	r := newCacheResolver(t, envs)

	got, err := r.Resolve(context.Background(), coordinate, model.RevisionSpecification{Revision: model.Arbitrary}, nil, "dep")
	require.NoError(t, err)
	require.Equal(t, commit, got.CommitHash)
	require.Equal(t, model.ModuleName("dep"), got.Descriptor.Name)
}

func TestCacheResolver_ResolvePinned(t *testing.T) {
	envs := testEnv(t)
	coordinate, commit := newFixtureRepo(t, envs)
	r := newCacheResolver(t, envs)

	got, err := r.Resolve(context.Background(), coordinate, model.RevisionSpecification{Revision: model.Pinned("v1.0.0")}, nil, "dep")
	require.NoError(t, err)
	require.Equal(t, commit, got.CommitHash)
}

func TestCacheResolver_ResolveWithExpectedCommit(t *testing.T) {
	envs := testEnv(t)
	coordinate, commit := newFixtureRepo(t, envs)
	r := newCacheResolver(t, envs)

	got, err := r.Resolve(context.Background(), coordinate, model.RevisionSpecification{Revision: model.Arbitrary}, &commit, "dep")
	require.NoError(t, err)
	require.Equal(t, commit, got.CommitHash)
}
