package gitexec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildEnv_SSHRemote(t *testing.T) {
	env, err := BuildEnv("ssh://git@github.com/org/repo.git", Credentials{SSHKeyPath: "/key"}, t.TempDir())
	require.NoError(t, err)
	require.Len(t, env, 1)
	require.Contains(t, env[0], "GIT_SSH_COMMAND=")
	require.Contains(t, env[0], "/key")
}

func TestBuildEnv_HTTPSWithPassword(t *testing.T) {
	dir := t.TempDir()
	env, err := BuildEnv("https://github.com/org/repo", Credentials{Password: "token"}, dir)
	require.NoError(t, err)
	require.Len(t, env, 3)

	var hasAskpass bool
	for _, e := range env {
		if len(e) >= 12 && e[:12] == "GIT_ASKPASS=" {
			hasAskpass = true
		}
	}
	require.True(t, hasAskpass)
}

func TestBuildEnv_HTTPSAnonymous(t *testing.T) {
	env, err := BuildEnv("https://github.com/org/repo", Credentials{}, t.TempDir())
	require.NoError(t, err)
	require.Nil(t, env)
}

func TestBuildEnv_UnknownScheme(t *testing.T) {
	env, err := BuildEnv("file:///local/repo", Credentials{Password: "x"}, t.TempDir())
	require.NoError(t, err)
	require.Nil(t, env)
}
