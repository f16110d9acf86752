package gitexec

import (
	"fmt"
	"os"
	"path/filepath"
)

// Credentials carries the optional auth material used to talk to a remote.
// Any field may be left zero; BuildEnv degrades to anonymous access.
type Credentials struct {
	// SSHKeyPath is a private key to use for ssh:// remotes.
	SSHKeyPath string
	// KnownHostsPath, if set, is passed as the ssh client's
	// UserKnownHostsFile. If empty, host key checking is disabled
	// entirely (StrictHostKeyChecking=no), matching the scoped/filtered
	// known_hosts approach this codebase substitutes for the original's
	// in-process certificate_check callback: os/exec git has no
	// equivalent hook, so an explicit known_hosts file is the closest
	// approximation available.
	KnownHostsPath string
	// Username/Password authenticate https:// remotes via GIT_ASKPASS.
	Username string
	Password string
}

const askPassScript = `#!/bin/sh
case "$1" in
  Username*) echo "$GITEXEC_USERNAME" ;;
  Password*) echo "$GITEXEC_PASSWORD" ;;
esac
`

// BuildEnv returns the extra environment variables needed to authenticate
// against remote using creds, writing a GIT_ASKPASS helper script into
// scratchDir for https credentials if needed.
func BuildEnv(remote string, creds Credentials, scratchDir string) ([]string, error) {
	switch {
	case isSSHRemote(remote):
		return []string{sshCommandEnv(creds)}, nil
	case isHTTPSRemote(remote):
		if creds.Password == "" {
			return nil, nil
		}
		askPass, err := ensureAskPassScript(scratchDir)
		if err != nil {
			return nil, err
		}
		username := creds.Username
		if username == "" {
			username = "git"
		}
		return []string{
			"GIT_ASKPASS=" + askPass,
			"GITEXEC_USERNAME=" + username,
			"GITEXEC_PASSWORD=" + creds.Password,
		}, nil
	default:
		return nil, nil
	}
}

func isSSHRemote(remote string) bool {
	return hasAnyPrefix(remote, "ssh://", "git@")
}

func isHTTPSRemote(remote string) bool {
	return hasAnyPrefix(remote, "https://", "http://")
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if len(s) >= len(p) && s[:len(p)] == p {
			return true
		}
	}
	return false
}

func sshCommandEnv(creds Credentials) string {
	keyPath := creds.SSHKeyPath
	if keyPath == "" {
		keyPath = "/dev/null"
	}
	knownHosts := "-o UserKnownHostsFile=/dev/null -o StrictHostKeyChecking=no"
	if creds.KnownHostsPath != "" {
		knownHosts = fmt.Sprintf("-o UserKnownHostsFile=%s -o StrictHostKeyChecking=yes", creds.KnownHostsPath)
	}
	return fmt.Sprintf("GIT_SSH_COMMAND=ssh -q -F none -o IdentitiesOnly=yes -o IdentityFile=%s %s", keyPath, knownHosts)
}

func ensureAskPassScript(dir string) (string, error) {
	path := filepath.Join(dir, "protofetch-askpass.sh")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("checking askpass script: %w", err)
	}
	if err := os.WriteFile(path, []byte(askPassScript), 0o750); err != nil {
		return "", fmt.Errorf("writing askpass script: %w", err)
	}
	return path, nil
}
