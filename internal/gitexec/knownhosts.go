package gitexec

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FilterKnownHosts reads the known_hosts file at globalPath and writes, into
// scratchDir, a copy containing only the entries whose host-pattern field
// matches host. ssh is left to do the actual key comparison once pointed at
// the filtered file via UserKnownHostsFile; this function only decides
// which entries are even candidates.
//
// Matching follows the original tool's host_matches_patterns: patterns are
// compared case-insensitively for exact equality, a leading "!" negates
// (an exact match on a negated pattern excludes the host outright), and
// "*"/"?" wildcards and hashed (HashedName) entries are NOT supported — an
// intentional, documented limitation carried over unchanged.
func FilterKnownHosts(globalPath, host, scratchDir string) (string, error) {
	data, err := os.ReadFile(globalPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading known hosts file %s: %w", globalPath, err)
	}

	var matched []string
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		fields := strings.Fields(trimmed)
		if len(fields) < 3 {
			continue
		}
		if hostMatchesPatterns(host, fields[0]) {
			matched = append(matched, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scanning known hosts file %s: %w", globalPath, err)
	}
	if len(matched) == 0 {
		return "", nil
	}

	path := filepath.Join(scratchDir, "protofetch-known-hosts")
	if err := os.WriteFile(path, []byte(strings.Join(matched, "\n")+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("writing filtered known hosts file: %w", err)
	}
	return path, nil
}

func hostMatchesPatterns(host, patternField string) bool {
	host = strings.ToLower(host)
	matchFound := false
	for _, pattern := range strings.Split(patternField, ",") {
		pattern = strings.ToLower(pattern)
		if negated, ok := strings.CutPrefix(pattern, "!"); ok {
			if negated == host {
				return false
			}
			continue
		}
		if pattern == host {
			matchFound = true
		}
	}
	return matchFound
}
