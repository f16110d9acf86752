// Package cache is the content-addressed, single-writer store of bare git
// repositories and per-commit worktrees. One Store owns one cache root,
// guarded for the life of the process by an advisory file lock.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sasha-s/go-deadlock"

	"github.com/utilitywarehouse/protofetch/internal/gitexec"
	"github.com/utilitywarehouse/protofetch/model"
)

// ErrBadLocation is returned when the configured cache root exists but is
// not a directory.
var ErrBadLocation = errors.New("cache location is not a directory")

const worktreesDirName = "dependencies"
const lockMarkerName = ".protofetch-lock"

// Store is the process-wide handle on one cache root. It is safe for
// concurrent use by multiple goroutines within the process (guarded by an
// internal mutex); across processes, the advisory lock acquired at Open
// serializes access to the whole root.
type Store struct {
	log             *slog.Logger
	root            string
	worktrees       string
	defaultProtocol model.Protocol
	runner          *gitexec.Runner
	lock            *processLock

	// mu guards concurrent access to the same Store from multiple
	// in-process goroutines (e.g. a library caller resolving several
	// dependency subtrees in parallel). The cross-process lock above
	// only ever has one process-level holder; this mutex is the
	// in-process equivalent, grounded on the same pattern the teacher
	// uses to guard its in-memory repo pool.
	mu deadlock.Mutex
}

// Open creates the cache root if absent and acquires its process lock.
// Callers must call Close when done to release the lock.
func Open(ctx context.Context, root string, defaultProtocol model.Protocol, runner *gitexec.Runner, log *slog.Logger) (*Store, error) {
	info, err := os.Stat(root)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache root %s: %w", root, err)
		}
	case err != nil:
		return nil, fmt.Errorf("checking cache root %s: %w", root, err)
	case !info.IsDir():
		return nil, fmt.Errorf("%w: %s", ErrBadLocation, root)
	}

	lock, err := acquireLock(filepath.Join(root, lockMarkerName))
	if err != nil {
		return nil, err
	}

	worktrees := filepath.Join(root, worktreesDirName)
	if err := os.MkdirAll(worktrees, 0o755); err != nil {
		_ = lock.Close()
		return nil, fmt.Errorf("creating worktrees dir: %w", err)
	}

	return &Store{
		log:             log,
		root:            root,
		worktrees:       worktrees,
		defaultProtocol: defaultProtocol,
		runner:          runner,
		lock:            lock,
	}, nil
}

// Close releases the process lock on the cache root.
func (s *Store) Close() error {
	return s.lock.Close()
}

// WorktreesDir returns the root directory under which per-(module,commit)
// worktrees are created.
func (s *Store) WorktreesDir() string {
	return s.worktrees
}

// EnsureBare returns the path to coordinate's bare clone, cloning it if
// absent, or reconciling its origin remote URL if coordinate's protocol
// has changed since the clone was made.
func (s *Store) EnsureBare(ctx context.Context, coordinate model.Coordinate) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	defer updateFetchLatency(coordinate.String(), start)

	path := filepath.Join(s.root, coordinate.Path())
	url := coordinate.URL(s.defaultProtocol)

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		s.log.Debug("cloning repository", "coordinate", coordinate.String(), "url", url)
		if _, err := s.runner.Run(ctx, "", "clone", "--bare", url, path); err != nil {
			recordFetch(coordinate.String(), false)
			return "", fmt.Errorf("cloning %s: %w", coordinate, err)
		}
		recordFetch(coordinate.String(), true)
		return path, nil
	} else if err != nil {
		return "", fmt.Errorf("checking cache entry %s: %w", path, err)
	}

	current, err := s.runner.Run(ctx, path, "remote", "get-url", "origin")
	if err != nil {
		recordFetch(coordinate.String(), false)
		return "", fmt.Errorf("reading origin url for %s: %w", coordinate, err)
	}
	if current != url {
		s.log.Debug("updating remote url", "coordinate", coordinate.String(), "from", current, "to", url)
		if _, err := s.runner.Run(ctx, path, "remote", "set-url", "origin", url); err != nil {
			recordFetch(coordinate.String(), false)
			return "", fmt.Errorf("updating origin url for %s: %w", coordinate, err)
		}
	}
	recordFetch(coordinate.String(), true)
	return path, nil
}

// Clear removes the entire cache root, bare clones and worktrees alike.
// The Store must be closed afterward; it is no longer usable.
func (s *Store) Clear() error {
	if err := os.RemoveAll(s.root); err != nil {
		return fmt.Errorf("clearing cache root %s: %w", s.root, err)
	}
	return nil
}
