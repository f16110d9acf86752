package config

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"

	"github.com/utilitywarehouse/protofetch/model"
)

type versionedLockFile struct {
	Version      int64              `toml:"version"`
	Dependencies []lockedDependency `toml:"dependencies"`
}

type lockedDependency struct {
	Name       string  `toml:"name"`
	URL        string  `toml:"url"`
	Protocol   *string `toml:"protocol,omitempty"`
	Revision   *string `toml:"revision,omitempty"`
	Branch     *string `toml:"branch,omitempty"`
	CommitHash string  `toml:"commit_hash"`
}

// ParseLockFile parses a protofetch.lock document. Lock files must carry
// version = 2; a missing version key is the pre-versioning schema and is
// rejected with ErrOldLockVersion, any other version with
// ErrUnsupportedLockVersion.
func ParseLockFile(data []byte) (model.LockFile, error) {
	var probe map[string]interface{}
	if err := toml.Unmarshal(data, &probe); err != nil {
		return model.LockFile{}, fmt.Errorf("parsing lock file: %w", err)
	}

	version, present := probe["version"]
	if !present {
		return model.LockFile{}, ErrOldLockVersion
	}
	v, ok := toInt64(version)
	if !ok || v != model.LockFileVersion {
		return model.LockFile{}, fmt.Errorf("%w: %v", ErrUnsupportedLockVersion, version)
	}

	var parsed versionedLockFile
	if err := toml.Unmarshal(data, &parsed); err != nil {
		return model.LockFile{}, fmt.Errorf("parsing lock file: %w", err)
	}

	lock := model.LockFile{Dependencies: make([]model.LockedDependency, 0, len(parsed.Dependencies))}
	for _, dep := range parsed.Dependencies {
		var protocol *model.Protocol
		if dep.Protocol != nil {
			p, err := model.ParseProtocol(*dep.Protocol)
			if err != nil {
				return model.LockFile{}, fmt.Errorf("lock dependency %q: %w", dep.Name, err)
			}
			protocol = &p
		}
		coordinate, err := model.CoordinateFromURL(dep.URL, protocol)
		if err != nil {
			return model.LockFile{}, fmt.Errorf("lock dependency %q: %w", dep.Name, err)
		}

		revision := model.Arbitrary
		if dep.Revision != nil {
			revision = model.Pinned(*dep.Revision)
		}

		lock.Dependencies = append(lock.Dependencies, model.LockedDependency{
			Name:       model.ModuleName(dep.Name),
			Coordinate: coordinate,
			Specification: model.RevisionSpecification{
				Revision: revision,
				Branch:   dep.Branch,
			},
			CommitHash: dep.CommitHash,
		})
	}
	return lock, nil
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}

// EncodeLockFile renders a LockFile with the version = 2 header, matching
// VersionedLockFile's flattened field layout.
func EncodeLockFile(l model.LockFile) ([]byte, error) {
	out := versionedLockFile{Version: model.LockFileVersion}
	for _, dep := range l.Dependencies {
		entry := lockedDependency{
			Name:       string(dep.Name),
			URL:        dep.Coordinate.String(),
			CommitHash: dep.CommitHash,
		}
		if dep.Coordinate.Protocol != nil {
			s := string(*dep.Coordinate.Protocol)
			entry.Protocol = &s
		}
		if rev, ok := dep.Specification.Revision.Value(); ok {
			entry.Revision = &rev
		}
		entry.Branch = dep.Specification.Branch
		out.Dependencies = append(out.Dependencies, entry)
	}

	data, err := toml.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encoding lock file: %w", err)
	}
	return data, nil
}
