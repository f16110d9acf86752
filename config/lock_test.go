package config

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/utilitywarehouse/protofetch/model"
)

func TestParseLockFile(t *testing.T) {
	data := []byte(`
version = 2

[[dependencies]]
name = "dep1"
url = "example.com/org/dep1"
protocol = "https"
revision = "1.0.0"
branch = "main"
commit_hash = "hash1"

[[dependencies]]
name = "dep2"
url = "example.com/org/dep2"
commit_hash = "hash2"
`)

	got, err := ParseLockFile(data)
	require.NoError(t, err)

	https := model.ProtocolHTTPS
	main := "main"
	want := model.LockFile{
		Dependencies: []model.LockedDependency{
			{
				Name: "dep1",
				Coordinate: model.Coordinate{
					Forge: "example.com", Organization: "org", Repository: "dep1",
					Protocol: &https,
				},
				Specification: model.RevisionSpecification{Revision: model.Pinned("1.0.0"), Branch: &main},
				CommitHash:    "hash1",
			},
			{
				Name: "dep2",
				Coordinate: model.Coordinate{
					Forge: "example.com", Organization: "org", Repository: "dep2",
				},
				Specification: model.RevisionSpecification{Revision: model.Arbitrary},
				CommitHash:    "hash2",
			},
		},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseLockFile() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseLockFile_MissingVersion(t *testing.T) {
	_, err := ParseLockFile([]byte(`module_name = "foo"`))
	require.ErrorIs(t, err, ErrOldLockVersion)
}

func TestParseLockFile_UnsupportedVersion(t *testing.T) {
	_, err := ParseLockFile([]byte(`version = 99`))
	require.ErrorIs(t, err, ErrUnsupportedLockVersion)
}

func TestEncodeLockFile_RoundTrips(t *testing.T) {
	https := model.ProtocolHTTPS
	lock := model.LockFile{
		Dependencies: []model.LockedDependency{
			{
				Name: "dep1",
				Coordinate: model.Coordinate{
					Forge: "example.com", Organization: "org", Repository: "dep1",
					Protocol: &https,
				},
				Specification: model.RevisionSpecification{Revision: model.Pinned("1.0.0")},
				CommitHash:    "hash1",
			},
		},
	}

	encoded, err := EncodeLockFile(lock)
	require.NoError(t, err)

	roundTripped, err := ParseLockFile(encoded)
	require.NoError(t, err)

	if diff := cmp.Diff(lock, roundTripped); diff != "" {
		t.Errorf("round-trip mismatch (-want +got):\n%s", diff)
	}
}
