package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAcquireLock_SecondAcquireTimesOut(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "lock")

	first, err := acquireLockWithBudget(marker, 5*time.Millisecond, time.Second)
	require.NoError(t, err)
	defer first.Close()

	_, err = acquireLockWithBudget(marker, 5*time.Millisecond, 50*time.Millisecond)
	require.ErrorIs(t, err, ErrLocked)
}

func TestAcquireLock_ReleasedLockCanBeReacquired(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "lock")

	first, err := acquireLockWithBudget(marker, 5*time.Millisecond, time.Second)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := acquireLockWithBudget(marker, 5*time.Millisecond, time.Second)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}
