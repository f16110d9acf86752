package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/utilitywarehouse/protofetch/protofetch"
)

// NewLockCmd creates, updates or verifies the lock file from the manifest.
func NewLockCmd() *cobra.Command {
	var forceLock bool
	var locked bool

	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Creates a lock file based on the manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := buildProtofetch(cmd.Context(), cmd, "")
			if err != nil {
				return err
			}
			defer p.Close()

			mode := protofetch.LockModeUpdate
			switch {
			case locked:
				mode = protofetch.LockModeLocked
			case forceLock:
				mode = protofetch.LockModeRecreate
			}
			lockFile, err := p.Lock(cmd.Context(), mode)
			if err != nil {
				return err
			}
			fmt.Printf("locked %d dependencies\n", len(lockFile.Dependencies))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&forceLock, "force-lock", "f", false, "Recreate the lock file from scratch")
	cmd.Flags().BoolVar(&locked, "locked", false, "Fail instead of updating the lock file; use in CI")

	return cmd
}
