package commands

import (
	"github.com/spf13/cobra"

	"github.com/utilitywarehouse/protofetch/protofetch"
)

// NewFetchCmd fetches the dependencies defined in the manifest, creating or
// reconciling the lock file first.
func NewFetchCmd() *cobra.Command {
	var forceLock bool
	var locked bool

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetches dependencies defined in the manifest",
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
			return p.Fetch(cmd.Context(), mode)
		},
	}

	cmd.Flags().BoolVarP(&forceLock, "force-lock", "f", false, "Recreate the lock file from scratch")
	cmd.Flags().BoolVar(&locked, "locked", false, "Fail instead of updating the lock file; use in CI")

	return cmd
}
