package commands

import (
	"github.com/spf13/cobra"
)

// NewCleanCmd removes the generated proto sources and the lock file.
func NewCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Cleans generated proto sources and the lock file",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := buildProtofetch(cmd.Context(), cmd, "")
			if err != nil {
				return err
			}
			defer p.Close()
			return p.Clean()
		},
	}
}
