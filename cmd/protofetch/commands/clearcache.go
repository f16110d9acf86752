package commands

import (
	"github.com/spf13/cobra"
)

// NewClearCacheCmd removes every cached dependency and its metadata.
func NewClearCacheCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-cache",
		Short: "Clears cached dependencies",
		Long:  "Removes all cached dependencies and metadata, making the next fetch slower.",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := buildProtofetch(cmd.Context(), cmd, "")
			if err != nil {
				return err
			}
			defer p.Close()
			return p.ClearCache()
		},
	}
}
