package commands

import (
	"github.com/spf13/cobra"
)

// NewInitCmd creates an initial protofetch manifest in the given directory.
func NewInitCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Creates an initial protofetch setup in the given directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			p, err := buildProtofetch(cmd.Context(), cmd, root)
			if err != nil {
				return err
			}
			defer p.Close()

			var namePtr *string
			if name != "" {
				namePtr = &name
			}
			return p.Init(namePtr)
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Name of the module (defaults to the directory name)")

	return cmd
}
