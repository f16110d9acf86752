package commands

import (
	"github.com/spf13/cobra"
)

// NewMigrateCmd migrates a legacy protodep.toml/protodep.lock pair in the
// given directory into a protofetch manifest, then removes the legacy files.
func NewMigrateCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "migrate [directory]",
		Short: "Migrates a protodep manifest to the protofetch format",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			directory := "."
			if len(args) == 1 {
				directory = args[0]
			}
			p, err := buildProtofetch(cmd.Context(), cmd, directory)
			if err != nil {
				return err
			}
			defer p.Close()

			var namePtr *string
			if name != "" {
				namePtr = &name
			}
			return p.Migrate(namePtr, directory)
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Name of the module (defaults to the directory name)")

	return cmd
}
