// Package commands holds one file per protofetch subcommand, each
// exposing a New*Cmd constructor the root command wires in, following
// re-cinq-wave's cmd/*/commands package layout.
package commands

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/utilitywarehouse/protofetch/protofetch"
)

var logger = slog.Default()

// SetLogger installs the logger every subcommand uses, set once from the
// root command's --log-level flag before any subcommand runs.
func SetLogger(log *slog.Logger) {
	logger = log
}

// buildProtofetch constructs a Protofetch bound to the persistent flags
// shared by every subcommand, optionally rooted at root (used by init and
// migrate, which take a positional directory argument).
func buildProtofetch(ctx context.Context, cmd *cobra.Command, root string) (*protofetch.Protofetch, error) {
	manifest, err := cmd.Flags().GetString("manifest")
	if err != nil {
		return nil, err
	}
	lockFile, err := cmd.Flags().GetString("lock-file")
	if err != nil {
		return nil, err
	}
	cacheDir, err := cmd.Flags().GetString("cache-dir")
	if err != nil {
		return nil, err
	}
	outputDir, err := cmd.Flags().GetString("output-dir")
	if err != nil {
		return nil, err
	}

	builder := protofetch.NewBuilder().
		ManifestFileName(manifest).
		LockFileName(lockFile).
		Logger(logger)
	if root != "" {
		builder = builder.Root(root)
	}
	if cacheDir != "" {
		builder = builder.CacheDirectory(cacheDir)
	}
	if outputDir != "" {
		builder = builder.OutputDirectoryName(outputDir)
	}
	return builder.Build(ctx)
}
