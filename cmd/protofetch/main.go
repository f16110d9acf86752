package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/utilitywarehouse/protofetch/cmd/protofetch/commands"
	"github.com/utilitywarehouse/protofetch/internal/envconfig"
)

var rootCmd = &cobra.Command{
	Use:          "protofetch",
	Short:        "Dependency management tool for Protocol Buffers files",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("manifest", "m", envconfig.String("MANIFEST", "protofetch.toml"), "Name of the protofetch manifest file")
	rootCmd.PersistentFlags().StringP("lock-file", "l", envconfig.String("LOCK_FILE", "protofetch.lock"), "Name of the protofetch lock file")
	rootCmd.PersistentFlags().StringP("cache-dir", "c", envconfig.CacheDir(""), "Location of the protofetch cache directory (default: $HOME/.protofetch/cache)")
	rootCmd.PersistentFlags().StringP("output-dir", "o", "", "Override the output directory for proto source files")
	rootCmd.PersistentFlags().String("log-level", envconfig.String("LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(commands.NewFetchCmd())
	rootCmd.AddCommand(commands.NewLockCmd())
	rootCmd.AddCommand(commands.NewInitCmd())
	rootCmd.AddCommand(commands.NewMigrateCmd())
	rootCmd.AddCommand(commands.NewCleanCmd())
	rootCmd.AddCommand(commands.NewClearCacheCmd())
}

func newLogger(level string) *slog.Logger {
	var slogLevel slog.Level
	if err := slogLevel.UnmarshalText([]byte(level)); err != nil {
		slogLevel = slog.LevelInfo
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slogLevel}))
}

func main() {
	cobra.OnInitialize(func() {
		level, _ := rootCmd.PersistentFlags().GetString("log-level")
		commands.SetLogger(newLogger(level))
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
