package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/dedupe/internal/buildinfo"
	"github.com/cleared-dev/dedupe/internal/config"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:     "dedupe",
		Short:   "Find and resolve duplicate transactions",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", config.FileName, "path to the project config file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newInitCommand(),
		newImportCommand(opts),
		newListCommand(opts),
		newScanCommand(opts),
		newResolveCommand(opts),
		newIgnoreCommand(opts),
		newServeCommand(opts),
	)

	return rootCmd
}
