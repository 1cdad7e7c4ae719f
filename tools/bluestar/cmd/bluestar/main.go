// Command bluestar turns a commit into a reviewed, publishable blog post.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/domini04/bluestar/pkg/config"
	"github.com/domini04/bluestar/runtime/logger"
	"github.com/domini04/bluestar/runtime/version"
)

// Flags shared by every command. The rest are declared next to the command
// that reads them; config.Flag* names are overlaid by config.ApplyFlags.
const (
	flagConfig  = "config"
	flagEnvFile = "env-file"
)

var rootCmd = &cobra.Command{
	Use:           "bluestar",
	Short:         "Turn a commit into a reviewed blog post",
	Version:       version.Get().Version,
	SilenceUsage:  true,
	SilenceErrors: false,
	Long: `BlueStar fetches a GitHub commit, analyzes the change with an LLM, drafts a
technical blog post and refines it with your feedback until you are satisfied.
The approved draft is published to Ghost or Notion, or saved as a local HTML file.

A run that cannot ask for input (no terminal, or --non-interactive) is
checkpointed and can be continued later with "bluestar resume".`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose, err := cmd.Flags().GetBool(config.FlagVerbose); err == nil && verbose {
			logger.SetVerbose(true)
		}
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringP(flagConfig, "c", "", "BluestarConfig manifest to load")
	pf.String(flagEnvFile, "", "environment file to load (default .env when present)")
	pf.String(config.FlagStore, "", "checkpoint store backend: memory, redis, sqlite or postgres")
	pf.String(config.FlagStoreURL, "", "Redis URL, SQLite path or PostgreSQL DSN for the store")
	pf.String(config.FlagLogFormat, "", "log format: text or json")
	pf.BoolP(config.FlagVerbose, "v", false, "enable debug logging")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	rootCmd.SetVersionTemplate(version.Get().String() + "\n")
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		// Error already printed by cobra
		os.Exit(1)
	}
}
