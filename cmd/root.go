package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"imagequality/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "imagequality",
	Short: "Check the image quality of scanned documents with Google Document AI",
	Long: `imagequality downloads an image from Google Cloud Storage, sends it to a
Document AI processor with image quality scoring enabled and prints the
recognized text together with the quality score and detected defects of
every page.

Configuration is read from the environment (and a .env file); command
flags override it.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Debug().
			Str("version", version).
			Msg("imagequality executed without subcommand")

		_ = cmd.Help()
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
