package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ygzhang/sealkit/observability"
)

var (
	verbose bool
	quiet   bool
	envFile string

	log observability.Logger = observability.NopLogger{}
)

var rootCmd = &cobra.Command{
	Use:   "sealctl",
	Short: "Stamp refinement and document signing toolkit",
	Long: `sealctl refines photographed ink stamps into clean transparent assets
and composes them onto paged documents: image-to-document conversion,
overlay stamping, merging, thumbnails, and a small persistent asset
library.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if envFile != "" {
			_ = godotenv.Load(envFile)
		} else {
			_ = godotenv.Load()
		}
		log = newLogger(verbose, quiet)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "errors only")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "env file to load (default .env)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
