// Package commands implements the deck-narrator command line.
package commands

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/spherical/deck-narrator/cmd/deck-narrator/ui"
	"github.com/spherical/deck-narrator/internal/config"
	"github.com/spherical/deck-narrator/internal/observability"
)

var (
	cfgFile string
	verbose bool
	noColor bool

	appCfg *config.Config
	logger *observability.Logger
)

var rootCmd = &cobra.Command{
	Use:   "deck-narrator",
	Short: "Turn slide decks into per-slide images, text and narration",
	Long: `deck-narrator ingests .pptx and .pdf decks into one image and one text
block per slide, and drafts a spoken narration for each slide with a local
language model.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env file is not an error.
		_ = godotenv.Load()

		path := cfgFile
		if path == "" {
			path = os.Getenv("CONFIG_PATH")
		}
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		appCfg = cfg

		logCfg := observability.LogConfig{
			Level:       cfg.Observability.LogLevel,
			Format:      cfg.Observability.LogFormat,
			ServiceName: cfg.Observability.ServiceName,
		}
		if cmd.Name() != "serve" {
			// Keep stdout for command output.
			logCfg.Output = os.Stderr
			logCfg.Format = "console"
			if !verbose {
				logCfg.Level = "warn"
			}
		}
		if verbose {
			logCfg.Level = "debug"
		}
		logger = observability.NewLogger(logCfg)

		ui.InitUI(noColor, verbose)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default $CONFIG_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// SetVersion sets the version reported by --version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
