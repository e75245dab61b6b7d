package cmd

import (
	"fmt"
	"os"

	"github.com/mkurti/postchat/internal"
	"github.com/spf13/cobra"
)

var (
	verbose   bool
	configDir string
	apiURL    string
	version   string = "dev"
	commit    string = "unknown"
	date      string = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "postchat",
	Short: "Chat with your postal analytics data",
	Long: `A CLI client for the postal analytics service: upload shipment data,
ask questions about it in natural language, browse and export past
conversations, and generate visualizations.

Quick Start:
  postchat login                          # Obtain and store a token
  postchat upload shipments.csv --wait    # Upload a CSV and process it
  postchat chat --file <file-id>          # Chat about the data
  postchat history                        # Browse past conversations
  postchat export --format md             # Export conversations as Markdown`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		internal.SetVerbose(verbose)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig builds the effective config, applying the --api override
func loadConfig() (*internal.Config, error) {
	cfg, err := internal.LoadConfig(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if apiURL != "" {
		cfg.APIBaseURL = apiURL
		if cfg.UploadBaseURL == "" {
			cfg.UploadBaseURL = apiURL
		}
	}
	return cfg, nil
}

// newAPIClient builds an authenticated client or fails with a hint
func newAPIClient(cfg *internal.Config) (*internal.APIClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return internal.NewAPIClient(cfg.APIBaseURL, cfg.UserID, cfg.TokenSource()), nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "Config directory (default ~/.postchat)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "Analytics service URL (overrides config)")

	// Set version template to ensure --version flag works
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
