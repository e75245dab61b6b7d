package cmd

import (
	"fmt"

	"github.com/mkurti/postchat/internal"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check configuration and service reachability",
	Long: `Validate the local configuration and verify that the analytics
service answers authenticated requests.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("API URL:            %s\n", cfg.APIBaseURL)
		fmt.Printf("Upload URL:         %s\n", cfg.UploadBaseURL)
		fmt.Printf("User:               %s\n", orUnset(cfg.UserID))
		fmt.Printf("Token:              %s\n", maskToken(cfg.Token))
		fmt.Printf("Embedding provider: %s\n", cfg.EmbeddingProvider)
		fmt.Println()

		if err := cfg.Validate(); err != nil {
			internal.PrintWarning(err.Error())
			return nil
		}

		client, err := newAPIClient(cfg)
		if err != nil {
			return err
		}
		headers, err := client.ListConversations(cmd.Context())
		if err != nil {
			internal.PrintError(fmt.Sprintf("Service check failed: %v", err))
			return nil
		}
		internal.PrintSuccess(fmt.Sprintf("Service reachable, %d conversation(s) on record", len(headers)))
		return nil
	},
}

func orUnset(v string) string {
	if v == "" {
		return "(unset)"
	}
	return v
}

func maskToken(token string) string {
	if token == "" {
		return "(unset)"
	}
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
