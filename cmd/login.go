package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/mkurti/postchat/internal"
	"github.com/spf13/cobra"
)

var (
	loginEmail    string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate against the analytics service",
	Long: `Exchange your credentials for a bearer token and store it in the
config file for subsequent commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		email := loginEmail
		password := loginPassword
		reader := bufio.NewReader(os.Stdin)
		if email == "" {
			fmt.Print("Email: ")
			line, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("failed to read email: %w", err)
			}
			email = strings.TrimSpace(line)
		}
		if password == "" {
			fmt.Print("Password: ")
			line, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			password = strings.TrimSpace(line)
		}
		if email == "" || password == "" {
			return fmt.Errorf("email and password are required")
		}

		client := internal.NewAPIClient(cfg.APIBaseURL, "", internal.StaticToken(""))
		result, err := client.Login(cmd.Context(), email, password)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}

		cfg.Token = result.Token
		cfg.UserID = result.UserID
		if err := internal.SaveConfig(cfg, configDir); err != nil {
			return err
		}

		internal.PrintSuccess(fmt.Sprintf("Logged in as %s", result.UserID))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email (prompted if omitted)")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password (prompted if omitted)")
}
