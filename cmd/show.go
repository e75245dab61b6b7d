package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/mkurti/postchat/internal"
	"github.com/spf13/cobra"
)

var (
	userMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true).
				Padding(0, 1)

	assistantMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("135")).
				Bold(true).
				Padding(0, 1)

	messageContentStyle = lipgloss.NewStyle().
				Padding(0, 2).
				MarginBottom(1)

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

// showCmd represents the show command
var showCmd = &cobra.Command{
	Use:   "show <conversation-id>",
	Short: "Show messages for a specific conversation",
	Long:  `Display the full transcript of one conversation, fetched from the service.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conversationID := args[0]

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := newAPIClient(cfg)
		if err != nil {
			return err
		}

		records, err := client.ConversationMessages(cmd.Context(), conversationID)
		if err != nil {
			return fmt.Errorf("failed to fetch conversation %s: %w", conversationID, err)
		}

		fmt.Println(convHeaderStyle.Render(fmt.Sprintf("Conversation %s", conversationID)))
		fmt.Println(convMetaStyle.Render(fmt.Sprintf("  %d exchange(s)", len(records))))
		fmt.Println()

		for _, msg := range internal.ExpandRecords(records) {
			printMessage(msg)
		}
		return nil
	},
}

func printMessage(msg internal.Message) {
	role := userMessageStyle.Render("You")
	if msg.Role == internal.RoleAssistant {
		role = assistantMessageStyle.Render("Assistant")
	}
	when := ""
	if !msg.Timestamp.IsZero() {
		when = timestampStyle.Render(formatWhen(msg.Timestamp))
	}
	fmt.Printf("%s %s\n", role, when)
	fmt.Println(messageContentStyle.Render(msg.Content))
}

func init() {
	rootCmd.AddCommand(showCmd)
}
