package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mkurti/postchat/internal"
	"github.com/spf13/cobra"
)

// historyFetchLimit is the default window of exchanges pulled from the
// service for browsing and grouping.
const historyFetchLimit = 100

var historyLimit int

var (
	convHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			Padding(0, 1)

	convMetaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	questionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse past conversations with their questions",
	Long: `Fetch your recent question/answer history, group it by conversation
and display it most recent conversation first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := newAPIClient(cfg)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		headers, err := client.ListConversations(ctx)
		if err != nil {
			return fmt.Errorf("failed to list conversations: %w", err)
		}
		records, err := client.ListHistory(ctx, historyLimit)
		if err != nil {
			return fmt.Errorf("failed to fetch history: %w", err)
		}

		conversations := internal.GroupHistory(headers, records)
		displayHistory(conversations)
		refreshIndex(conversations)
		return nil
	},
}

func displayHistory(conversations []internal.Conversation) {
	if len(conversations) == 0 {
		fmt.Println(headerStyle.Render("No history found"))
		return
	}

	for _, conv := range conversations {
		fmt.Println(convHeaderStyle.Render(fmt.Sprintf("Conversation %s", shortID(conv.ConversationID))))
		fmt.Println(convMetaStyle.Render(fmt.Sprintf("  started %s · %d exchange(s)", formatWhen(conv.StartedAt), len(conv.Records))))

		if len(conv.Records) == 0 {
			fmt.Println(emptyStyle.Render("  (no completed exchanges)"))
			fmt.Println()
			continue
		}

		for _, rec := range conv.Records {
			question := truncate(strings.TrimSpace(rec.Question), 80)
			fmt.Printf("  %s %s\n", dateStyle.Render(formatWhen(rec.Timestamp)), questionStyle.Render(question))
		}
		fmt.Println()
	}

	fmt.Println(idStyle.Render("Tip: `postchat show <id>` displays the full transcript"))
}

// truncate shortens s to at most max runes, cutting on rune boundaries
// so multi-byte characters are never split.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", historyFetchLimit, "Maximum number of exchanges to fetch")
}
