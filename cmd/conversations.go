package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mkurti/postchat/internal"
	"github.com/spf13/cobra"
)

var (
	// Styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List your conversations",
	Long: `List your conversations on the analytics service, most recent first.

Results are mirrored into a local index so the list keeps working when
the service is unreachable. Only conversation metadata is cached;
transcripts always come from the server.`,
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
			internal.LogWarn("Service unreachable: %v", err)
			return displayCachedConversations()
		}

		records, err := client.ListHistory(ctx, historyFetchLimit)
		if err != nil {
			internal.LogWarn("Failed to load history for message counts: %v", err)
			records = nil
		}

		conversations := internal.GroupHistory(headers, records)
		displayConversations(conversations)
		refreshIndex(conversations)
		return nil
	},
}

// refreshIndex mirrors the listing into the local index, best effort
func refreshIndex(conversations []internal.Conversation) {
	path, err := internal.IndexPath(configDir)
	if err != nil {
		internal.LogDebug("No index path: %v", err)
		return
	}
	cache, err := internal.OpenIndexCache(path)
	if err != nil {
		internal.LogWarn("Failed to open conversation index: %v", err)
		return
	}
	defer func() { _ = cache.Close() }()
	if err := cache.Replace(conversations); err != nil {
		internal.LogWarn("Failed to refresh conversation index: %v", err)
	}
}

func displayCachedConversations() error {
	path, err := internal.IndexPath(configDir)
	if err != nil {
		return err
	}
	cache, err := internal.OpenIndexCache(path)
	if err != nil {
		return fmt.Errorf("service unreachable and no local index: %w", err)
	}
	defer func() { _ = cache.Close() }()

	entries, err := cache.Entries()
	if err != nil {
		return fmt.Errorf("service unreachable and local index unreadable: %w", err)
	}

	internal.PrintWarning("Service unreachable, showing cached conversation list")
	if len(entries) == 0 {
		fmt.Println(headerStyle.Render("No conversations found"))
		return nil
	}

	w := tabwriter.NewWriter(lipgloss.DefaultRenderer().Output(), 0, 0, 3, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintln(w, titleStyle.Render("ID")+"\t"+titleStyle.Render("Messages")+"\t"+titleStyle.Render("Started")+"\t"+titleStyle.Render("Fetched")+"\t")
	_, _ = fmt.Fprintln(w, strings.Repeat("─", 100))
	for _, entry := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n",
			idStyle.Render(shortID(entry.ConversationID)),
			countStyle.Render(strconv.Itoa(entry.MessageCount)),
			dateStyle.Render(formatWhen(entry.StartedAt)),
			dateStyle.Render(formatWhen(entry.FetchedAt)),
		)
	}
	_ = w.Flush()
	return nil
}

func displayConversations(conversations []internal.Conversation) {
	if len(conversations) == 0 {
		fmt.Println(headerStyle.Render("No conversations found"))
		return
	}

	header := headerStyle.Render(fmt.Sprintf("Found %d conversation(s)", len(conversations)))
	fmt.Println(header)
	fmt.Println()

	w := tabwriter.NewWriter(lipgloss.DefaultRenderer().Output(), 0, 0, 3, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintln(w, titleStyle.Render("ID")+"\t"+titleStyle.Render("Messages")+"\t"+titleStyle.Render("Started")+"\t")
	_, _ = fmt.Fprintln(w, strings.Repeat("─", 100))

	for _, conv := range conversations {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t\n",
			idStyle.Render(shortID(conv.ConversationID)),
			countStyle.Render(strconv.Itoa(conv.MessageCount())),
			dateStyle.Render(formatWhen(conv.StartedAt)),
		)
	}

	_ = w.Flush()
	fmt.Println()
	fmt.Println(idStyle.Render("Tip: use the full ID (e.g. ") +
		lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Render(conversations[0].ConversationID) +
		idStyle.Render(") with `postchat show <id>`"))
}

// shortID keeps listings readable; full ids still work everywhere
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "—"
	}
	now := time.Now()
	diff := now.Sub(t)
	switch {
	case diff < 24*time.Hour:
		return t.Format("Today 15:04")
	case diff < 7*24*time.Hour:
		return t.Format("Mon 15:04")
	case diff < 365*24*time.Hour:
		return t.Format("Jan 02 15:04")
	default:
		return t.Format("2006-01-02")
	}
}

func init() {
	rootCmd.AddCommand(conversationsCmd)
}
