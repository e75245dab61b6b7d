package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mkurti/postchat/internal"
	"github.com/mkurti/postchat/internal/export"
	"github.com/spf13/cobra"
)

var (
	exportFormat       string
	exportOutputDir    string
	exportConversation string
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export conversations to file",
	Long: `Export your conversations to various formats (jsonl, md, yaml, json).

All conversations are exported by default; use --conversation to export
a single one. Use 'postchat conversations' to see available ids.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := newAPIClient(cfg)
		if err != nil {
			return err
		}

		exporter, err := export.NewExporter(exportFormat)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		headers, err := client.ListConversations(ctx)
		if err != nil {
			return fmt.Errorf("failed to list conversations: %w", err)
		}
		records, err := client.ListHistory(ctx, historyFetchLimit)
		if err != nil {
			return fmt.Errorf("failed to fetch history: %w", err)
		}

		conversations := internal.GroupHistory(headers, records)
		if exportConversation != "" {
			conversations = filterConversations(conversations, exportConversation)
			if len(conversations) == 0 {
				return fmt.Errorf("conversation %s not found", exportConversation)
			}
		}

		if err := os.MkdirAll(exportOutputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		exported := 0
		for i := range conversations {
			conv := &conversations[i]
			name := fmt.Sprintf("conversation_%s.%s", conv.ConversationID, exporter.Extension())
			path := filepath.Join(exportOutputDir, name)

			f, err := os.Create(path)
			if err != nil {
				return &internal.ExportError{Format: exportFormat, Path: path, Err: err}
			}
			if err := exporter.Export(conv, f); err != nil {
				_ = f.Close()
				return &internal.ExportError{Format: exportFormat, Path: path, Err: err}
			}
			if err := f.Close(); err != nil {
				return &internal.ExportError{Format: exportFormat, Path: path, Err: err}
			}
			exported++
			internal.LogDebug("Exported %s", path)
		}

		internal.PrintSuccess(fmt.Sprintf("Exported %d conversation(s) to %s", exported, exportOutputDir))
		return nil
	},
}

func filterConversations(conversations []internal.Conversation, conversationID string) []internal.Conversation {
	for _, conv := range conversations {
		if conv.ConversationID == conversationID {
			return []internal.Conversation{conv}
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Export format: jsonl, md, yaml, json")
	exportCmd.Flags().StringVar(&exportOutputDir, "output", "exports", "Output directory")
	exportCmd.Flags().StringVar(&exportConversation, "conversation", "", "Export a single conversation id")
}
