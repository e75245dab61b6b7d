package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mkurti/postchat/internal"
	"github.com/spf13/cobra"
)

var (
	chatFileID         string
	chatConversationID string

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat about a data file",
	Long: `Start an interactive chat session about an uploaded data file.

A conversation is started (or resumed with --conversation) and every
question is answered by the analytics service in the context of the
selected file.

Inside the session:
  /switch <id>   switch to another conversation (transcript clears)
  /resume <id>   load another conversation including its messages
  /quit          leave the session`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := newAPIClient(cfg)
		if err != nil {
			return err
		}

		session := internal.NewSessionManager(client)
		session.SetEmbeddingProvider(cfg.EmbeddingProvider)
		session.SetNotifier(internal.PrintWarning)

		ctx := cmd.Context()

		if err := session.SelectFile(ctx, chatFileID); err != nil {
			return fmt.Errorf("failed to start session: %w", err)
		}
		if chatConversationID != "" {
			if err := session.ResumeOrStart(ctx, chatConversationID); err != nil {
				return fmt.Errorf("failed to resume conversation: %w", err)
			}
		}

		printTranscript(session.Transcript())
		return runChatLoop(ctx, session)
	},
}

func runChatLoop(ctx context.Context, session *internal.SessionManager) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(promptStyle.Render("> "))
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			done, err := runChatCommand(ctx, session, line)
			if err != nil {
				internal.PrintError(err.Error())
			}
			if done {
				return nil
			}
			continue
		}

		before := len(session.Transcript())
		err := sendWithProgress(ctx, session, line)
		switch {
		case errors.Is(err, internal.ErrSendPending):
			// Serialized sends: the guard rejects rather than queues
			continue
		case errors.Is(err, errSendFailed):
			// Apology already appended; fall through to display it
		case errors.Is(err, internal.ErrEmptyMessage), errors.Is(err, internal.ErrNoFileSelected):
			internal.PrintWarning(err.Error())
			continue
		case err != nil:
			internal.PrintError(err.Error())
			continue
		}

		transcript := session.Transcript()
		for _, msg := range transcript[min(before+1, len(transcript)):] {
			printMessage(msg)
		}
	}
}

// errSendFailed marks a send whose failure is recorded in the transcript.
// SendMessage resolves nil in that case; the spinner still needs an error
// to render the failure mark instead of a success check.
var errSendFailed = errors.New("send failed")

func sendWithProgress(ctx context.Context, session *internal.SessionManager, line string) error {
	return internal.ShowProgress(ctx, "Thinking...", func() error {
		if err := session.SendMessage(ctx, line); err != nil {
			return err
		}
		transcript := session.Transcript()
		if len(transcript) > 0 && transcript[len(transcript)-1].Content == internal.SendFailureText {
			return errSendFailed
		}
		return nil
	})
}

func runChatCommand(ctx context.Context, session *internal.SessionManager, line string) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/switch":
		if len(fields) != 2 {
			return false, fmt.Errorf("usage: /switch <conversation-id>")
		}
		if err := session.SwitchConversation(fields[1]); err != nil {
			return false, err
		}
		internal.PrintInfo("Switched to conversation " + fields[1] + " (history not loaded; use /resume to load it)")
		return false, nil
	case "/resume":
		if len(fields) != 2 {
			return false, fmt.Errorf("usage: /resume <conversation-id>")
		}
		if err := session.ResumeOrStart(ctx, fields[1]); err != nil {
			return false, err
		}
		printTranscript(session.Transcript())
		return false, nil
	default:
		return false, fmt.Errorf("unknown command %s", fields[0])
	}
}

func printTranscript(messages []internal.Message) {
	for _, msg := range messages {
		printMessage(msg)
	}
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatFileID, "file", "", "Data file id to chat about")
	chatCmd.Flags().StringVar(&chatConversationID, "conversation", "", "Conversation id to resume")
	_ = chatCmd.MarkFlagRequired("file")
}
