package cmd

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/mkurti/postchat/internal"
	"github.com/spf13/cobra"
)

var (
	visualizeOutput       string
	visualizeConversation string
)

var visualizeCmd = &cobra.Command{
	Use:   "visualize",
	Short: "Generate a shipment flow visualization",
	Long: `Ask the service to render a visualization of the current shipment
data and write the resulting image to a file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := newAPIClient(cfg)
		if err != nil {
			return err
		}

		var result *internal.VisualizationResult
		err = internal.ShowProgress(cmd.Context(), "Rendering visualization", func() error {
			var vizErr error
			result, vizErr = client.Visualize(cmd.Context(), visualizeConversation)
			return vizErr
		})
		if err != nil {
			return fmt.Errorf("visualization failed: %w", err)
		}

		image, err := decodeDataURL(result.Image)
		if err != nil {
			return err
		}
		if err := os.WriteFile(visualizeOutput, image, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", visualizeOutput, err)
		}

		internal.PrintSuccess("Wrote " + visualizeOutput)
		return nil
	},
}

// decodeDataURL extracts the payload of a data:image/...;base64 URL
func decodeDataURL(dataURL string) ([]byte, error) {
	_, encoded, found := strings.Cut(dataURL, ",")
	if !found || !strings.HasPrefix(dataURL, "data:") {
		return nil, fmt.Errorf("unexpected image payload (not a data URL)")
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image payload: %w", err)
	}
	return decoded, nil
}

func init() {
	rootCmd.AddCommand(visualizeCmd)
	visualizeCmd.Flags().StringVar(&visualizeOutput, "output", "visualization.png", "Output image path")
	visualizeCmd.Flags().StringVar(&visualizeConversation, "conversation", "", "Conversation id to associate with the chart")
}
