package cmd

import (
	"fmt"
	"time"

	"github.com/mkurti/postchat/internal"
	"github.com/spf13/cobra"
)

var (
	uploadProcess bool
	uploadWait    bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file.csv>",
	Short: "Upload a CSV data file",
	Long: `Upload a CSV file to the processing service. With --process the file
is preprocessed (duplicate removal, null filling) right away; --wait
polls until processing finishes and prints the resulting file id.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client := internal.NewUploadClient(cfg.UploadBaseURL)
		ctx := cmd.Context()

		var job *internal.UploadJob
		steps := []internal.ProgressStep{
			{
				Message: "Uploading " + args[0],
				Fn: func() error {
					var uploadErr error
					job, uploadErr = client.Upload(ctx, args[0])
					return uploadErr
				},
			},
		}
		if uploadProcess || uploadWait {
			steps = append(steps, internal.ProgressStep{
				Message: "Starting preprocessing",
				Fn: func() error {
					_, processErr := client.Process(ctx, job.JobID, internal.DefaultProcessOptions())
					return processErr
				},
			})
		}
		if uploadWait {
			steps = append(steps, internal.ProgressStep{
				Message: "Waiting for processing",
				Fn: func() error {
					var waitErr error
					job, waitErr = client.WaitForJob(ctx, job.JobID, 2*time.Second)
					return waitErr
				},
			})
		}

		if err := internal.ShowProgressWithSteps(ctx, steps); err != nil {
			return fmt.Errorf("upload failed: %w", err)
		}

		internal.PrintSuccess(fmt.Sprintf("Uploaded %s (job %s)", job.OriginalFilename, job.JobID))
		if uploadWait {
			if job.Status == internal.JobStatusFailed {
				return fmt.Errorf("processing failed: %s", job.Message)
			}
			internal.PrintSuccess(fmt.Sprintf("Processed: use `postchat chat --file %s`", job.JobID))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().BoolVar(&uploadProcess, "process", false, "Start preprocessing after upload")
	uploadCmd.Flags().BoolVar(&uploadWait, "wait", false, "Wait for processing to finish (implies --process)")
}
