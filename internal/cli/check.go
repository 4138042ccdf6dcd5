package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/helixbio/portal-submit/internal/ingestion"
)

func newCheckCmd() *cobra.Command {
	var (
		wait     int
		attempts int
	)

	cmd := &cobra.Command{
		Use:   "check <uuid>",
		Short: "Check (and wait for) server-side processing of a submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newPortalClient()
			if err != nil {
				return err
			}

			poller := ingestion.NewPoller(client)
			if wait > 0 {
				poller.Wait = secondsDuration(wait)
			}
			if attempts > 0 {
				poller.MaxAttempts = attempts
			}

			result, err := poller.Poll(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !result.Done {
				os.Exit(2)
			}
			if result.Outcome != ingestion.OutcomeSuccess {
				return fmt.Errorf("ingestion of %s ended with outcome %q", args[0], result.Outcome)
			}

			logger.Info().Msgf("Ingestion of %s succeeded", args[0])
			if result.Status != nil {
				for _, f := range result.Status.UploadFiles() {
					fmt.Printf("  expects upload: %s (%s)\n", f.Filename, f.UUID)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&wait, "wait", 0, "Seconds between status checks")
	cmd.Flags().IntVar(&attempts, "attempts", 0, "Maximum number of status checks")
	return cmd
}
