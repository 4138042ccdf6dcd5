package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/helixbio/portal-submit/internal/api"
	"github.com/helixbio/portal-submit/internal/ingestion"
	"github.com/helixbio/portal-submit/internal/models"
	"github.com/helixbio/portal-submit/internal/upload"
)

func newSubmitCmd() *cobra.Command {
	var (
		validateOnly bool
		consortium   string
		center       string
		search       searchFlags
	)

	cmd := &cobra.Command{
		Use:   "submit <workbook>",
		Short: "Submit a metadata workbook and upload its data files",
		Long: `Submit a metadata workbook for ingestion, wait for the Portal to
process it, and upload the data files it references.

Files are located on local disk (see --directory and --sub-directories)
or in a cloud bucket (see --cloud-source); when a file exists in both
places you are asked which copy to upload.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd.Context(), args[0], validateOnly, consortium, center, &search)
		},
	}

	cmd.Flags().BoolVar(&validateOnly, "validate-only", false, "Validate the workbook without ingesting it")
	cmd.Flags().StringVar(&consortium, "consortium", "", "Consortium to submit under (defaults to your profile's)")
	cmd.Flags().StringVar(&center, "submission-center", "", "Submission center to submit under (defaults to your profile's)")
	search.register(cmd)
	return cmd
}

func runSubmit(ctx context.Context, workbook string, validateOnly bool, consortium, center string, search *searchFlags) error {
	if _, err := os.Stat(workbook); err != nil {
		return fmt.Errorf("cannot read workbook %s: %w", workbook, err)
	}

	client, err := newPortalClient()
	if err != nil {
		return err
	}

	profile, err := client.GetUser(ctx)
	if err != nil {
		return fmt.Errorf("cannot identify you to the portal: %w", err)
	}
	logger.Info().Msgf("Submitting as %s <%s>", profile.Title, profile.ContactEmail)

	if consortium == "" && len(profile.Consortia) > 0 {
		consortium = profile.Consortia[0].UUID
	}
	if center == "" && len(profile.SubmissionCenters) > 0 {
		center = profile.SubmissionCenters[0].UUID
	}

	parameters := map[string]string{
		"validate_only": strconv.FormatBool(validateOnly),
	}
	if consortium != "" {
		parameters["consortia"] = consortium
	}
	if center != "" {
		parameters["submission_centers"] = center
	}

	submission, err := client.SubmitForIngestion(ctx, "IngestionSubmission", workbook, parameters)
	if err != nil {
		return err
	}
	logger.Info().Msgf("Submission %s accepted, waiting for processing", submission.SubmissionID)

	result, err := ingestion.NewPoller(client).Poll(ctx, submission.SubmissionID)
	if err != nil {
		return err
	}
	switch {
	case !result.Done:
		os.Exit(2)
	case result.Outcome != ingestion.OutcomeSuccess:
		return fmt.Errorf("ingestion of %s ended with outcome %q", submission.SubmissionID, result.Outcome)
	}

	if validateOnly {
		logger.Info().Msg("Validation succeeded")
		return nil
	}

	targets := result.Status.UploadFiles()
	if len(targets) == 0 {
		logger.Info().Msg("Ingestion succeeded; no files to upload")
		return nil
	}
	return uploadTargets(ctx, client, targets, search)
}

// uploadTargets resolves, reviews, and uploads a batch of Portal upload
// targets. Shared by submit and upload.
func uploadTargets(ctx context.Context, client *api.Client, targets []models.UploadInfo, search *searchFlags) error {
	cfg, err := search.searchConfig()
	if err != nil {
		return err
	}

	files := upload.ResolveAll(targets, cfg)
	upload.NewReviewer().Review(ctx, files)

	if _, err := upload.NewOrchestrator(client, logger).UploadAll(ctx, files); err != nil {
		os.Exit(1)
	}
	return nil
}
