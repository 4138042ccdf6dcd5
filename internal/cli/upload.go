package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/helixbio/portal-submit/internal/api"
	"github.com/helixbio/portal-submit/internal/models"
)

func newUploadCmd() *cobra.Command {
	var search searchFlags

	cmd := &cobra.Command{
		Use:   "upload <uuid>",
		Short: "Upload the data files for a submission or a single file object",
		Long: `Upload data files for a Portal object. The UUID may name an
IngestionSubmission, in which case every file it expects is uploaded,
or a single File object.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd.Context(), args[0], &search)
		},
	}

	search.register(cmd)
	return cmd
}

func runUpload(ctx context.Context, uuid string, search *searchFlags) error {
	client, err := newPortalClient()
	if err != nil {
		return err
	}

	targets, err := uploadTargetsFor(ctx, client, uuid)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		logger.Info().Msgf("Nothing to upload for %s", uuid)
		return nil
	}
	return uploadTargets(ctx, client, targets, search)
}

// uploadTargetsFor classifies the object behind uuid and lists the
// files to upload: every expected file for an IngestionSubmission, the
// object itself for a File.
func uploadTargetsFor(ctx context.Context, client *api.Client, uuid string) ([]models.UploadInfo, error) {
	object, err := client.GetObject(ctx, uuid)
	if err != nil {
		return nil, err
	}
	types := api.ObjectTypes(object)

	if slices.Contains(types, "IngestionSubmission") {
		status, err := client.GetIngestionStatus(ctx, uuid)
		if err != nil {
			return nil, err
		}
		return status.UploadFiles(), nil
	}

	accession, _ := object["accession"].(string)
	filename, _ := object["filename"].(string)
	if filename == "" {
		filename = accession
	}
	if filename == "" {
		return nil, fmt.Errorf("object %s (%v) has no filename to upload", uuid, types)
	}

	target := models.UploadInfo{UUID: uuid, Filename: filename, Accession: accession}
	if len(types) > 0 {
		target.Type = types[0]
	}
	return []models.UploadInfo{target}, nil
}
