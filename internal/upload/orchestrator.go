package upload

import (
	"context"
	"fmt"

	"github.com/helixbio/portal-submit/internal/api"
	"github.com/helixbio/portal-submit/internal/logging"
	"github.com/helixbio/portal-submit/internal/models"
	"github.com/helixbio/portal-submit/internal/progress"
)

// Orchestrator uploads a reviewed batch sequentially. Each file gets
// its own scoped credential, transport, and progress bar; one file's
// failure never stops the rest unless the operator confirmed an
// interrupt.
type Orchestrator struct {
	client *api.Client
	logger *logging.Logger

	// newS3Uploader and newCloudTransfer are swappable for tests.
	newS3Uploader    func(ctx context.Context, cred *models.UploadCredential, kmsKeyID string, logger *logging.Logger) (transport, error)
	newCloudTransfer func(ctx context.Context, cred *models.UploadCredential, kmsKeyID string, logger *logging.Logger) (transport, error)
}

// transport moves one file to its destination.
type transport interface {
	Run(ctx context.Context, f *FileForUpload, s3URI string, cred *models.UploadCredential, bar *progress.Bar) (*UploadResult, error)
}

type s3Transport struct{ u *S3Uploader }

func (t s3Transport) Run(ctx context.Context, f *FileForUpload, s3URI string, cred *models.UploadCredential, bar *progress.Bar) (*UploadResult, error) {
	return t.u.Upload(ctx, f, s3URI, bar)
}

type cloudTransport struct{ t *CloudTransfer }

func (t cloudTransport) Run(ctx context.Context, f *FileForUpload, s3URI string, cred *models.UploadCredential, bar *progress.Bar) (*UploadResult, error) {
	return t.t.Transfer(ctx, f, s3URI, cred, bar)
}

// NewOrchestrator builds an orchestrator over the Portal client.
func NewOrchestrator(client *api.Client, logger *logging.Logger) *Orchestrator {
	return &Orchestrator{
		client: client,
		logger: logger,
		newS3Uploader: func(ctx context.Context, cred *models.UploadCredential, kmsKeyID string, logger *logging.Logger) (transport, error) {
			u, err := NewS3Uploader(ctx, cred, kmsKeyID, logger)
			if err != nil {
				return nil, err
			}
			return s3Transport{u}, nil
		},
		newCloudTransfer: func(ctx context.Context, cred *models.UploadCredential, kmsKeyID string, logger *logging.Logger) (transport, error) {
			t, err := NewCloudTransfer(ctx, cred, kmsKeyID, logger)
			if err != nil {
				return nil, err
			}
			return cloudTransport{t}, nil
		},
	}
}

// UploadAll runs the batch. It returns the per-file results; the error
// is non-nil only when the operator confirmed a stop mid-batch.
func (o *Orchestrator) UploadAll(ctx context.Context, files []*FileForUpload) ([]*UploadResult, error) {
	results := make([]*UploadResult, 0, len(files))
	for _, f := range files {
		if f.Ignore {
			o.logger.Info().Msgf("Skipping %s", f.DisplayName())
			continue
		}

		result, err := o.uploadOne(ctx, f)
		if result != nil {
			results = append(results, result)
		}
		if err != nil {
			if result != nil && result.Aborted {
				o.logger.Error().Msgf("Upload ABORTED: %s", f.Name)
				return results, err
			}
			o.logger.Error().Msgf("%v", err)
			continue
		}

		switch {
		case result.Skipped:
		case result.Ok:
			o.logger.Info().Msgf("Uploaded %s (%d bytes in %s, %s)",
				f.Name, result.BytesTransferred, result.Duration.Round(timeRounding), result.VerificationStatus)
		}
	}
	return results, nil
}

// uploadOne requests the scoped credential, picks the transport, and
// runs the transfer behind a fresh progress bar.
func (o *Orchestrator) uploadOne(ctx context.Context, f *FileForUpload) (*UploadResult, error) {
	cred, err := o.client.PatchFileForUpload(ctx, f.UUID, f.Name)
	if err != nil {
		return nil, fmt.Errorf("unable to obtain upload credentials for %s: %w", f.Name, err)
	}

	kmsKeyID := cred.S3EncryptKeyID
	if kmsKeyID == "" {
		if health, healthErr := o.client.GetHealth(ctx); healthErr == nil {
			kmsKeyID = health.S3EncryptKeyID
		}
	}

	var tr transport
	switch {
	case f.FromLocal(ctx):
		tr, err = o.newS3Uploader(ctx, cred, kmsKeyID, o.logger)
	case f.FromCloud(ctx):
		tr, err = o.newCloudTransfer(ctx, cred, kmsKeyID, o.logger)
	default:
		return nil, fmt.Errorf("upload file not found or ambiguous: %s", f.Name)
	}
	if err != nil {
		return nil, err
	}

	uploadCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	bar := progress.NewBar(f.Name, progress.WithStopFunc(func() bool {
		cancel()
		return true
	}))
	defer bar.Done()

	return tr.Run(uploadCtx, f, cred.UploadURL, cred, bar)
}
