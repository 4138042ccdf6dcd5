package upload

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/helixbio/portal-submit/internal/cloudpath"
	"github.com/helixbio/portal-submit/internal/constants"
	"github.com/helixbio/portal-submit/internal/credentials"
	"github.com/helixbio/portal-submit/internal/logging"
	"github.com/helixbio/portal-submit/internal/models"
	"github.com/helixbio/portal-submit/internal/progress"
	"github.com/helixbio/portal-submit/internal/rclone"
)

// CloudTransfer moves a file from its cloud source to the scoped S3
// destination by server-side copy through rclone, then rewrites the
// destination metadata with the source-side md5.
type CloudTransfer struct {
	runner   *rclone.Runner
	api      s3API
	kmsKeyID string
	logger   *logging.Logger
}

// NewCloudTransfer builds a transfer using the Portal-issued scoped
// credential for the destination side.
func NewCloudTransfer(ctx context.Context, cred *models.UploadCredential, kmsKeyID string, logger *logging.Logger) (*CloudTransfer, error) {
	client, err := newScopedS3Client(ctx, cred)
	if err != nil {
		return nil, err
	}
	return &CloudTransfer{
		runner:   rclone.NewRunner(),
		api:      client,
		kmsKeyID: kmsKeyID,
		logger:   logger,
	}, nil
}

// Transfer copies the file's cloud copy to s3URI. Progress feeds the
// given bar. The metadata rewrite happens only after rclone exits
// successfully.
func (t *CloudTransfer) Transfer(ctx context.Context, f *FileForUpload, s3URI string, cred *models.UploadCredential, bar *progress.Bar) (*UploadResult, error) {
	source := f.CloudSource()
	if source == nil || !f.FoundCloud(ctx) {
		return nil, fmt.Errorf("no cloud copy of %s to transfer", f.Name)
	}

	bucket, key := cloudpath.BucketAndKey(s3URI, "")
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("invalid upload destination %q", s3URI)
	}

	sourceMD5, err := source.FileChecksum(ctx, f.Name)
	if err != nil {
		t.logger.Warn().Msgf("cannot read source checksum of %s: %v", f.Name, err)
	}
	size := f.CloudSize(ctx)
	bar.SetTotal(size)

	destination := rclone.NewAmazonStore(&credentials.Amazon{
		AccessKeyID:     cred.AccessKeyID,
		SecretAccessKey: cred.SecretAccessKey,
		SessionToken:    cred.SessionToken,
		KMSKeyID:        t.kmsKeyID,
	}, bucket)

	cfg, err := rclone.WriteConfigFile(false, source, destination)
	if err != nil {
		return nil, err
	}
	defer cfg.Close()

	start := time.Now()
	_, err = t.runner.CopyTo(ctx, cfg.Path(), source.Path(f.Name), destination.Path(key), func(n int64) {
		bar.SetProgress(n)
	})
	if err != nil {
		if ctx.Err() != nil || bar.StopRequested() {
			return &UploadResult{Aborted: true, Duration: time.Since(start)},
				fmt.Errorf("upload aborted: %s", f.Name)
		}
		return nil, fmt.Errorf("transfer of %s failed: %w", f.Name, err)
	}
	duration := time.Since(start)

	if err := t.attachMetadata(ctx, bucket, key, sourceMD5); err != nil {
		t.logger.Warn().Msgf("cannot attach metadata to %s: %v", key, err)
	}

	verification := t.verify(ctx, bucket, key, size, sourceMD5)
	return &UploadResult{
		Ok:                 true,
		BytesTransferred:   size,
		Duration:           duration,
		MD5:                sourceMD5,
		VerificationStatus: verification,
	}, nil
}

// attachMetadata rewrites the destination object in place with the md5
// provenance metadata rclone did not set. The copy keeps the key and
// re-applies server-side encryption, which an in-place copy otherwise
// drops.
func (t *CloudTransfer) attachMetadata(ctx context.Context, bucket, key, sourceMD5 string) error {
	input := &s3.CopyObjectInput{
		Bucket:            aws.String(bucket),
		Key:               aws.String(key),
		CopySource:        aws.String(bucket + "/" + key),
		MetadataDirective: types.MetadataDirectiveReplace,
		Metadata:          uploadMetadata(sourceMD5, constants.MD5SourceGoogleCloudStorage),
	}
	if t.kmsKeyID != "" {
		input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
		input.SSEKMSKeyId = aws.String(t.kmsKeyID)
	}
	_, err := t.api.CopyObject(ctx, input)
	return err
}

func (t *CloudTransfer) verify(ctx context.Context, bucket, key string, size int64, md5sum string) string {
	head, err := t.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		t.logger.Warn().Msgf("cannot verify transfer of %s: %v", key, err)
		return "unverified"
	}
	if got := aws.ToInt64(head.ContentLength); got != size {
		t.logger.Warn().Msgf("size mismatch after transfer of %s: %d at source, %d stored", key, size, got)
		return "size-mismatch"
	}
	if stored := head.Metadata[constants.MetadataMD5]; stored != "" && md5sum != "" && stored != md5sum {
		t.logger.Warn().Msgf("md5 mismatch after transfer of %s: %s at source, %s stored", key, md5sum, stored)
		return "md5-mismatch"
	}
	return "verified"
}
