package upload

import (
	"context"
	"fmt"
	"io"
	"net"
	nethttp "net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/helixbio/portal-submit/internal/cloudpath"
	"github.com/helixbio/portal-submit/internal/constants"
	"github.com/helixbio/portal-submit/internal/logging"
	"github.com/helixbio/portal-submit/internal/models"
	"github.com/helixbio/portal-submit/internal/progress"
)

// s3API is the slice of the S3 client the uploader needs; narrowed so
// tests can fake it.
type s3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
}

// uploadAPI matches manager.Uploader's entry point.
type uploadAPI interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Uploader streams one local file to its scoped S3 destination with
// md5 provenance metadata and post-upload verification.
type S3Uploader struct {
	api      s3API
	uploader uploadAPI
	kmsKeyID string
	logger   *logging.Logger

	in  io.Reader
	out io.Writer
}

// NewS3Uploader builds an uploader from the Portal-issued scoped
// credential. kmsKeyID may be empty; then no server-side encryption
// arguments are sent.
func NewS3Uploader(ctx context.Context, cred *models.UploadCredential, kmsKeyID string, logger *logging.Logger) (*S3Uploader, error) {
	client, err := newScopedS3Client(ctx, cred)
	if err != nil {
		return nil, err
	}
	return &S3Uploader{
		api:      client,
		uploader: manager.NewUploader(client),
		kmsKeyID: kmsKeyID,
		logger:   logger,
		in:       os.Stdin,
		out:      os.Stdout,
	}, nil
}

// newScopedS3Client builds an S3 client over the one-shot scoped
// credential. Connect timeout only: multipart uploads hold connections
// for as long as the file takes.
func newScopedS3Client(ctx context.Context, cred *models.UploadCredential) (*s3.Client, error) {
	httpClient := &nethttp.Client{
		Transport: &nethttp.Transport{
			DialContext: (&net.Dialer{Timeout: constants.UploadConnectTimeout}).DialContext,
		},
	}
	region := os.Getenv("AWS_DEFAULT_REGION")
	if region == "" {
		region = "us-east-1"
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithHTTPClient(httpClient),
		awsconfig.WithCredentialsProvider(awscreds.NewStaticCredentialsProvider(
			cred.AccessKeyID,
			cred.SecretAccessKey,
			cred.SessionToken,
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("cannot configure S3 client: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

// uploadMetadata builds the md5 provenance metadata attached to every
// uploaded object.
func uploadMetadata(md5sum, source string) map[string]string {
	return map[string]string{
		constants.MetadataMD5:          md5sum,
		constants.MetadataMD5Timestamp: time.Now().UTC().Format(time.RFC3339),
		constants.MetadataMD5Source:    source,
	}
}

// Upload streams the file's local copy to s3URI. The destination is
// head-checked first; when an object already exists the operator
// decides whether to overwrite. Progress feeds the given bar.
func (u *S3Uploader) Upload(ctx context.Context, f *FileForUpload, s3URI string, bar *progress.Bar) (*UploadResult, error) {
	bucket, key := cloudpath.BucketAndKey(s3URI, "")
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("invalid upload destination %q", s3URI)
	}

	info, err := os.Stat(f.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", f.LocalPath, err)
	}
	size := info.Size()

	proceed, err := u.checkExisting(ctx, f, bucket, key, size)
	if err != nil {
		return nil, err
	}
	if !proceed {
		fmt.Fprintln(u.out, "Skipping upload.")
		return &UploadResult{Ok: true, Skipped: true}, nil
	}

	md5sum, err := f.LocalChecksum()
	if err != nil {
		return nil, err
	}

	file, err := os.Open(f.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", f.LocalPath, err)
	}
	defer file.Close()

	bar.SetTotal(size)

	input := &s3.PutObjectInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		Body:     progress.NewReader(file, bar),
		Metadata: uploadMetadata(md5sum, constants.MD5SourceFileSystem),
	}
	if u.kmsKeyID != "" {
		input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
		input.SSEKMSKeyId = aws.String(u.kmsKeyID)
	}

	start := time.Now()
	if _, err := u.uploader.Upload(ctx, input); err != nil {
		if ctx.Err() != nil || bar.StopRequested() {
			return &UploadResult{Aborted: true, Duration: time.Since(start)},
				fmt.Errorf("upload aborted: %s", f.Name)
		}
		return nil, fmt.Errorf("upload of %s failed: %w", f.Name, err)
	}
	duration := time.Since(start)

	verification := u.verify(ctx, bucket, key, size, md5sum)
	return &UploadResult{
		Ok:                 true,
		BytesTransferred:   size,
		Duration:           duration,
		MD5:                md5sum,
		VerificationStatus: verification,
	}, nil
}

// checkExisting head-checks the destination and, when an object is
// already there, reports its size and modification date and asks the
// operator whether to overwrite. Returns false to skip the upload.
func (u *S3Uploader) checkExisting(ctx context.Context, f *FileForUpload, bucket, key string, localSize int64) (bool, error) {
	head, err := u.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		// Not found (or scoped credentials cannot head): nothing to
		// overwrite.
		return true, nil
	}

	existingSize := aws.ToInt64(head.ContentLength)
	fmt.Fprintf(u.out, "Destination already has %s: %d bytes, modified %s\n",
		key, existingSize, aws.ToTime(head.LastModified).Format(time.RFC3339))

	if existingSize == localSize {
		if existingMD5 := head.Metadata[constants.MetadataMD5]; existingMD5 != "" {
			localMD5 := u.localMD5ForComparison(f, localSize)
			if localMD5 != "" && localMD5 == existingMD5 {
				fmt.Fprintf(u.out, "These files appear to be the same | checksum: %s\n", localMD5)
			}
		}
	}

	return AskYesNo(u.in, u.out, "Overwrite the existing object?"), nil
}

// localMD5ForComparison computes the local md5, first asking the
// operator when the file is large enough that the hash alone takes
// real time.
func (u *S3Uploader) localMD5ForComparison(f *FileForUpload, size int64) string {
	if size > constants.LargeFileChecksumThreshold {
		question := fmt.Sprintf("%s is %d bytes; computing its checksum may take a while. Compute it?", f.Name, size)
		if !AskYesNo(u.in, u.out, question) {
			return ""
		}
	}
	sum, err := f.LocalChecksum()
	if err != nil {
		u.logger.Warn().Msgf("cannot checksum %s: %v", f.LocalPath, err)
		return ""
	}
	return sum
}

// verify head-checks the uploaded object. A size mismatch or missing
// object fails verification; an md5 mismatch only warns, since some
// destinations rewrite metadata.
func (u *S3Uploader) verify(ctx context.Context, bucket, key string, size int64, md5sum string) string {
	head, err := u.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		u.logger.Warn().Msgf("cannot verify upload of %s: %v", key, err)
		return "unverified"
	}
	if got := aws.ToInt64(head.ContentLength); got != size {
		u.logger.Warn().Msgf("size mismatch after upload of %s: %d uploaded, %d stored", key, size, got)
		return "size-mismatch"
	}
	if stored := head.Metadata[constants.MetadataMD5]; stored != "" && md5sum != "" && stored != md5sum {
		u.logger.Warn().Msgf("md5 mismatch after upload of %s: %s local, %s stored", key, md5sum, stored)
		return "md5-mismatch"
	}
	return "verified"
}
