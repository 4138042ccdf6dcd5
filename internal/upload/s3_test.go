package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/helixbio/portal-submit/internal/constants"
	"github.com/helixbio/portal-submit/internal/logging"
	"github.com/helixbio/portal-submit/internal/progress"
)

type fakeS3 struct {
	headOut  *s3.HeadObjectOutput
	headErr  error
	heads    int
	copies   int
	lastCopy *s3.CopyObjectInput
}

func (f *fakeS3) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.heads++
	return f.headOut, f.headErr
}

func (f *fakeS3) CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	f.copies++
	f.lastCopy = params
	return &s3.CopyObjectOutput{}, nil
}

type fakeUploader struct {
	input *s3.PutObjectInput
	err   error
	drain bool
}

func (f *fakeUploader) Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	f.input = input
	if f.drain {
		_, _ = io.Copy(io.Discard, input.Body)
	}
	return &manager.UploadOutput{}, f.err
}

func localFile(t *testing.T, content string) *FileForUpload {
	t.Helper()
	path := filepath.Join(t.TempDir(), "f.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return &FileForUpload{Name: "f.txt", LocalPath: path}
}

func newTestUploader(api s3API, up uploadAPI, in string) (*S3Uploader, *bytes.Buffer) {
	var out bytes.Buffer
	return &S3Uploader{
		api:      api,
		uploader: up,
		kmsKeyID: "kms-1",
		logger:   logging.NewLogger(io.Discard),
		in:       strings.NewReader(in),
		out:      &out,
	}, &out
}

func quietBar() *progress.Bar {
	return progress.NewBar("test", progress.WithWriter(io.Discard))
}

func TestS3UploadHappyPath(t *testing.T) {
	f := localFile(t, "hello world")
	api := &fakeS3{headErr: errors.New("404")}
	up := &fakeUploader{drain: true}
	u, _ := newTestUploader(api, up, "")

	bar := quietBar()
	defer bar.Done()

	// After the upload, the verification head sees the right size.
	verified := &s3.HeadObjectOutput{
		ContentLength: aws.Int64(11),
		Metadata:      map[string]string{constants.MetadataMD5: "5eb63bbbe01eeed093cb22bb8f5acdc3"},
	}
	api.headOut = verified
	api.headErr = nil
	// First head (pre-check) should miss; simulate with a one-shot error.
	preCheck := &fakeS3{headErr: errors.New("404")}
	u.api = &sequencedS3{first: preCheck, rest: api}

	result, err := u.Upload(context.Background(), f, "s3://dest-bucket/key.txt", bar)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Ok || result.VerificationStatus != "verified" {
		t.Errorf("result = %+v", result)
	}
	if result.MD5 != "5eb63bbbe01eeed093cb22bb8f5acdc3" {
		t.Errorf("MD5 = %q", result.MD5)
	}

	input := up.input
	if aws.ToString(input.Bucket) != "dest-bucket" || aws.ToString(input.Key) != "key.txt" {
		t.Errorf("destination = %s/%s", aws.ToString(input.Bucket), aws.ToString(input.Key))
	}
	if input.ServerSideEncryption != types.ServerSideEncryptionAwsKms || aws.ToString(input.SSEKMSKeyId) != "kms-1" {
		t.Error("KMS settings must be forwarded")
	}
	if input.Metadata[constants.MetadataMD5Source] != constants.MD5SourceFileSystem {
		t.Errorf("metadata = %v", input.Metadata)
	}
	if input.Metadata[constants.MetadataMD5Timestamp] == "" {
		t.Error("md5 timestamp must be set")
	}
}

// sequencedS3 serves the first HeadObject from one fake and the rest
// from another, modelling a pre-check miss followed by verification.
type sequencedS3 struct {
	first s3API
	rest  s3API
	used  bool
}

func (s *sequencedS3) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if !s.used {
		s.used = true
		return s.first.HeadObject(ctx, params, optFns...)
	}
	return s.rest.HeadObject(ctx, params, optFns...)
}

func (s *sequencedS3) CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	return s.rest.CopyObject(ctx, params, optFns...)
}

func TestS3UploadNoKMS(t *testing.T) {
	f := localFile(t, "data")
	up := &fakeUploader{drain: true}
	u, _ := newTestUploader(&fakeS3{headErr: errors.New("404")}, up, "")
	u.kmsKeyID = ""

	bar := quietBar()
	defer bar.Done()

	if _, err := u.Upload(context.Background(), f, "s3://b/k", bar); err != nil {
		t.Fatal(err)
	}
	if up.input.ServerSideEncryption != "" || up.input.SSEKMSKeyId != nil {
		t.Error("no KMS key id, no encryption arguments")
	}
}

func TestS3UploadExistingSameChecksumSkip(t *testing.T) {
	f := localFile(t, "hello world")
	api := &fakeS3{headOut: &s3.HeadObjectOutput{
		ContentLength: aws.Int64(11),
		LastModified:  aws.Time(time.Now()),
		Metadata:      map[string]string{constants.MetadataMD5: "5eb63bbbe01eeed093cb22bb8f5acdc3"},
	}}
	up := &fakeUploader{}
	u, out := newTestUploader(api, up, "n\n")

	bar := quietBar()
	defer bar.Done()

	result, err := u.Upload(context.Background(), f, "s3://b/k", bar)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Skipped {
		t.Fatalf("result = %+v, want skipped", result)
	}
	if up.input != nil {
		t.Error("declined overwrite must not upload")
	}
	if !strings.Contains(out.String(), "These files appear to be the same | checksum: 5eb63bbbe01eeed093cb22bb8f5acdc3") {
		t.Errorf("missing same-file notice: %q", out.String())
	}
	if !strings.Contains(out.String(), "Skipping upload.") {
		t.Errorf("missing skip notice: %q", out.String())
	}
}

func TestS3UploadExistingOverwrite(t *testing.T) {
	f := localFile(t, "data")
	api := &fakeS3{headOut: &s3.HeadObjectOutput{
		ContentLength: aws.Int64(999),
		LastModified:  aws.Time(time.Now()),
	}}
	up := &fakeUploader{drain: true}
	u, _ := newTestUploader(api, up, "y\n")

	bar := quietBar()
	defer bar.Done()

	result, err := u.Upload(context.Background(), f, "s3://b/k", bar)
	if err != nil {
		t.Fatal(err)
	}
	if result.Skipped || up.input == nil {
		t.Error("confirmed overwrite must upload")
	}
}

func TestS3UploadVerifySizeMismatch(t *testing.T) {
	f := localFile(t, "data")
	api := &sequencedS3{
		first: &fakeS3{headErr: errors.New("404")},
		rest:  &fakeS3{headOut: &s3.HeadObjectOutput{ContentLength: aws.Int64(3)}},
	}
	u, _ := newTestUploader(api, &fakeUploader{drain: true}, "")

	bar := quietBar()
	defer bar.Done()

	result, err := u.Upload(context.Background(), f, "s3://b/k", bar)
	if err != nil {
		t.Fatal(err)
	}
	if result.VerificationStatus != "size-mismatch" {
		t.Errorf("VerificationStatus = %q", result.VerificationStatus)
	}
}

func TestS3UploadInvalidDestination(t *testing.T) {
	f := localFile(t, "data")
	u, _ := newTestUploader(&fakeS3{}, &fakeUploader{}, "")

	bar := quietBar()
	defer bar.Done()

	if _, err := u.Upload(context.Background(), f, "s3://bucket-only", bar); err == nil {
		t.Error("destination without a key must be rejected")
	}
}
