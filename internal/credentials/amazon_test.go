package credentials

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

func writeCredentialsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewAmazonFromFile(t *testing.T) {
	path := writeCredentialsFile(t, `[default]
aws_access_key_id = AKIAEXAMPLE
aws_secret_access_key = wJalrXUtnFEMI
aws_session_token = FQoGZXIvYXdzEBc
region = us-west-2
kms_key_id = key-1234
`)

	a, err := NewAmazon(AmazonOptions{CredentialsFile: path})
	if err != nil {
		t.Fatalf("NewAmazon: %v", err)
	}
	if a.AccessKeyID != "AKIAEXAMPLE" {
		t.Errorf("AccessKeyID = %q", a.AccessKeyID)
	}
	if a.SecretAccessKey != "wJalrXUtnFEMI" {
		t.Errorf("SecretAccessKey = %q", a.SecretAccessKey)
	}
	if a.SessionToken != "FQoGZXIvYXdzEBc" {
		t.Errorf("SessionToken = %q", a.SessionToken)
	}
	if a.Region != "us-west-2" {
		t.Errorf("Region = %q", a.Region)
	}
	if a.KMSKeyID != "key-1234" {
		t.Errorf("KMSKeyID = %q", a.KMSKeyID)
	}
}

func TestNewAmazonFileWithoutSectionHeader(t *testing.T) {
	content := `aws_access_key_id = AKIANOSECTION
aws_secret_access_key = secret
region = us-east-1
`
	withHeader, err := NewAmazon(AmazonOptions{
		CredentialsFile: writeCredentialsFile(t, "[default]\n"+content),
	})
	if err != nil {
		t.Fatal(err)
	}
	withoutHeader, err := NewAmazon(AmazonOptions{
		CredentialsFile: writeCredentialsFile(t, content),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !withHeader.Equals(withoutHeader) {
		t.Errorf("headerless file should parse like [default]: %+v vs %+v", withHeader, withoutHeader)
	}
}

func TestNewAmazonFieldSynonyms(t *testing.T) {
	path := writeCredentialsFile(t, `[default]
access_key_id = AKIASHORT
secret_access_key = shortsecret
session_token = shorttoken
aws_default_region = eu-central-1
`)
	a, err := NewAmazon(AmazonOptions{CredentialsFile: path})
	if err != nil {
		t.Fatal(err)
	}
	if a.AccessKeyID != "AKIASHORT" || a.SecretAccessKey != "shortsecret" ||
		a.SessionToken != "shorttoken" || a.Region != "eu-central-1" {
		t.Errorf("synonym keys not recognized: %+v", a)
	}
}

func TestNewAmazonNamedSection(t *testing.T) {
	path := writeCredentialsFile(t, `[default]
aws_access_key_id = AKIADEFAULT
[other]
aws_access_key_id = AKIAOTHER
`)
	a, err := NewAmazon(AmazonOptions{CredentialsFile: path, Section: "other"})
	if err != nil {
		t.Fatal(err)
	}
	if a.AccessKeyID != "AKIAOTHER" {
		t.Errorf("AccessKeyID = %q, want AKIAOTHER", a.AccessKeyID)
	}

	if _, err := NewAmazon(AmazonOptions{CredentialsFile: path, Section: "missing"}); err == nil {
		t.Error("expected error for missing section")
	}
}

func TestNewAmazonKeywordOverridesFile(t *testing.T) {
	path := writeCredentialsFile(t, `[default]
aws_access_key_id = AKIAFILE
aws_secret_access_key = filesecret
region = us-east-1
`)
	a, err := NewAmazon(AmazonOptions{
		CredentialsFile: path,
		AccessKeyID:     "AKIAEXPLICIT",
	})
	if err != nil {
		t.Fatal(err)
	}
	if a.AccessKeyID != "AKIAEXPLICIT" {
		t.Errorf("explicit AccessKeyID should override file, got %q", a.AccessKeyID)
	}
	if a.SecretAccessKey != "filesecret" {
		t.Errorf("file SecretAccessKey should be preserved, got %q", a.SecretAccessKey)
	}
}

func TestNewAmazonCopyConstruct(t *testing.T) {
	original := &Amazon{
		Region:          "us-east-1",
		AccessKeyID:     "AKIACOPY",
		SecretAccessKey: "copysecret",
	}
	a, err := NewAmazon(AmazonOptions{From: original})
	if err != nil {
		t.Fatal(err)
	}
	if !a.Equals(original) {
		t.Errorf("copy differs: %+v vs %+v", a, original)
	}
}

func TestObtainAmazonFromEnvironment(t *testing.T) {
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "")
	t.Setenv("AWS_CONFIG_FILE", "")
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIAENV")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "envsecret")
	t.Setenv("AWS_SESSION_TOKEN", "envtoken")
	t.Setenv("AWS_DEFAULT_REGION", "us-east-2")

	a, err := ObtainAmazon(AmazonOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if a.AccessKeyID != "AKIAENV" || a.Region != "us-east-2" {
		t.Errorf("environment credentials not picked up: %+v", a)
	}
}

func TestObtainAmazonSharedCredentialsFileEnv(t *testing.T) {
	path := writeCredentialsFile(t, `[default]
aws_access_key_id = AKIASHARED
aws_secret_access_key = sharedsecret
`)
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", path)
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIAIGNORED")

	a, err := ObtainAmazon(AmazonOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if a.AccessKeyID != "AKIASHARED" {
		t.Errorf("AccessKeyID = %q, want file value", a.AccessKeyID)
	}
}

func TestAmazonEquality(t *testing.T) {
	a := &Amazon{Region: "r", AccessKeyID: "k", SecretAccessKey: "s", SessionToken: "t", KMSKeyID: "m"}
	b := &Amazon{Region: "r", AccessKeyID: "k", SecretAccessKey: "s", SessionToken: "t", KMSKeyID: "m"}

	if !a.Equals(a) {
		t.Error("equality must be reflexive")
	}
	if !a.Equals(b) {
		t.Error("identical fields must compare equal")
	}
	b2, err := NewAmazon(AmazonOptions{From: b, SessionToken: "different"})
	if err != nil {
		t.Fatal(err)
	}
	if a.Equals(b2) {
		t.Error("differing session token must compare unequal")
	}
}

func TestAmazonToMap(t *testing.T) {
	a := &Amazon{
		Region:          "us-east-1",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "secret",
	}

	env := a.ToMap(true)
	if env["AWS_ACCESS_KEY_ID"] != "AKIA" || env["AWS_DEFAULT_REGION"] != "us-east-1" {
		t.Errorf("env map = %v", env)
	}
	if _, ok := env["AWS_SESSION_TOKEN"]; ok {
		t.Error("empty fields must be omitted")
	}

	sdk := a.ToMap(false)
	if sdk["aws_access_key_id"] != "AKIA" || sdk["region_name"] != "us-east-1" {
		t.Errorf("sdk map = %v", sdk)
	}
}

type fakeSTS struct {
	account string
	err     error
	calls   int
}

func (f *fakeSTS) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &sts.GetCallerIdentityOutput{Account: aws.String(f.account)}, nil
}

func TestAccountNumberMemoized(t *testing.T) {
	fake := &fakeSTS{account: "123456789012"}
	a := &Amazon{newSTSClient: func() CallerIdentityAPI { return fake }}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if got := a.AccountNumber(ctx); got != "123456789012" {
			t.Errorf("AccountNumber = %q", got)
		}
	}
	if fake.calls != 1 {
		t.Errorf("caller identity fetched %d times, want 1", fake.calls)
	}
}

func TestAccountNumberFailureIsEmpty(t *testing.T) {
	fake := &fakeSTS{err: errors.New("denied")}
	a := &Amazon{newSTSClient: func() CallerIdentityAPI { return fake }}
	if got := a.AccountNumber(context.Background()); got != "" {
		t.Errorf("AccountNumber on failure = %q, want empty", got)
	}
}

func TestPing(t *testing.T) {
	okCreds := &Amazon{newSTSClient: func() CallerIdentityAPI { return &fakeSTS{account: "1"} }}
	if !okCreds.Ping(context.Background()) {
		t.Error("Ping should succeed")
	}
	badCreds := &Amazon{newSTSClient: func() CallerIdentityAPI { return &fakeSTS{err: errors.New("no")} }}
	if badCreds.Ping(context.Background()) {
		t.Error("Ping should fail")
	}
}
