// Package credentials holds the immutable Amazon and Google credential
// carriers used to configure rclone remotes and direct SDK clients.
package credentials

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"gopkg.in/ini.v1"
)

// CallerIdentityAPI is the slice of the STS client the package needs;
// tests substitute a fake.
type CallerIdentityAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Amazon carries one set of AWS credentials. Instances are immutable
// after construction and safe to share across goroutines.
type Amazon struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	KMSKeyID        string

	accountOnce   sync.Once
	accountNumber string

	// newSTSClient is replaceable for tests; nil means the real SDK.
	newSTSClient func() CallerIdentityAPI
}

// AmazonOptions configures NewAmazon. Sources are applied in order:
// From (copy), CredentialsFile (INI), then any nonempty field here
// overrides what was populated so far.
type AmazonOptions struct {
	From            *Amazon
	CredentialsFile string
	Section         string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	KMSKeyID        string
}

// Key-name variants recognized in credentials files.
var amazonFileKeys = map[string][]string{
	"access_key_id":     {"aws_access_key_id", "access_key_id"},
	"secret_access_key": {"aws_secret_access_key", "secret_access_key"},
	"session_token":     {"aws_session_token", "session_token"},
	"region":            {"region", "aws_default_region", "default_region"},
	"kms_key_id":        {"kms_key_id", "aws_kms_key_id"},
}

// NewAmazon builds an Amazon credentials object from the given sources.
func NewAmazon(opts AmazonOptions) (*Amazon, error) {
	a := &Amazon{}

	if opts.From != nil {
		a.Region = opts.From.Region
		a.AccessKeyID = opts.From.AccessKeyID
		a.SecretAccessKey = opts.From.SecretAccessKey
		a.SessionToken = opts.From.SessionToken
		a.KMSKeyID = opts.From.KMSKeyID
	}

	if opts.CredentialsFile != "" {
		if err := a.loadFile(opts.CredentialsFile, opts.Section); err != nil {
			return nil, err
		}
	}

	override := func(dst *string, value string) {
		if value != "" {
			*dst = value
		}
	}
	override(&a.Region, opts.Region)
	override(&a.AccessKeyID, opts.AccessKeyID)
	override(&a.SecretAccessKey, opts.SecretAccessKey)
	override(&a.SessionToken, opts.SessionToken)
	override(&a.KMSKeyID, opts.KMSKeyID)

	return a, nil
}

// ObtainAmazon walks the standard sources for credentials: an explicit
// file, the AWS_SHARED_CREDENTIALS_FILE / AWS_CONFIG_FILE environment
// variables, then raw credentials from the process environment. Any
// nonempty field in opts overrides the file-sourced value.
func ObtainAmazon(opts AmazonOptions) (*Amazon, error) {
	file := opts.CredentialsFile
	if file == "" {
		file = os.Getenv("AWS_SHARED_CREDENTIALS_FILE")
	}
	if file == "" {
		file = os.Getenv("AWS_CONFIG_FILE")
	}

	if file != "" {
		opts.CredentialsFile = file
		return NewAmazon(opts)
	}

	// No file anywhere: fall back to raw environment variables.
	env := &Amazon{
		Region:          os.Getenv("AWS_DEFAULT_REGION"),
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
	}
	opts.From = env
	opts.CredentialsFile = ""
	return NewAmazon(opts)
}

// loadFile parses an INI credentials file. A file with no section
// header is tolerated by prepending an implicit [default].
func (a *Amazon) loadFile(path, section string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read credentials file %s: %w", path, err)
	}

	if !hasSectionHeader(data) {
		data = append([]byte("[default]\n"), data...)
	}

	file, err := ini.Load(data)
	if err != nil {
		return fmt.Errorf("malformed credentials file %s: %w", path, err)
	}

	if section == "" {
		section = "default"
	}
	sec, err := file.GetSection(section)
	if err != nil {
		return fmt.Errorf("credentials file %s has no [%s] section", path, section)
	}

	lookup := func(names []string) string {
		for _, name := range names {
			if sec.HasKey(name) {
				return sec.Key(name).String()
			}
		}
		return ""
	}

	override := func(dst *string, value string) {
		if value != "" {
			*dst = value
		}
	}
	override(&a.AccessKeyID, lookup(amazonFileKeys["access_key_id"]))
	override(&a.SecretAccessKey, lookup(amazonFileKeys["secret_access_key"]))
	override(&a.SessionToken, lookup(amazonFileKeys["session_token"]))
	override(&a.Region, lookup(amazonFileKeys["region"]))
	override(&a.KMSKeyID, lookup(amazonFileKeys["kms_key_id"]))
	return nil
}

func hasSectionHeader(data []byte) bool {
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, ";") {
			continue
		}
		return strings.HasPrefix(trimmed, "[")
	}
	return false
}

// Equals compares the five primary fields.
func (a *Amazon) Equals(other *Amazon) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.Region == other.Region &&
		a.AccessKeyID == other.AccessKeyID &&
		a.SecretAccessKey == other.SecretAccessKey &&
		a.SessionToken == other.SessionToken &&
		a.KMSKeyID == other.KMSKeyID
}

// ToMap exports the credentials as a string map. With envNames true the
// keys are environment-variable style (for a subprocess env); otherwise
// they are lowercase SDK-style.
func (a *Amazon) ToMap(envNames bool) map[string]string {
	out := map[string]string{}
	put := func(env, sdk, value string) {
		if value == "" {
			return
		}
		if envNames {
			out[env] = value
		} else {
			out[sdk] = value
		}
	}
	put("AWS_DEFAULT_REGION", "region_name", a.Region)
	put("AWS_ACCESS_KEY_ID", "aws_access_key_id", a.AccessKeyID)
	put("AWS_SECRET_ACCESS_KEY", "aws_secret_access_key", a.SecretAccessKey)
	put("AWS_SESSION_TOKEN", "aws_session_token", a.SessionToken)
	put("AWS_KMS_KEY_ID", "kms_key_id", a.KMSKeyID)
	return out
}

func (a *Amazon) stsClient() CallerIdentityAPI {
	if a.newSTSClient != nil {
		return a.newSTSClient()
	}
	region := a.Region
	if region == "" {
		region = "us-east-1"
	}
	cfg := aws.Config{
		Region: region,
		Credentials: awscreds.NewStaticCredentialsProvider(
			a.AccessKeyID, a.SecretAccessKey, a.SessionToken),
	}
	return sts.NewFromConfig(cfg)
}

// AccountNumber returns the owning AWS account, derived once via the
// caller-identity endpoint. Failure yields empty, not an error.
func (a *Amazon) AccountNumber(ctx context.Context) string {
	a.accountOnce.Do(func() {
		out, err := a.stsClient().GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
		if err != nil || out.Account == nil {
			return
		}
		a.accountNumber = *out.Account
	})
	return a.accountNumber
}

// Ping reports whether the credentials are currently usable.
func (a *Amazon) Ping(ctx context.Context) bool {
	_, err := a.stsClient().GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	return err == nil
}
