package rclone

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/helixbio/portal-submit/internal/cloudpath"
	"github.com/helixbio/portal-submit/internal/credentials"
)

// Provider identifies the cloud backend an rclone remote talks to.
type Provider string

const (
	ProviderAmazon Provider = "amazon"
	ProviderGoogle Provider = "google"
)

// Store is one rclone remote: a provider, optional bucket (possibly
// bucket/prefix), and the credentials rclone needs to reach it. The
// remote name is random per store so config files for concurrent
// transfers never collide.
type Store struct {
	Name   string
	Bucket string

	Provider Provider
	Amazon   *credentials.Amazon
	Google   *credentials.Google

	runner *Runner
}

// NewAmazonStore returns a store over S3 with the given credentials.
func NewAmazonStore(creds *credentials.Amazon, bucket string) *Store {
	return &Store{
		Name:     uuid.NewString(),
		Bucket:   strings.TrimPrefix(bucket, cloudpath.AmazonPrefix),
		Provider: ProviderAmazon,
		Amazon:   creds,
		runner:   NewRunner(),
	}
}

// NewGoogleStore returns a store over Google Cloud Storage.
func NewGoogleStore(creds *credentials.Google, bucket string) *Store {
	return &Store{
		Name:     uuid.NewString(),
		Bucket:   strings.TrimPrefix(bucket, cloudpath.GooglePrefix),
		Provider: ProviderGoogle,
		Google:   creds,
		runner:   NewRunner(),
	}
}

// StoreForPath builds a store for a scheme-prefixed cloud path such as
// s3://bucket/key or gs://bucket/key, resolving credentials for the
// matching provider. credentialsFile is an INI credentials file for
// Amazon, a service account file for Google; location applies to
// Google only.
func StoreForPath(path, credentialsFile, location string) (*Store, error) {
	switch {
	case strings.HasPrefix(path, cloudpath.AmazonPrefix):
		creds, err := credentials.ObtainAmazon(credentials.AmazonOptions{CredentialsFile: credentialsFile})
		if err != nil {
			return nil, err
		}
		return NewAmazonStore(creds, cloudpath.StripPrefix(path)), nil
	case strings.HasPrefix(path, cloudpath.GooglePrefix):
		creds, err := credentials.ObtainGoogle(credentialsFile, location)
		if err != nil {
			return nil, err
		}
		return NewGoogleStore(creds, cloudpath.StripPrefix(path)), nil
	default:
		return nil, fmt.Errorf("unsupported cloud path %q: expected an s3:// or gs:// prefix", path)
	}
}

// ConfigEntries returns the rclone remote section for this store, in
// emission order. Empty values are dropped by the config writer.
func (s *Store) ConfigEntries() []ConfigEntry {
	switch s.Provider {
	case ProviderAmazon:
		entries := []ConfigEntry{
			{"type", "s3"},
			{"provider", "AWS"},
			{"access_key_id", s.Amazon.AccessKeyID},
			{"secret_access_key", s.Amazon.SecretAccessKey},
			{"session_token", s.Amazon.SessionToken},
			{"region", s.Amazon.Region},
		}
		if s.Amazon.KMSKeyID != "" {
			entries = append(entries,
				ConfigEntry{"server_side_encryption", "aws:kms"},
				ConfigEntry{"sse_kms_key_id", s.Amazon.KMSKeyID},
			)
		}
		return entries
	case ProviderGoogle:
		return []ConfigEntry{
			{"type", "google cloud storage"},
			{"service_account_file", s.Google.ServiceAccountFile},
			{"location", s.Google.Location},
			{"bucket_policy_only", "true"},
		}
	default:
		return nil
	}
}

// Scheme returns the URL scheme prefix for the provider.
func (s *Store) Scheme() string {
	if s.Provider == ProviderGoogle {
		return cloudpath.GooglePrefix
	}
	return cloudpath.AmazonPrefix
}

// Path qualifies p with the remote name and bucket, yielding the
// remote:bucket/key form rclone commands take.
func (s *Store) Path(p string) string {
	return s.Name + ":" + cloudpath.Join(s.Bucket, cloudpath.StripPrefix(p))
}

// DisplayPath renders p as a user-facing scheme URL.
func (s *Store) DisplayPath(p string) string {
	return s.Scheme() + cloudpath.Join(s.Bucket, cloudpath.StripPrefix(p))
}

// SetRunner overrides the rclone runner; used by tests and dry runs.
func (s *Store) SetRunner(r *Runner) {
	s.runner = r
}

// withConfig runs fn with a temporary config file scoped to this store.
func (s *Store) withConfig(fn func(configPath string) error) error {
	cfg, err := WriteConfigFile(false, s)
	if err != nil {
		return err
	}
	defer cfg.Close()
	return fn(cfg.Path())
}

// PathExists reports whether the file at p exists in the store.
func (s *Store) PathExists(ctx context.Context, p string) (bool, error) {
	var exists bool
	err := s.withConfig(func(configPath string) error {
		entries, err := s.runner.Ls(ctx, configPath, s.Path(p))
		if err != nil {
			// rclone exits nonzero for a missing object; treat any
			// listing failure as absence rather than surfacing it.
			return nil
		}
		exists = len(entries) > 0
		return nil
	})
	return exists, err
}

// FileSize returns the byte size of the file at p.
func (s *Store) FileSize(ctx context.Context, p string) (int64, error) {
	var size int64
	err := s.withConfig(func(configPath string) error {
		n, ok, err := s.runner.Size(ctx, configPath, s.Path(p))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%s does not name a single file", s.DisplayPath(p))
		}
		size = n
		return nil
	})
	return size, err
}

// FileChecksum returns the md5 checksum of the file at p. Empty when
// the backend stores no md5 for the object.
func (s *Store) FileChecksum(ctx context.Context, p string) (string, error) {
	var sum string
	err := s.withConfig(func(configPath string) error {
		out, err := s.runner.HashsumMD5(ctx, configPath, s.Path(p))
		if err != nil {
			return err
		}
		sum = out
		return nil
	})
	return sum, err
}

// FileModified returns the modification time of the file at p as
// reported by a long listing.
func (s *Store) FileModified(ctx context.Context, p string) (time.Time, error) {
	var modified time.Time
	err := s.withConfig(func(configPath string) error {
		out, err := s.runner.Lsl(ctx, configPath, s.Path(p))
		if err != nil {
			return err
		}
		modified, err = parseLslTime(out)
		return err
	})
	return modified, err
}

// parseLslTime extracts the timestamp from the first line of `rclone
// lsl` output: "     1234 2024-01-02 15:04:05.000000000 name".
func parseLslTime(output string) (time.Time, error) {
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		ts, err := time.Parse("2006-01-02 15:04:05.000000000", fields[1]+" "+fields[2])
		if err != nil {
			return time.Time{}, fmt.Errorf("cannot parse listing timestamp: %w", err)
		}
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("empty listing")
}

// ErrNoBucket is returned by BucketExists when the store has no bucket
// to check.
var ErrNoBucket = errors.New("store has no bucket configured")

// BucketExists reports whether the store's bucket holds anything. An
// empty or unreachable bucket reports false; with no bucket set the
// question has no answer and ErrNoBucket is returned.
func (s *Store) BucketExists(ctx context.Context) (bool, error) {
	if s.Bucket == "" {
		return false, ErrNoBucket
	}
	var exists bool
	err := s.withConfig(func(configPath string) error {
		entries, err := s.runner.Ls(ctx, configPath, s.Name+":"+s.Bucket)
		if err != nil {
			// Unreachable bucket: report absence, not the listing error.
			return nil
		}
		exists = len(entries) > 0
		return nil
	})
	return exists, err
}

// Ping verifies the store's credentials can list the remote at all.
func (s *Store) Ping(ctx context.Context) error {
	return s.withConfig(func(configPath string) error {
		return s.runner.Lsd(ctx, configPath, s.Name+":")
	})
}
