package constants

import (
	"time"
)

// Application identity
const (
	// AppName - binary and per-user state directory name
	AppName = "portal-submit"

	// Vendor - vendor directory component for per-user state
	// (e.g. ~/Library/Application Support/helixbio/portal-submit on macOS)
	Vendor = "helixbio"

	// KeysFileName - per-user portal keys file in the home directory
	KeysFileName = ".portal-keys.json"

	// APIKeyEnvVar - environment variable consulted when no key is given explicitly
	APIKeyEnvVar = "PORTAL_API_KEY"
)

// rclone engine
const (
	// RcloneVersion - pinned rclone release, downloaded once per host.
	// Bump deliberately: the progress/size/hashsum output formats we parse
	// are stable across recent releases but are not a documented API.
	RcloneVersion = "1.66.0"

	// RcloneDownloadURL - upstream release URL template.
	// Substitutions: version, version, OS, arch.
	RcloneDownloadURL = "https://downloads.rclone.org/v%s/rclone-v%s-%s-%s.zip"
)

// Upload behavior
const (
	// LargeFileChecksumThreshold - above this size, computing a local md5
	// just to compare with an existing destination object requires
	// operator confirmation (500 MiB)
	LargeFileChecksumThreshold = 500 * 1024 * 1024

	// UploadConnectTimeout - HTTP connect timeout for S3 transfers.
	// No read timeout: multipart uploads of large files legitimately
	// hold connections for a long time.
	UploadConnectTimeout = 60 * time.Second
)

// Ingestion polling
const (
	// PollWaitSeconds - default delay between ingestion status polls
	PollWaitSeconds = 7

	// PollMaxAttempts - default hard cap on ingestion status polls
	PollMaxAttempts = 100
)

// Object metadata keys attached to every uploaded object
const (
	MetadataMD5          = "md5"
	MetadataMD5Timestamp = "md5-timestamp"
	MetadataMD5Source    = "md5-source"

	// MD5 provenance values
	MD5SourceFileSystem         = "file-system"
	MD5SourceGoogleCloudStorage = "google-cloud-storage"
)
