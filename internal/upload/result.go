package upload

import "time"

// timeRounding trims sub-tenth noise from reported durations.
const timeRounding = 100 * time.Millisecond

// UploadResult summarizes one file transfer.
type UploadResult struct {
	Ok               bool
	Skipped          bool
	Aborted          bool
	BytesTransferred int64
	Duration         time.Duration
	MD5              string
	// VerificationStatus is "verified", "unverified", "size-mismatch"
	// or "md5-mismatch" after the post-upload head check.
	VerificationStatus string
}
