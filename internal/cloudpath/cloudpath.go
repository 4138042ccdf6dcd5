// Package cloudpath manipulates textual cloud object paths of the form
// bucket/key/segments. Paths are normalized to single slash separators
// with no leading or trailing slash; the empty string is a valid
// (empty) path and every operation maps empty input to empty output.
package cloudpath

import (
	"strings"
)

// Separator is the only separator a normalized cloud path contains.
const Separator = "/"

const (
	// AmazonPrefix - URI scheme prefix for Amazon S3 paths
	AmazonPrefix = "s3://"
	// GooglePrefix - URI scheme prefix for Google Cloud Storage paths
	GooglePrefix = "gs://"
)

// Normalize collapses runs of slashes, strips leading and trailing
// slashes, and drops "." segments. Normalize is idempotent.
func Normalize(value string) string {
	parts := strings.Split(strings.TrimSpace(value), Separator)
	kept := parts[:0]
	for _, part := range parts {
		if part == "" || part == "." {
			continue
		}
		kept = append(kept, part)
	}
	return strings.Join(kept, Separator)
}

// Join normalizes each argument, skips empties, and concatenates the
// rest with single separators.
func Join(args ...string) string {
	var parts []string
	for _, arg := range args {
		if normalized := Normalize(arg); normalized != "" {
			parts = append(parts, normalized)
		}
	}
	return strings.Join(parts, Separator)
}

// HasSeparator reports whether the normalized path has more than one
// segment, i.e. names something below a bucket.
func HasSeparator(value string) bool {
	return strings.Contains(Normalize(value), Separator)
}

// Basename returns the last segment of the normalized path.
func Basename(value string) string {
	normalized := Normalize(value)
	if i := strings.LastIndex(normalized, Separator); i >= 0 {
		return normalized[i+1:]
	}
	return normalized
}

// Bucket returns the first segment of the normalized path, or empty.
func Bucket(value string) string {
	normalized := Normalize(value)
	if i := strings.Index(normalized, Separator); i >= 0 {
		return normalized[:i]
	}
	return normalized
}

// Key returns everything after the bucket, or empty when the path is
// a bare bucket.
func Key(value string) string {
	normalized := Normalize(value)
	if i := strings.Index(normalized, Separator); i >= 0 {
		return normalized[i+1:]
	}
	return ""
}

// BucketAndKey splits into (bucket, key). When key is nonempty the two
// arguments are treated as already split; otherwise bucketOrPath is a
// joined path, optionally carrying an s3:// or gs:// scheme prefix.
func BucketAndKey(bucketOrPath string, key string) (string, string) {
	if Normalize(key) != "" {
		return Normalize(bucketOrPath), Normalize(key)
	}
	path := StripPrefix(bucketOrPath)
	return Bucket(path), Key(path)
}

// StripPrefix removes a leading s3:// or gs:// scheme, if present.
func StripPrefix(value string) string {
	value = strings.TrimSpace(value)
	for _, prefix := range []string{AmazonPrefix, GooglePrefix} {
		if strings.HasPrefix(value, prefix) {
			return value[len(prefix):]
		}
	}
	return value
}
