// Package upload reconciles files the Portal expects against local and
// cloud sources and moves them to their scoped S3 destinations.
package upload

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/helixbio/portal-submit/internal/cloudpath"
	"github.com/helixbio/portal-submit/internal/rclone"
)

// SourcePreference records which copy of a file to upload when it was
// found both locally and in the cloud source. It stays Unresolved until
// the review step asks the operator.
type SourcePreference int

const (
	SourceUnresolved SourcePreference = iota
	SourceLocal
	SourceCloud
)

// FileForUpload reconciles one upload target: the filename the Portal
// expects, the local and/or cloud copy that was found for it, and the
// operator's source choice when both exist.
type FileForUpload struct {
	Name          string
	UUID          string
	Type          string
	Accession     string
	AccessionName string

	LocalPath string
	// LocalPaths lists every match when the recursive search found more
	// than one local copy; nonempty means the target is ambiguous until
	// reviewed.
	LocalPaths []string

	Preference SourcePreference
	Ignore     bool

	cloudSource *rclone.Store
	cloudPath   string
	cloudSize   int64
	cloudProbed bool

	localSize     int64
	localSized    bool
	localChecksum string
}

// FoundLocal reports whether a local copy exists.
func (f *FileForUpload) FoundLocal() bool {
	return f.LocalPath != ""
}

// Found reports whether any copy exists.
func (f *FileForUpload) Found(ctx context.Context) bool {
	return f.FoundLocal() || f.FoundCloud(ctx)
}

// Ambiguous reports whether the recursive search found multiple local
// copies that have not been disambiguated.
func (f *FileForUpload) Ambiguous() bool {
	return len(f.LocalPaths) > 1
}

// FoundCloud probes the cloud source for <bucket>/<name> on first call
// and memoizes the outcome, so a batch never queries twice per file.
func (f *FileForUpload) FoundCloud(ctx context.Context) bool {
	f.probeCloud(ctx)
	return f.cloudPath != ""
}

// CloudPath returns the source-relative cloud path, probing on first
// access.
func (f *FileForUpload) CloudPath(ctx context.Context) string {
	f.probeCloud(ctx)
	return f.cloudPath
}

// CloudSize returns the probed size of the cloud copy.
func (f *FileForUpload) CloudSize(ctx context.Context) int64 {
	f.probeCloud(ctx)
	return f.cloudSize
}

// CloudSource returns the configured cloud source store, or nil.
func (f *FileForUpload) CloudSource() *rclone.Store {
	return f.cloudSource
}

func (f *FileForUpload) probeCloud(ctx context.Context) {
	if f.cloudProbed || f.cloudSource == nil {
		return
	}
	f.cloudProbed = true

	exists, err := f.cloudSource.PathExists(ctx, f.Name)
	if err != nil || !exists {
		return
	}
	size, err := f.cloudSource.FileSize(ctx, f.Name)
	if err != nil {
		return
	}
	f.cloudPath = cloudpath.Join(f.cloudSource.Bucket, f.Name)
	f.cloudSize = size
}

// resolved reports whether the source choice is settled: either only
// one copy exists, or the review step picked one.
func (f *FileForUpload) resolved(ctx context.Context) bool {
	if f.Preference != SourceUnresolved {
		return true
	}
	return !(f.FoundLocal() && f.FoundCloud(ctx))
}

// FromLocal reports whether the upload will read the local copy.
func (f *FileForUpload) FromLocal(ctx context.Context) bool {
	if !f.resolved(ctx) {
		return false
	}
	if f.Preference == SourceLocal {
		return true
	}
	return f.Preference == SourceUnresolved && f.FoundLocal()
}

// FromCloud reports whether the upload will read the cloud copy.
func (f *FileForUpload) FromCloud(ctx context.Context) bool {
	if !f.resolved(ctx) {
		return false
	}
	if f.Preference == SourceCloud {
		return true
	}
	return f.Preference == SourceUnresolved && !f.FoundLocal() && f.FoundCloud(ctx)
}

// Path returns the path of the chosen source, or empty while the choice
// is unresolved.
func (f *FileForUpload) Path(ctx context.Context) string {
	switch {
	case f.FromLocal(ctx):
		return f.LocalPath
	case f.FromCloud(ctx):
		return f.cloudPath
	default:
		return ""
	}
}

// Size returns the size of the chosen source, or -1 while unresolved.
func (f *FileForUpload) Size(ctx context.Context) int64 {
	switch {
	case f.FromLocal(ctx):
		return f.localFileSize()
	case f.FromCloud(ctx):
		return f.CloudSize(ctx)
	default:
		return -1
	}
}

func (f *FileForUpload) localFileSize() int64 {
	if f.localSized {
		return f.localSize
	}
	info, err := os.Stat(f.LocalPath)
	if err != nil {
		return -1
	}
	f.localSize = info.Size()
	f.localSized = true
	return f.localSize
}

// Checksum returns the md5 of the chosen source. Local checksums are
// computed by streaming the file and memoized; cloud checksums come
// from the source store. Empty while unresolved or unavailable.
func (f *FileForUpload) Checksum(ctx context.Context) string {
	switch {
	case f.FromLocal(ctx):
		sum, err := f.LocalChecksum()
		if err != nil {
			return ""
		}
		return sum
	case f.FromCloud(ctx):
		sum, err := f.cloudSource.FileChecksum(ctx, f.Name)
		if err != nil {
			return ""
		}
		return sum
	default:
		return ""
	}
}

// LocalChecksum streams the local file through md5, memoizing the
// result.
func (f *FileForUpload) LocalChecksum() (string, error) {
	if f.localChecksum != "" {
		return f.localChecksum, nil
	}
	sum, err := FileMD5(f.LocalPath)
	if err != nil {
		return "", err
	}
	f.localChecksum = sum
	return sum, nil
}

// DisplayName renders the filename with the owning object's accession
// when the Portal supplied one.
func (f *FileForUpload) DisplayName() string {
	if f.Accession != "" && f.Accession != f.Name {
		return fmt.Sprintf("%s (%s)", f.Name, f.Accession)
	}
	return f.Name
}

// DisplayPath renders the chosen source for operator output.
func (f *FileForUpload) DisplayPath(ctx context.Context) string {
	if f.FromCloud(ctx) {
		return f.cloudSource.DisplayPath(f.Name)
	}
	return f.Path(ctx)
}

// FileMD5 computes the md5 hex digest of a file by streaming it.
func FileMD5(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("cannot read %s: %w", path, err)
	}
	defer file.Close()

	hash := md5.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", fmt.Errorf("cannot checksum %s: %w", path, err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// validLocalFile reports whether path is a readable regular file whose
// basename matches name.
func validLocalFile(path, name string) bool {
	if filepath.Base(path) != name {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
