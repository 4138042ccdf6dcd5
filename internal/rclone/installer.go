package rclone

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"runtime"
	"strings"
	"time"

	"github.com/helixbio/portal-submit/internal/config"
	"github.com/helixbio/portal-submit/internal/constants"
)

// DownloadURLTemplate is the release archive URL format; a package
// variable so tests can serve a local archive.
var DownloadURLTemplate = constants.RcloneDownloadURL

// rclone names its darwin archives "osx".
func archiveOS() string {
	if runtime.GOOS == "darwin" {
		return "osx"
	}
	return runtime.GOOS
}

// ArchiveURL returns the release archive URL for the pinned version on
// the current platform.
func ArchiveURL() string {
	v := constants.RcloneVersion
	return fmt.Sprintf(DownloadURLTemplate, v, v, archiveOS(), runtime.GOARCH)
}

// IsInstalled reports whether the managed rclone binary is present.
func IsInstalled() bool {
	info, err := os.Stat(config.RcloneBinaryPath())
	return err == nil && !info.IsDir()
}

// Install downloads the pinned rclone release, extracts the binary into
// the application directory, and marks it executable. With force false
// an existing binary is kept as is.
func Install(force bool) error {
	if IsInstalled() && !force {
		return nil
	}
	if err := config.EnsureAppDirectory(); err != nil {
		return fmt.Errorf("cannot create application directory: %w", err)
	}

	archive, err := download(ArchiveURL())
	if err != nil {
		return err
	}
	binary, err := extractBinary(archive)
	if err != nil {
		return err
	}

	dest := config.RcloneBinaryPath()
	tmp := dest + ".download"
	if err := os.WriteFile(tmp, binary, 0755); err != nil {
		return fmt.Errorf("cannot write rclone binary: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("cannot install rclone binary: %w", err)
	}
	return nil
}

// EnsureInstalled installs rclone if it is missing.
func EnsureInstalled() error {
	if IsInstalled() {
		return nil
	}
	return Install(false)
}

func download(url string) ([]byte, error) {
	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("cannot download rclone from %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cannot download rclone from %s: HTTP %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cannot download rclone from %s: %w", url, err)
	}
	return data, nil
}

// extractBinary pulls the rclone executable out of a release zip. The
// archive nests the binary one directory deep.
func extractBinary(archive []byte) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("cannot read rclone archive: %w", err)
	}
	want := "rclone"
	if runtime.GOOS == "windows" {
		want = "rclone.exe"
	}
	for _, f := range reader.File {
		if path.Base(f.Name) != want || strings.HasSuffix(f.Name, "/") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("cannot read rclone archive: %w", err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("cannot read rclone archive: %w", err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("rclone binary not found in archive")
}
