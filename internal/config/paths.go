// Package config provides keys-file resolution and per-user paths for
// the submission client.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/helixbio/portal-submit/internal/constants"
)

// AppDirectory returns the per-user application-support directory that
// holds host-local state such as the managed rclone binary.
//
// Locations:
//   - macOS: ~/Library/Application Support/helixbio/portal-submit
//   - Linux: ~/.local/share/helixbio/portal-submit
//   - Windows: %USERPROFILE%\AppData\Local\helixbio\portal-submit
func AppDirectory() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), constants.Vendor, constants.AppName)
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir, "Library", "Application Support", constants.Vendor, constants.AppName)
	case "windows":
		return filepath.Join(homeDir, "AppData", "Local", constants.Vendor, constants.AppName)
	default:
		return filepath.Join(homeDir, ".local", "share", constants.Vendor, constants.AppName)
	}
}

// EnsureAppDirectory creates the application-support directory.
// Owner-only permissions: it can hold a downloaded executable.
func EnsureAppDirectory() error {
	return os.MkdirAll(AppDirectory(), 0700)
}

// RcloneBinaryPath returns where the managed rclone binary lives.
func RcloneBinaryPath() string {
	name := "rclone"
	if runtime.GOOS == "windows" {
		name = "rclone.exe"
	}
	return filepath.Join(AppDirectory(), name)
}

// KeysFilePath returns the per-user portal keys file (~/.portal-keys.json).
func KeysFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, constants.KeysFileName)
}
