package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/helixbio/portal-submit/internal/rclone"
	"github.com/helixbio/portal-submit/internal/upload"
)

// searchFlags are the file-location flags shared by submit and upload.
type searchFlags struct {
	directory        string
	subDirectories   bool
	cloudSource      string
	cloudCredentials string
	cloudLocation    string
}

func (f *searchFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.directory, "directory", "", "Directory to search for the files to upload")
	cmd.Flags().BoolVar(&f.subDirectories, "sub-directories", false, "Search subdirectories of --directory recursively")
	cmd.Flags().StringVar(&f.cloudSource, "cloud-source", "", "Cloud bucket or bucket/prefix (s3:// or gs://) holding the files to upload")
	cmd.Flags().StringVar(&f.cloudCredentials, "cloud-credentials", "", "Credentials file for --cloud-source (AWS INI or Google service account)")
	cmd.Flags().StringVar(&f.cloudLocation, "cloud-location", "", "Google Cloud location of --cloud-source")
}

// searchConfig builds the resolver config, creating the cloud source
// store when one was requested. The rclone binary must be present
// before any cloud source is probed.
func (f *searchFlags) searchConfig() (upload.SearchConfig, error) {
	cfg := upload.SearchConfig{
		Directory: f.directory,
		Recursive: f.subDirectories,
	}
	if f.cloudSource == "" {
		return cfg, nil
	}

	if err := rclone.EnsureInstalled(); err != nil {
		return cfg, fmt.Errorf("cloud source requires rclone: %w", err)
	}
	store, err := rclone.StoreForPath(f.cloudSource, f.cloudCredentials, f.cloudLocation)
	if err != nil {
		return cfg, err
	}
	cfg.CloudSource = store
	return cfg, nil
}
