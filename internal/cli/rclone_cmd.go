package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/helixbio/portal-submit/internal/config"
	"github.com/helixbio/portal-submit/internal/constants"
	"github.com/helixbio/portal-submit/internal/rclone"
)

// secondsDuration converts a whole-second flag value.
func secondsDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}

func newRcloneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rclone",
		Short: "Manage the bundled rclone transfer engine",
	}

	var force bool
	installCmd := &cobra.Command{
		Use:   "install",
		Short: "Download the pinned rclone release",
		RunE: func(cmd *cobra.Command, args []string) error {
			if rclone.IsInstalled() && !force {
				logger.Info().Msgf("rclone %s already installed at %s", constants.RcloneVersion, config.RcloneBinaryPath())
				return nil
			}
			logger.Info().Msgf("Installing rclone %s", constants.RcloneVersion)
			if err := rclone.Install(force); err != nil {
				return err
			}
			logger.Info().Msgf("Installed rclone at %s", config.RcloneBinaryPath())
			return nil
		},
	}
	installCmd.Flags().BoolVar(&force, "force", false, "Re-download even when already installed")
	cmd.AddCommand(installCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print where the managed rclone binary lives",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(config.RcloneBinaryPath())
		},
	})

	return cmd
}
