// Package cli provides the command-line interface for portal-submit.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/helixbio/portal-submit/internal/api"
	"github.com/helixbio/portal-submit/internal/config"
	"github.com/helixbio/portal-submit/internal/constants"
	"github.com/helixbio/portal-submit/internal/logging"
	"github.com/helixbio/portal-submit/internal/rclone"
)

var (
	// Global flags
	env              string
	apiKey           string
	server           string
	verbose          bool
	debug            bool
	keepRcloneConfig bool

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// Version information - set by main package at startup
var (
	Version   = "v1.0.0-dev"
	BuildTime = "unknown"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   constants.AppName,
		Short: "Submit metadata workbooks and data files to the Portal",
		Long: constants.AppName + ` ` + Version + ` - Built: ` + BuildTime + `

Submission client for the Portal: validates and submits metadata
workbooks, uploads the referenced data files to their scoped cloud
destinations (from local disk or directly from cloud storage), and
tracks server-side ingestion.

Credentials come from --api-key, the ` + constants.APIKeyEnvVar + ` environment
variable, or the ` + constants.KeysFileName + ` file in your home directory.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.NewDefaultLogger()
			if verbose || debug {
				logging.SetGlobalLevel(-1)
			}
			rclone.KeepConfigFiles = keepRcloneConfig
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&env, "env", "", "Named environment from the keys file")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Portal API key (overrides all other sources)")
	rootCmd.PersistentFlags().StringVar(&server, "server", "", "Portal server URL (overrides the keys file)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output (same as --verbose)")
	rootCmd.PersistentFlags().BoolVar(&keepRcloneConfig, "keep-rclone-config", false, "Keep temporary rclone config files for debugging")

	rootCmd.Version = Version + " (" + BuildTime + ")"

	rootCmd.AddCommand(newSubmitCmd())
	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newRcloneCmd())

	return rootCmd
}

// newPortalClient resolves credentials and builds the Portal client.
// When no key can be found but a server is known and we are on a
// terminal, the key is read interactively without echo.
func newPortalClient() (*api.Client, error) {
	key, srv, err := config.Credentials(env, apiKey, server)
	if err != nil {
		if server == "" || !term.IsTerminal(int(os.Stdin.Fd())) {
			return nil, err
		}
		key, err = promptAPIKey()
		if err != nil {
			return nil, err
		}
		srv = server
	}
	logger.Debug().Msgf("using portal server %s", srv)
	return api.NewClient(srv, key, logger), nil
}

func promptAPIKey() (string, error) {
	fmt.Fprint(os.Stderr, "Portal API key: ")
	key, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("cannot read portal key: %w", err)
	}
	if len(key) == 0 {
		return "", fmt.Errorf("no portal key given")
	}
	return string(key), nil
}

// Execute runs the CLI.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		for range sigChan {
			fmt.Fprintln(os.Stderr, "\nTerminating...")
			cancelFunc()
		}
	}()

	rootCmd := NewRootCmd()
	return rootCmd.ExecuteContext(rootContext)
}
