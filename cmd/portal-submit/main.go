package main

import (
	"os"

	"github.com/helixbio/portal-submit/internal/cli"
)

// Version information, normally injected via -ldflags at release time.
var (
	version   = "v1.0.0-dev"
	buildTime = "unknown"
)

func main() {
	cli.Version = version
	cli.BuildTime = buildTime

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
