package credentials

import (
	"fmt"
	nethttp "net/http"
	"os"
	"time"
)

// Google carries Google Cloud Storage access configuration. On Google
// Compute Engine the service account file may be empty: rclone and the
// SDK then use the instance's ambient credentials.
type Google struct {
	ServiceAccountFile string
	Location           string
}

// gceMetadataURL is the instance metadata probe; a package variable so
// tests can point it at a local server.
var gceMetadataURL = "http://metadata.google.internal/computeMetadata/v1/project/project-id"

// NewGoogle builds a Google credentials object. A nonempty service
// account file must exist.
func NewGoogle(serviceAccountFile, location string) (*Google, error) {
	if serviceAccountFile != "" {
		if _, err := os.Stat(serviceAccountFile); err != nil {
			return nil, fmt.Errorf("google service account file not found: %s", serviceAccountFile)
		}
	}
	return &Google{
		ServiceAccountFile: serviceAccountFile,
		Location:           location,
	}, nil
}

// ObtainGoogle resolves a service account file from the argument or
// GOOGLE_APPLICATION_CREDENTIALS. An empty result is acceptable only
// on GCE.
func ObtainGoogle(serviceAccountFile, location string) (*Google, error) {
	if serviceAccountFile == "" {
		serviceAccountFile = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	}
	if serviceAccountFile == "" && !OnGoogleComputeEngine() {
		return nil, fmt.Errorf("no google service account file given and not running on GCE")
	}
	return NewGoogle(serviceAccountFile, location)
}

// Equals compares both fields.
func (g *Google) Equals(other *Google) bool {
	if g == nil || other == nil {
		return g == other
	}
	return g.ServiceAccountFile == other.ServiceAccountFile &&
		g.Location == other.Location
}

// OnGoogleComputeEngine probes the instance metadata endpoint. Any
// failure or non-200 means "not GCE".
func OnGoogleComputeEngine() bool {
	client := &nethttp.Client{Timeout: 3 * time.Second}
	req, err := nethttp.NewRequest("GET", gceMetadataURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Metadata-Flavor", "Google")

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == nethttp.StatusOK
}
