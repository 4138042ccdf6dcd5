package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/helixbio/portal-submit/internal/constants"
)

// KeysEntry is one environment's entry in the portal keys file.
type KeysEntry struct {
	Key    string `json:"key"`
	Server string `json:"server"`
}

// Keys maps environment name to its portal key and server.
type Keys map[string]KeysEntry

// LoadKeys reads a portal keys file. A missing file is not an error
// here; callers decide whether an empty key set is fatal.
func LoadKeys(path string) (Keys, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Keys{}, nil
		}
		return nil, fmt.Errorf("failed to read keys file %s: %w", path, err)
	}

	var keys Keys
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("malformed keys file %s: %w", path, err)
	}
	return keys, nil
}

// EnvironmentNames returns the environments in the keys file, sorted.
func (k Keys) EnvironmentNames() []string {
	names := make([]string, 0, len(k))
	for name := range k {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Credentials resolves the API key and server for a run.
//
// Priority for the key: --api-key flag, PORTAL_API_KEY environment
// variable, keys-file entry for env. The server comes from the
// --server flag when given, otherwise from the keys-file entry.
// When env is empty and the keys file holds exactly one entry, that
// entry is used.
func Credentials(env, flagAPIKey, flagServer string) (apiKey, server string, err error) {
	apiKey = flagAPIKey
	if apiKey == "" {
		apiKey = os.Getenv(constants.APIKeyEnvVar)
	}
	server = strings.TrimSuffix(flagServer, "/")

	if apiKey != "" && server != "" {
		return apiKey, server, nil
	}

	keys, err := LoadKeys(KeysFilePath())
	if err != nil {
		return "", "", err
	}

	entry, ok := keys[env]
	if !ok && env == "" && len(keys) == 1 {
		for _, only := range keys {
			entry, ok = only, true
		}
	}
	if !ok {
		if apiKey != "" && server != "" {
			return apiKey, server, nil
		}
		if env == "" {
			return "", "", fmt.Errorf("no --env given and %s does not name a single environment", KeysFilePath())
		}
		return "", "", fmt.Errorf("environment %q not found in %s", env, KeysFilePath())
	}

	if apiKey == "" {
		apiKey = entry.Key
	}
	if server == "" {
		server = strings.TrimSuffix(entry.Server, "/")
	}
	if apiKey == "" {
		return "", "", fmt.Errorf("no portal key for environment %q", env)
	}
	if server == "" {
		return "", "", fmt.Errorf("no portal server for environment %q", env)
	}
	return apiKey, server, nil
}
