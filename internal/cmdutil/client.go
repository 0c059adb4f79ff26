package cmdutil

import (
	"os"

	"github.com/archlens/archlens/internal/client"
	"github.com/archlens/archlens/internal/config"
)

// APIKeyEnv is the environment variable client commands read the API
// key from when no --api-key flag is given.
const APIKeyEnv = "ARCHLENS_API_KEY"

// ResolveAPIKey returns the flag value if set, falling back to the
// environment.
func ResolveAPIKey(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(APIKeyEnv)
}

// NewClient builds the API client for a command: the base URL comes
// from the --server flag when set, otherwise from the loaded
// configuration.
func NewClient(serverFlag, apiKeyFlag string) *client.Client {
	apiKey := ResolveAPIKey(apiKeyFlag)
	if serverFlag != "" {
		return client.New(serverFlag, apiKey)
	}
	return client.FromConfig(config.Get(), apiKey)
}
