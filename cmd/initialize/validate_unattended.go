package initialize

import "fmt"

// validProviders are the chat providers the wizard and unattended mode accept.
var validProviders = map[string]bool{
	"openai": true,
	"gemini": true,
}

// validOutputs are the accepted --output formats.
var validOutputs = map[string]bool{
	"text": true,
	"json": true,
}

// validateUnattendedFlags validates flag values before unattended
// resolution runs.
func validateUnattendedFlags() error {
	if initProvider != "" && !validProviders[initProvider] {
		return fmt.Errorf("invalid provider %q; must be one of: openai, gemini", initProvider)
	}

	if initHTTPPort != 0 && (initHTTPPort < 1 || initHTTPPort > 65535) {
		return fmt.Errorf("invalid http port %d; must be between 1 and 65535", initHTTPPort)
	}

	if initQdrantPort != 0 && (initQdrantPort < 1 || initQdrantPort > 65535) {
		return fmt.Errorf("invalid qdrant port %d; must be between 1 and 65535", initQdrantPort)
	}

	if !validOutputs[initOutput] {
		return fmt.Errorf("invalid output format %q; must be one of: text, json", initOutput)
	}

	return nil
}

// validateRequiredAPIKeys verifies an API key was resolved for the chat
// provider. The embeddings key shares the OpenAI env var, so a missing
// chat key is the only hard failure.
func validateRequiredAPIKeys(resolved *UnattendedConfig) error {
	if resolved.APIKey == "" {
		envVar := providerEnvVars[resolved.Provider]
		return fmt.Errorf("no API key found for provider %q; set --api-key or the %s environment variable",
			resolved.Provider, envVar)
	}
	return nil
}
