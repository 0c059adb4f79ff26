// Package initialize implements the init command for first-time setup.
package initialize

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/archlens/archlens/internal/config"
	"github.com/archlens/archlens/internal/tui/initialize"
)

// Flag variables for the init command.
var (
	initUnattended bool
	initForce      bool

	// Unattended mode configuration flags
	initProvider        string
	initModel           string
	initAPIKey          string
	initEmbeddingsModel string
	initQdrantHost      string
	initQdrantPort      int
	initRedisAddr       string
	initBlobEndpoint    string
	initBlobBucket      string
	initHTTPPort        int
	initOutput          string
)

// InitCmd is the init command for first-time setup.
var InitCmd = &cobra.Command{
	Use:   "init",
	Short: "Run the interactive setup wizard",
	Long: "Run the interactive setup wizard to configure archlens.\n\n" +
		"This command launches a terminal-based wizard that guides you through the " +
		"initial configuration: analysis provider and model, embeddings, backing " +
		"services (Qdrant, Redis, object storage), and the HTTP port. The " +
		"configuration is saved to the default config file location.\n\n" +
		"In unattended mode (--unattended), configuration values are resolved in " +
		"priority order:\n" +
		"1. CLI flags (highest priority)\n" +
		"2. ARCHLENS_* environment variables\n" +
		"3. Provider-native environment variables (for API keys)\n" +
		"4. Default values (lowest priority)",
	Example: `  # Run the interactive setup wizard
  archlens init

  # Run in unattended mode with defaults
  archlens init --unattended

  # Unattended mode with custom services and provider
  archlens init --unattended \
      --qdrant-host=qdrant.example.com \
      --redis-addr=redis.example.com:6379 \
      --provider=openai

  # Full unattended configuration with JSON output
  archlens init --unattended --force \
      --provider=gemini \
      --api-key="$GEMINI_API_KEY" \
      --blob-endpoint=minio.local:9000 \
      --http-port=8080 \
      --output=json

  # Using environment variables for unattended mode
  ARCHLENS_LLM_PROVIDER=openai \
  OPENAI_API_KEY=sk-... \
  archlens init --unattended

  # Force re-initialization even if config exists
  archlens init --force`,
	PreRunE: validateInit,
	RunE:    runInit,
}

func init() {
	// Mode flags
	InitCmd.Flags().BoolVar(&initUnattended, "unattended", false,
		"Run in non-interactive mode using environment variables and defaults")
	InitCmd.Flags().BoolVar(&initForce, "force", false,
		"Force re-initialization even if configuration already exists")

	// Provider configuration flags (unattended mode)
	InitCmd.Flags().StringVar(&initProvider, "provider", "",
		"Chat provider: openai, gemini (default: openai)")
	InitCmd.Flags().StringVar(&initModel, "model", "",
		"Model identifier (default: provider's default model)")
	InitCmd.Flags().StringVar(&initAPIKey, "api-key", "",
		"API key for the chat provider")
	InitCmd.Flags().StringVar(&initEmbeddingsModel, "embeddings-model", "",
		"Embeddings model (default: text-embedding-3-small)")

	// Backing service configuration flags (unattended mode)
	InitCmd.Flags().StringVar(&initQdrantHost, "qdrant-host", "",
		"Qdrant server hostname (default: 127.0.0.1)")
	InitCmd.Flags().IntVar(&initQdrantPort, "qdrant-port", 0,
		"Qdrant gRPC port (default: 6334)")
	InitCmd.Flags().StringVar(&initRedisAddr, "redis-addr", "",
		"Redis address as host:port (default: 127.0.0.1:6379)")
	InitCmd.Flags().StringVar(&initBlobEndpoint, "blob-endpoint", "",
		"Object storage endpoint (default: 127.0.0.1:9000)")
	InitCmd.Flags().StringVar(&initBlobBucket, "blob-bucket", "",
		"Object storage bucket (default: archlens-projects)")

	// Server configuration flags (unattended mode)
	InitCmd.Flags().IntVar(&initHTTPPort, "http-port", 0,
		"HTTP API port (default: 7810)")

	// Output control flags (unattended mode)
	InitCmd.Flags().StringVar(&initOutput, "output", "text",
		"Output format: text, json (default: text)")
}

func validateInit(cmd *cobra.Command, args []string) error {
	configPath := config.DefaultConfigPath()
	slog.Debug("validating init command", "config_path", configPath, "force", initForce)

	if !initForce {
		if _, err := os.Stat(configPath); err == nil {
			slog.Info("configuration already exists", "path", configPath)
			return fmt.Errorf("configuration already exists at %s; use --force to reinitialize", configPath)
		}
	}

	// Validate unattended mode flags before silencing usage
	if initUnattended {
		if err := validateUnattendedFlags(); err != nil {
			return err
		}
	}

	cmd.SilenceUsage = true
	return nil
}

func runInit(cmd *cobra.Command, args []string) error {
	slog.Info("starting initialization wizard", "unattended", initUnattended)

	cfg := config.Starter()

	if initUnattended {
		return runUnattended(cfg)
	}

	return runInteractive(cfg)
}

func runInteractive(cfg *config.Config) error {
	slog.Debug("starting interactive wizard")
	result, err := initialize.RunWizard(cfg, initialize.DefaultSteps())
	if err != nil {
		slog.Error("wizard failed", "error", err)
		return fmt.Errorf("wizard failed; %w", err)
	}

	if result.Cancelled {
		slog.Info("wizard cancelled by user")
		return nil
	}

	if result.Err != nil {
		slog.Error("wizard completed with error", "error", result.Err)
		return result.Err
	}

	if !result.Confirmed {
		slog.Info("wizard completed without confirmation")
		return nil
	}

	slog.Info("wizard completed successfully, writing configuration")

	if err := writeConfig(result.Config); err != nil {
		return err
	}

	fmt.Println("Configuration saved successfully.")
	fmt.Println("\nTo start the service, run:")
	fmt.Println("  archlens serve")

	return nil
}

func runUnattended(cfg *config.Config) error {
	slog.Debug("starting unattended initialization")

	resolved := resolveUnattendedConfig()

	if err := validateRequiredAPIKeys(resolved); err != nil {
		slog.Error("validation failed", "error", err)
		return err
	}

	applyResolvedConfig(cfg, resolved)

	slog.Info("unattended initialization completed, writing configuration")

	if err := writeConfig(cfg); err != nil {
		return err
	}

	if initOutput == "json" {
		jsonOutput, err := formatJSONOutput(resolved)
		if err != nil {
			return err
		}
		fmt.Println(jsonOutput)
		return nil
	}

	fmt.Print(formatTextOutput(resolved))
	return nil
}

// applyResolvedConfig applies the resolved unattended configuration to the
// config struct.
func applyResolvedConfig(cfg *config.Config, resolved *UnattendedConfig) {
	cfg.LLM.Provider = resolved.Provider
	cfg.LLM.Model = resolved.Model
	cfg.LLM.APIKeyEnv = resolved.APIKeyEnv
	if resolved.APIKey != "" {
		cfg.LLM.APIKey = &resolved.APIKey
	}

	cfg.Embeddings.Model = resolved.EmbeddingsModel
	cfg.Embeddings.Dimension = resolved.EmbeddingsDimension

	cfg.Vector.Host = resolved.QdrantHost
	cfg.Vector.Port = resolved.QdrantPort
	cfg.Bus.RedisAddr = resolved.RedisAddr
	cfg.Storage.Blob.Endpoint = resolved.BlobEndpoint
	cfg.Storage.Blob.Bucket = resolved.BlobBucket

	cfg.Server.HTTPPort = resolved.HTTPPort
}

func writeConfig(cfg *config.Config) error {
	configPath := config.DefaultConfigPath()
	slog.Debug("writing configuration file", "path", configPath)

	if err := config.Write(cfg, configPath); err != nil {
		slog.Error("failed to write config", "path", configPath, "error", err)
		return fmt.Errorf("failed to write config; %w", err)
	}

	slog.Info("configuration written successfully", "path", configPath)
	return nil
}
