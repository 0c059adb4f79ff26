// Package subcommands implements the keys subcommands.
package subcommands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/archlens/archlens/internal/config"
	"github.com/archlens/archlens/internal/store"
)

// CreateCmd mints a new API key.
var CreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new API key",
	Long: "Create a new API key.\n\n" +
		"The plaintext key is printed once and cannot be recovered afterwards; " +
		"store it in the ARCHLENS_API_KEY environment variable on the client.",
	Example: `  # Create a key for the CI pipeline
  archlens keys create ci-pipeline`,
	Args:    cobra.ExactArgs(1),
	PreRunE: validateCreate,
	RunE:    runCreate,
}

func validateCreate(cmd *cobra.Command, args []string) error {
	if args[0] == "" {
		return fmt.Errorf("key name must not be empty")
	}

	cmd.SilenceUsage = true
	return nil
}

func runCreate(cmd *cobra.Command, args []string) error {
	return withStore(cmd.Context(), func(ctx context.Context, st *store.Store) error {
		id, plaintext, err := st.CreateAPIKey(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to create api key; %w", err)
		}

		fmt.Printf("Created key %q (%s)\n\n", args[0], id)
		fmt.Printf("  %s\n\n", plaintext)
		fmt.Println("This is the only time the plaintext is shown. Clients send it in the")
		fmt.Println("X-API-Key header; the CLI reads it from ARCHLENS_API_KEY.")
		return nil
	})
}

// withStore opens the configured database, runs fn, and closes it.
func withStore(ctx context.Context, fn func(context.Context, *store.Store) error) error {
	cfg := config.Get()

	st, err := store.Open(ctx, config.ExpandHome(cfg.Storage.DBPath))
	if err != nil {
		return fmt.Errorf("failed to open store; %w", err)
	}
	defer st.Close()

	return fn(ctx, st)
}
