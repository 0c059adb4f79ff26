package subcommands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/archlens/archlens/internal/store"
)

// DisableCmd disables an API key.
var DisableCmd = &cobra.Command{
	Use:   "disable <key-id>",
	Short: "Disable an API key",
	Long: "Disable an API key.\n\n" +
		"Disabled keys are rejected on every request. Disabling is permanent; " +
		"create a new key to restore access.",
	Example: `  # Disable a key
  archlens keys disable 5f0c4b2a-...`,
	Args:    cobra.ExactArgs(1),
	PreRunE: validateDisable,
	RunE:    runDisable,
}

func validateDisable(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	return nil
}

func runDisable(cmd *cobra.Command, args []string) error {
	return withStore(cmd.Context(), func(ctx context.Context, st *store.Store) error {
		if err := st.DisableAPIKey(ctx, args[0]); err != nil {
			return fmt.Errorf("failed to disable api key; %w", err)
		}

		fmt.Printf("Key %s disabled.\n", args[0])
		return nil
	})
}
