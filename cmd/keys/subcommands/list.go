package subcommands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/archlens/archlens/internal/store"
)

// ListCmd lists all API keys.
var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "List API keys",
	Long: "List all API keys with their status and last use.\n\n" +
		"Plaintext keys are never stored and cannot be shown.",
	Example: `  # List all keys
  archlens keys list`,
	Args:    cobra.NoArgs,
	PreRunE: validateList,
	RunE:    runList,
}

func validateList(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	return withStore(cmd.Context(), func(ctx context.Context, st *store.Store) error {
		keys, err := st.ListAPIKeys(ctx)
		if err != nil {
			return fmt.Errorf("failed to list api keys; %w", err)
		}

		if len(keys) == 0 {
			fmt.Println("No API keys. Create one with 'archlens keys create <name>'.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTATUS\tCREATED\tLAST USED")
		for _, k := range keys {
			status := "active"
			if k.Disabled {
				status = "disabled"
			}
			lastUsed := "never"
			if k.LastUsedAt != nil {
				lastUsed = k.LastUsedAt.Local().Format(time.DateTime)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				k.ID, k.Name, status, k.CreatedAt.Local().Format(time.DateTime), lastUsed)
		}
		return w.Flush()
	})
}
