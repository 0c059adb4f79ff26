// Package reset implements the reset command for re-analyzing projects.
package reset

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/archlens/archlens/internal/cmdutil"
)

// Flag variables for the reset command.
var (
	resetServer string
	resetAPIKey string
)

// ResetCmd resets a project so it can be analyzed again.
var ResetCmd = &cobra.Command{
	Use:   "reset <project-id>",
	Short: "Reset a project for re-analysis",
	Long: "Reset a project for re-analysis.\n\n" +
		"Resetting clears the project's derived analysis state: indexed vectors, " +
		"stored findings, and the report. The uploaded archive is kept, and the " +
		"project returns to the files-ready state so analysis can be enqueued " +
		"again. A project cannot be reset while an analysis is running.",
	Example: `  # Reset a completed or failed project
  archlens reset 5f0c4b2a-...`,
	Args:    cobra.ExactArgs(1),
	PreRunE: validateReset,
	RunE:    runReset,
}

func init() {
	ResetCmd.Flags().StringVar(&resetServer, "server", "",
		"Server base URL (default: from configuration)")
	ResetCmd.Flags().StringVar(&resetAPIKey, "api-key", "",
		"API key (default: ARCHLENS_API_KEY environment variable)")
}

func validateReset(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	api := cmdutil.NewClient(resetServer, resetAPIKey)

	project, err := api.Reset(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to reset project; %w", err)
	}

	fmt.Printf("Project %s reset (status: %s)\n", project.ID, project.Status)
	return nil
}
