// Package delete implements the delete command for removing projects.
package delete

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/archlens/archlens/internal/cmdutil"
)

// Flag variables for the delete command.
var (
	deleteServer string
	deleteAPIKey string
	deleteYes    bool
)

// DeleteCmd permanently removes a project and all its data.
var DeleteCmd = &cobra.Command{
	Use:   "delete <project-id>",
	Short: "Delete a project and all its data",
	Long: "Delete a project and all its data.\n\n" +
		"Deletion removes the uploaded archive from object storage, the project's " +
		"vectors from the vector database, and every record derived from it: file " +
		"decisions, findings, and reports. This cannot be undone.",
	Example: `  # Delete a project (asks for confirmation)
  archlens delete 5f0c4b2a-...

  # Delete without confirmation
  archlens delete 5f0c4b2a-... --yes`,
	Args:    cobra.ExactArgs(1),
	PreRunE: validateDelete,
	RunE:    runDelete,
}

func init() {
	DeleteCmd.Flags().StringVar(&deleteServer, "server", "",
		"Server base URL (default: from configuration)")
	DeleteCmd.Flags().StringVar(&deleteAPIKey, "api-key", "",
		"API key (default: ARCHLENS_API_KEY environment variable)")
	DeleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false,
		"Skip the confirmation prompt")
}

func validateDelete(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	projectID := args[0]

	if !deleteYes {
		confirmed, err := confirm(fmt.Sprintf("Delete project %s and all its data? [y/N]: ", projectID))
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Println("Aborted.")
			return nil
		}
	}

	api := cmdutil.NewClient(deleteServer, deleteAPIKey)

	if err := api.Delete(cmd.Context(), projectID); err != nil {
		return fmt.Errorf("failed to delete project; %w", err)
	}

	fmt.Printf("Project %s deleted.\n", projectID)
	return nil
}

// confirm prompts on stdout and reads a yes/no answer from stdin.
func confirm(prompt string) (bool, error) {
	fmt.Print(prompt)

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("failed to read confirmation; %w", err)
	}

	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
