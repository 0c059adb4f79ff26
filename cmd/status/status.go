// Package status implements the status command for inspecting projects.
package status

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/archlens/archlens/internal/cmdutil"
	"github.com/archlens/archlens/internal/progress"
	"github.com/archlens/archlens/internal/store"
)

// Flag variables for the status command.
var (
	statusServer string
	statusAPIKey string
	statusJSON   bool
	statusWatch  bool
)

// StatusCmd shows project status, or lists all projects.
var StatusCmd = &cobra.Command{
	Use:   "status [project-id]",
	Short: "Show project status",
	Long: "Show the status of a project, or list all projects.\n\n" +
		"Without arguments, all projects visible to the API key are listed with " +
		"their current status. With a project ID, the full project record is " +
		"shown; --watch additionally streams live progress while an analysis " +
		"is running.",
	Example: `  # List all projects
  archlens status

  # Show one project
  archlens status 5f0c4b2a-...

  # Follow a running analysis
  archlens status 5f0c4b2a-... --watch

  # Machine-readable output
  archlens status --json`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: validateStatus,
	RunE:    runStatus,
}

func init() {
	StatusCmd.Flags().StringVar(&statusServer, "server", "",
		"Server base URL (default: from configuration)")
	StatusCmd.Flags().StringVar(&statusAPIKey, "api-key", "",
		"API key (default: ARCHLENS_API_KEY environment variable)")
	StatusCmd.Flags().BoolVar(&statusJSON, "json", false,
		"Output as JSON")
	StatusCmd.Flags().BoolVar(&statusWatch, "watch", false,
		"Stream live progress (requires a project ID)")
}

func validateStatus(cmd *cobra.Command, args []string) error {
	if statusWatch && len(args) == 0 {
		return fmt.Errorf("--watch requires a project ID")
	}

	cmd.SilenceUsage = true
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	api := cmdutil.NewClient(statusServer, statusAPIKey)
	ctx := cmd.Context()

	if len(args) == 0 {
		projects, err := api.Projects(ctx)
		if err != nil {
			return fmt.Errorf("failed to list projects; %w", err)
		}
		return printProjects(projects)
	}

	project, err := api.Project(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to fetch project; %w", err)
	}

	if err := printProject(project); err != nil {
		return err
	}

	if !statusWatch || terminalStatus(project.Status) {
		return nil
	}

	fmt.Println()
	return api.WatchProgress(ctx, project.ID, func(u progress.Update) bool {
		line := fmt.Sprintf("[%5.1f%%] %s", u.Percent, u.Phase)
		if u.Message != "" {
			line += " - " + u.Message
		}
		fmt.Println(line)
		return u.Phase != progress.PhaseCompleted && u.Phase != progress.PhaseFailed
	})
}

func printProjects(projects []store.Project) error {
	if statusJSON {
		return printJSON(projects)
	}

	if len(projects) == 0 {
		fmt.Println("No projects.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tFILES\tLOC\tCREATED")
	for _, p := range projects {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			p.ID, p.Name, p.Status, p.FileCount, p.TotalLOC,
			p.CreatedAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}

func printProject(p *store.Project) error {
	if statusJSON {
		return printJSON(p)
	}

	fmt.Printf("Project:  %s\n", p.Name)
	fmt.Printf("ID:       %s\n", p.ID)
	fmt.Printf("Status:   %s\n", p.Status)
	fmt.Printf("Files:    %d\n", p.FileCount)
	fmt.Printf("LOC:      %d\n", p.TotalLOC)
	fmt.Printf("Created:  %s\n", p.CreatedAt.Local().Format(time.DateTime))
	fmt.Printf("Updated:  %s\n", p.UpdatedAt.Local().Format(time.DateTime))
	if p.AnalyzedAt != nil {
		fmt.Printf("Analyzed: %s\n", p.AnalyzedAt.Local().Format(time.DateTime))
	}
	if p.ErrorMessage != "" {
		fmt.Printf("Error:    %s\n", p.ErrorMessage)
	}
	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output; %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// terminalStatus reports whether the project is in a state with no further
// progress to stream.
func terminalStatus(s store.ProjectStatus) bool {
	switch s {
	case store.StatusCompleted, store.StatusFailed, store.StatusCreated:
		return true
	}
	return false
}
