// Package submit implements the submit command for uploading archives.
package submit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/archlens/archlens/internal/client"
	"github.com/archlens/archlens/internal/cmdutil"
	"github.com/archlens/archlens/internal/progress"
)

// Flag variables for the submit command.
var (
	submitServer  string
	submitAPIKey  string
	submitName    string
	submitAnalyze bool
	submitApprove bool
	submitWatch   bool
)

// supportedExtensions are the archive formats the server accepts.
var supportedExtensions = []string{".zip", ".tar.gz", ".tgz"}

// SubmitCmd uploads a source archive as a new project.
var SubmitCmd = &cobra.Command{
	Use:   "submit <archive>",
	Short: "Upload a source archive as a new project",
	Long: "Upload a source archive as a new project.\n\n" +
		"The archive (zip, tar.gz, or tgz) is stored by the server and a project " +
		"record is created in Created status. With --analyze, analysis is enqueued " +
		"immediately after upload; with --watch, live progress is streamed until " +
		"the analysis completes or fails.\n\n" +
		"Analysis of a large project can exceed the server's cost threshold, in " +
		"which case the enqueue is rejected until re-run with --approve. Use " +
		"'archlens preflight' to estimate tokens and cost beforehand.",
	Example: `  # Upload an archive
  archlens submit ./myapp.tar.gz

  # Upload under an explicit project name
  archlens submit ./build/src.zip --name myapp

  # Upload, start analysis, and stream progress
  archlens submit ./myapp.tar.gz --analyze --watch

  # Approve an analysis that exceeds the cost threshold
  archlens submit ./huge-monorepo.tar.gz --analyze --approve`,
	Args:    cobra.ExactArgs(1),
	PreRunE: validateSubmit,
	RunE:    runSubmit,
}

func init() {
	SubmitCmd.Flags().StringVar(&submitServer, "server", "",
		"Server base URL (default: from configuration)")
	SubmitCmd.Flags().StringVar(&submitAPIKey, "api-key", "",
		"API key (default: ARCHLENS_API_KEY environment variable)")
	SubmitCmd.Flags().StringVar(&submitName, "name", "",
		"Project name (default: archive filename without extension)")
	SubmitCmd.Flags().BoolVar(&submitAnalyze, "analyze", false,
		"Enqueue analysis immediately after upload")
	SubmitCmd.Flags().BoolVar(&submitApprove, "approve", false,
		"Approve analysis past the cost threshold (implies --analyze)")
	SubmitCmd.Flags().BoolVar(&submitWatch, "watch", false,
		"Stream progress until analysis finishes (implies --analyze)")
}

func validateSubmit(cmd *cobra.Command, args []string) error {
	path, err := cmdutil.ResolvePath(args[0])
	if err != nil {
		return fmt.Errorf("invalid archive path %q; %w", args[0], err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access archive %q; %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%q is a directory; submit expects an archive file", path)
	}

	if !supportedExtension(path) {
		return fmt.Errorf("unsupported archive format %q; supported: %s",
			filepath.Ext(path), strings.Join(supportedExtensions, ", "))
	}

	if submitApprove || submitWatch {
		submitAnalyze = true
	}

	cmd.SilenceUsage = true
	return nil
}

func runSubmit(cmd *cobra.Command, args []string) error {
	path, err := cmdutil.ResolvePath(args[0])
	if err != nil {
		return err
	}

	name := submitName
	if name == "" {
		name = projectNameFromPath(path)
	}

	api := cmdutil.NewClient(submitServer, submitAPIKey)
	ctx := cmd.Context()

	project, err := api.Upload(ctx, path, name)
	if err != nil {
		return fmt.Errorf("upload failed; %w", err)
	}

	fmt.Printf("Project %s uploaded (%s, %d files)\n", project.Name, project.ID, project.FileCount)

	if !submitAnalyze {
		fmt.Printf("\nAnalysis not started; re-run with --analyze or use the HTTP API.\n")
		fmt.Printf("To check the project, run:\n  archlens status %s\n", project.ID)
		return nil
	}

	accepted, err := api.Analyze(ctx, project.ID, submitApprove)
	if err != nil {
		return fmt.Errorf("failed to enqueue analysis; %w", err)
	}

	fmt.Printf("Analysis enqueued (correlation %s)\n", accepted.CorrelationID)

	if !submitWatch {
		fmt.Printf("\nTo follow progress, run:\n  archlens status %s\n", project.ID)
		return nil
	}

	return watchProgress(cmd, api, project.ID)
}

// watchProgress streams progress updates to stdout until a terminal phase.
func watchProgress(cmd *cobra.Command, api *client.Client, projectID string) error {
	var failed bool
	err := api.WatchProgress(cmd.Context(), projectID, func(u progress.Update) bool {
		line := fmt.Sprintf("[%5.1f%%] %s", u.Percent, u.Phase)
		if u.CurrentFile != "" {
			line += " " + u.CurrentFile
		}
		if u.Message != "" {
			line += " - " + u.Message
		}
		fmt.Println(line)

		switch u.Phase {
		case progress.PhaseCompleted:
			return false
		case progress.PhaseFailed:
			failed = true
			return false
		}
		return true
	})
	if err != nil {
		return fmt.Errorf("progress stream failed; %w", err)
	}
	if failed {
		return fmt.Errorf("analysis failed; run 'archlens status %s' for details", projectID)
	}

	fmt.Printf("\nAnalysis complete. To view the report, run:\n  archlens report %s\n", projectID)
	return nil
}

// supportedExtension reports whether the path ends in a supported archive
// extension.
func supportedExtension(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range supportedExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// projectNameFromPath derives a project name from the archive filename.
func projectNameFromPath(path string) string {
	name := filepath.Base(path)
	lower := strings.ToLower(name)
	for _, ext := range supportedExtensions {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}
