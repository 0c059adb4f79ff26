// Package preflight implements the preflight command for cost estimation.
package preflight

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/archlens/archlens/internal/cmdutil"
	"github.com/archlens/archlens/internal/config"
	"github.com/archlens/archlens/internal/jobs"
	"github.com/archlens/archlens/internal/router"
)

// Flag variables for the preflight command.
var (
	preflightServer string
	preflightAPIKey string
	preflightJSON   bool
)

// PreflightCmd estimates the size and cost of analyzing a tree or project.
var PreflightCmd = &cobra.Command{
	Use:   "preflight <dir | project-id>",
	Short: "Estimate analysis size and cost",
	Long: "Estimate analysis size and cost before committing to it.\n\n" +
		"Given a local directory, the tree is routed with the configured " +
		"thresholds and the estimate is computed locally without contacting the " +
		"server. Given a project ID, the server computes the estimate from the " +
		"uploaded archive.\n\n" +
		"The estimate includes per-decision file counts, skip reasons, an " +
		"extension breakdown, and projected tokens, cost, and processing time. " +
		"Estimates above the configured approval thresholds require --approve " +
		"at submit time.",
	Example: `  # Estimate a local tree before uploading
  archlens preflight ./myapp

  # Estimate an uploaded project on the server
  archlens preflight 5f0c4b2a-...

  # Machine-readable output
  archlens preflight ./myapp --json`,
	Args:    cobra.ExactArgs(1),
	PreRunE: validatePreflight,
	RunE:    runPreflight,
}

func init() {
	PreflightCmd.Flags().StringVar(&preflightServer, "server", "",
		"Server base URL (default: from configuration)")
	PreflightCmd.Flags().StringVar(&preflightAPIKey, "api-key", "",
		"API key (default: ARCHLENS_API_KEY environment variable)")
	PreflightCmd.Flags().BoolVar(&preflightJSON, "json", false,
		"Output as JSON")
}

func validatePreflight(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	return nil
}

func runPreflight(cmd *cobra.Command, args []string) error {
	target := args[0]

	if path, err := cmdutil.ResolvePath(target); err == nil {
		if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
			return runLocal(path)
		}
	}

	return runRemote(cmd, target)
}

// runLocal estimates a local tree with the configured thresholds.
func runLocal(dir string) error {
	cfg := config.Get()

	estimate, err := jobs.EstimateDir(dir,
		router.Config{
			DirectSendThresholdBytes: cfg.Analysis.DirectSendThresholdBytes,
			RagChunkThresholdBytes:   cfg.Analysis.RagChunkThresholdBytes,
			AllowLargeFiles:          cfg.Analysis.AllowLargeFiles,
			RiskThreshold:            cfg.Analysis.RiskThreshold,
		},
		router.PreflightConfig{
			WarnThresholdTokens:     cfg.Analysis.WarnThresholdTokens,
			ApprovalThresholdTokens: cfg.Analysis.ApprovalThresholdTokens,
			ApprovalThresholdCost:   cfg.Analysis.ApprovalThresholdCost,
			PricePerMillionTokens:   cfg.Analysis.PricePerMillionTokens,
		})
	if err != nil {
		return fmt.Errorf("failed to estimate %s; %w", dir, err)
	}

	return printEstimate(estimate)
}

// runRemote asks the server to estimate an uploaded project.
func runRemote(cmd *cobra.Command, projectID string) error {
	api := cmdutil.NewClient(preflightServer, preflightAPIKey)

	estimate, err := api.Preflight(cmd.Context(), projectID)
	if err != nil {
		return fmt.Errorf("failed to fetch estimate; %w", err)
	}

	return printEstimate(estimate)
}

func printEstimate(p *router.Preflight) error {
	if preflightJSON {
		data, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal estimate; %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Files:            %d total (%d direct, %d chunked, %d skipped)\n",
		p.TotalFiles, p.DirectCount, p.RagCount, p.SkippedCount)

	if len(p.SkipReasons) > 0 {
		fmt.Println("Skip reasons:")
		for _, reason := range sortedSkipReasons(p.SkipReasons) {
			fmt.Printf("  %-16s %d\n", reason, p.SkipReasons[reason])
		}
	}

	if len(p.ExtensionBreakdown) > 0 {
		fmt.Println("Extensions:")
		for _, ext := range sortedExtensions(p.ExtensionBreakdown) {
			fmt.Printf("  %-16s %d\n", ext, p.ExtensionBreakdown[ext])
		}
	}

	fmt.Printf("Estimated tokens: %d\n", p.EstimatedTokens)
	fmt.Printf("Estimated cost:   $%.4f\n", p.EstimatedCost)
	fmt.Printf("Estimated time:   %s\n", (time.Duration(p.EstimatedSeconds) * time.Second).String())

	for _, w := range p.Warnings {
		fmt.Printf("\nWarning: %s\n", w)
	}
	if p.RequiresApproval {
		fmt.Println("\nThis analysis exceeds the approval threshold; submit with --approve.")
	}

	return nil
}

func sortedSkipReasons(m map[router.SkipReason]int) []router.SkipReason {
	reasons := make([]router.SkipReason, 0, len(m))
	for r := range m {
		reasons = append(reasons, r)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })
	return reasons
}

func sortedExtensions(m map[string]int) []string {
	exts := make([]string, 0, len(m))
	for e := range m {
		exts = append(exts, e)
	}
	sort.Strings(exts)
	return exts
}
