// Package cmd wires the archlens command tree.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	deletecmd "github.com/archlens/archlens/cmd/delete"
	"github.com/archlens/archlens/cmd/initialize"
	"github.com/archlens/archlens/cmd/keys"
	"github.com/archlens/archlens/cmd/preflight"
	"github.com/archlens/archlens/cmd/report"
	"github.com/archlens/archlens/cmd/reset"
	"github.com/archlens/archlens/cmd/serve"
	"github.com/archlens/archlens/cmd/status"
	"github.com/archlens/archlens/cmd/submit"
	"github.com/archlens/archlens/cmd/version"
	"github.com/archlens/archlens/internal/config"
	"github.com/archlens/archlens/internal/logging"
)

// logManager is the process logging manager, created in init() and
// upgraded after config loads.
var logManager *logging.Manager

var archlensCmd = &cobra.Command{
	Use:   "archlens",
	Short: "Automated architecture review for source repositories",
	Long: "ArchLens analyzes a source-code repository and produces a consolidated " +
		"architecture review: a health score, categorized findings with severity, and " +
		"recommendations.\n\n" +
		"Archives are uploaded through the HTTP API, analyzed asynchronously on " +
		"background workers driven by a durable message bus, and progress is streamed " +
		"back to clients in real time. The client commands (submit, status, report, " +
		"reset, delete) talk to a running 'archlens serve' instance.",
	PersistentPreRunE: runInitialize,
}

func init() {
	// Bootstrap mode: text to stderr until config is loaded.
	logManager = logging.NewManager()

	archlensCmd.AddCommand(serve.ServeCmd)
	archlensCmd.AddCommand(initialize.InitCmd)
	archlensCmd.AddCommand(submit.SubmitCmd)
	archlensCmd.AddCommand(status.StatusCmd)
	archlensCmd.AddCommand(report.ReportCmd)
	archlensCmd.AddCommand(preflight.PreflightCmd)
	archlensCmd.AddCommand(reset.ResetCmd)
	archlensCmd.AddCommand(deletecmd.DeleteCmd)
	archlensCmd.AddCommand(keys.KeysCmd)
	archlensCmd.AddCommand(version.VersionCmd)
}

func runInitialize(cmd *cobra.Command, args []string) error {
	logger := logManager.Logger()

	if err := config.Init(); err != nil {
		return err
	}

	cfg := config.Get()
	level, ok := logging.ParseLevel(cfg.LogLevel)
	if !ok {
		level = logging.DefaultLevel
		if cfg.LogLevel != "" {
			logger.Warn("invalid log level configured, using default",
				"configured", cfg.LogLevel, "default", "info")
		}
	}

	logManager.Upgrade(cfg.LogFile, level)
	return nil
}

// Execute runs the root command.
func Execute() error {
	archlensCmd.SilenceErrors = true
	archlensCmd.SilenceUsage = true

	defer func() { _ = logManager.Close() }()

	err := archlensCmd.Execute()

	if err != nil {
		cmd, _, _ := archlensCmd.Find(os.Args[1:])
		if cmd == nil {
			cmd = archlensCmd
		}

		fmt.Printf("Error: %v\n", err)
		if !cmd.SilenceUsage {
			fmt.Printf("\n")
			cmd.SetOut(os.Stdout)
			_ = cmd.Usage()
		}

		return err
	}

	return nil
}
