package main

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"
)

// reportCmd is, like computeCmd, a thin dispatcher over an external
// collaborator: spec.md lists report/HTML generation as read-only
// over the SSOT and out of scope for the core. archi3d only invokes
// the configured report renderer; it does not template HTML itself.
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render reports from the workspace SSOT",
}

var reportBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Invoke the configured report renderer for a run",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, resolved, err := resolveWorkspace(cmd)
		if err != nil {
			return err
		}
		if err := requireWorkspace(resolved); err != nil {
			return err
		}

		runID, _ := cmd.Flags().GetString("run-id")
		if runID == "" {
			return fmt.Errorf("--run-id is required")
		}

		toolPath, ok := resolved.ToolPaths["report_renderer"]
		if !ok || toolPath == "" {
			return fmt.Errorf("no renderer configured for tool_paths.report_renderer; this command only dispatches to an external report renderer, it does not template HTML itself")
		}

		c := exec.CommandContext(context.Background(), toolPath, "--workspace", resolved.Workspace, "--run-id", runID)
		out, err := c.CombinedOutput()
		fmt.Print(string(out))
		if err != nil {
			return fmt.Errorf("report build: %w", err)
		}
		return nil
	},
}

func init() {
	reportCmd.AddCommand(reportBuildCmd)
	reportBuildCmd.Flags().String("run-id", "", "Run id to report on (required)")
}
