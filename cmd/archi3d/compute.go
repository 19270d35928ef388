package main

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"
)

// computeCmd's sub-commands invoke the geometry/visual-fidelity metric
// evaluators spec.md lists as external collaborators "specified only
// by interface": they consume completed-job rows and write metric
// columns back, but the evaluators themselves (geometry comparison,
// LPIPS/IoU scoring) are out of scope for this module. archi3d only
// shells out to whatever evaluator binary an operator has configured,
// the same tool-path convention the shell adapter uses for rendering.
var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Invoke an external metric evaluator over a run's completed jobs",
}

func externalEvaluatorCmd(use, short, toolKey string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
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

			toolPath, ok := resolved.ToolPaths[toolKey]
			if !ok || toolPath == "" {
				return fmt.Errorf("no evaluator configured for tool_paths.%s; this command only dispatches to an external evaluator binary, it does not compute metrics itself", toolKey)
			}

			c := exec.CommandContext(context.Background(), toolPath, "--workspace", resolved.Workspace, "--run-id", runID)
			out, err := c.CombinedOutput()
			fmt.Print(string(out))
			if err != nil {
				return fmt.Errorf("%s: %w", toolKey, err)
			}
			return nil
		},
	}
}

var computeFscoreCmd = externalEvaluatorCmd("fscore", "Invoke the configured geometry (f-score) evaluator", "fscore_evaluator")
var computeVfscoreCmd = externalEvaluatorCmd("vfscore", "Invoke the configured visual-fidelity evaluator", "vfscore_evaluator")

func init() {
	for _, c := range []*cobra.Command{computeFscoreCmd, computeVfscoreCmd} {
		c.Flags().String("run-id", "", "Run id whose completed jobs to evaluate (required)")
		computeCmd.AddCommand(c)
	}
}
