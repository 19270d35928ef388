package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/archi3d/archi3d/pkg/consolidator"
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Reconcile the generations SSOT against on-disk evidence for a run",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, resolved, err := resolveWorkspace(cmd)
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
		fixStatus, _ := cmd.Flags().GetBool("fix-status")
		strict, _ := cmd.Flags().GetBool("strict")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		result, err := consolidator.Consolidate(root, consolidator.Options{
			RunID:     runID,
			FixStatus: fixStatus,
			Strict:    strict,
			DryRun:    dryRun,
		}, time.Now())
		if err != nil {
			return fmt.Errorf("consolidate: %w", err)
		}

		fmt.Printf("considered: %d, updated: %d, unchanged: %d\n", result.Considered, result.Updated, result.Unchanged)
		fmt.Printf("conflicts resolved: %d, marker mismatches fixed: %d, downgraded missing output: %d\n",
			result.ConflictsResolved, result.MarkerMismatchesFixed, result.DowngradedMissingOutput)
		return nil
	},
}

func init() {
	consolidateCmd.Flags().String("run-id", "", "Run id to reconcile (required)")
	consolidateCmd.Flags().Bool("fix-status", false, "Downgrade completed rows with missing output to failed")
	consolidateCmd.Flags().Bool("strict", false, "Fail on any detected conflict instead of resolving it")
	consolidateCmd.Flags().Bool("dry-run", false, "Report what would change without writing")
}
