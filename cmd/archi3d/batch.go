package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/archi3d/archi3d/pkg/planner"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Create batches of generation jobs",
}

// ecotestAlgorithms is the CLI-level expansion for --ecotest (spec.md
// §9 Open Questions: "ecotest" selection is not defined in the core,
// so it is kept as a CLI-only helper that expands to an explicit
// algorithm list before calling the planner). The planner itself
// never sees the string "ecotest", only these resolved keys.
var ecotestAlgorithms = []string{"ecotest_low", "ecotest_mid", "ecotest_high"}

var batchCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Enqueue generation jobs for the current item catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, resolved, err := resolveWorkspace(cmd)
		if err != nil {
			return err
		}
		if err := requireWorkspace(resolved); err != nil {
			return err
		}

		algos, _ := cmd.Flags().GetStringSlice("algo")
		ecotest, _ := cmd.Flags().GetBool("ecotest")
		if ecotest {
			algos = append(algos, ecotestAlgorithms...)
		}
		if len(algos) == 0 {
			return fmt.Errorf("at least one --algo (or --ecotest) is required")
		}

		runID, _ := cmd.Flags().GetString("run-id")
		include, _ := cmd.Flags().GetString("include")
		exclude, _ := cmd.Flags().GetString("exclude")
		withGTOnly, _ := cmd.Flags().GetBool("with-gt-only")
		limit, _ := cmd.Flags().GetInt("limit")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		result, err := planner.Plan(root, planner.Options{
			RunID: runID,
			Algos: algos,
			Filters: planner.Filters{
				Include:    include,
				Exclude:    exclude,
				WithGTOnly: withGTOnly,
				Limit:      limit,
			},
			DryRun: dryRun,
		}, time.Now())
		if err != nil {
			return fmt.Errorf("batch create: %w", err)
		}

		fmt.Printf("run_id: %s\n", result.RunID)
		fmt.Printf("candidates: %d, enqueued: %d, skipped: %d\n", result.Candidates, result.Enqueued, result.Skipped)
		return nil
	},
}

func init() {
	batchCmd.AddCommand(batchCreateCmd)

	batchCreateCmd.Flags().String("run-id", "", "Run id (auto-generated if empty)")
	batchCreateCmd.Flags().StringSlice("algo", nil, "Algorithm keys to enqueue (repeatable, comma-separated)")
	batchCreateCmd.Flags().Bool("ecotest", false, "Expand to the built-in ecotest algorithm set")
	batchCreateCmd.Flags().String("include", "", "Only enqueue items matching this substring")
	batchCreateCmd.Flags().String("exclude", "", "Skip items matching this substring")
	batchCreateCmd.Flags().Bool("with-gt-only", false, "Only enqueue items that have ground truth")
	batchCreateCmd.Flags().Int("limit", 0, "Cap the number of enqueued jobs (0 = unlimited)")
	batchCreateCmd.Flags().Bool("dry-run", false, "Report candidates without writing to the generations SSOT")
}
