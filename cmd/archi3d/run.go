package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/archi3d/archi3d/pkg/archtype"
	"github.com/archi3d/archi3d/pkg/worker"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run worker passes over a batch",
}

var runWorkerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Claim and execute enqueued jobs for a run",
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
		jobFilter, _ := cmd.Flags().GetString("job-filter")
		maxParallel, _ := cmd.Flags().GetInt("max-parallel")
		failFast, _ := cmd.Flags().GetBool("fail-fast")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		adapterOverride, _ := cmd.Flags().GetString("adapter-override")
		gpu, _ := cmd.Flags().GetString("gpu")
		envTag, _ := cmd.Flags().GetString("env-tag")
		commit, _ := cmd.Flags().GetString("commit")

		registry := buildRegistry(resolved)

		engine := worker.New(root, worker.Config{
			RunID:           runID,
			JobFilter:       jobFilter,
			Registry:        registry,
			AdapterOverride: adapterOverride,
			MaxParallel:     maxParallel,
			FailFast:        failFast,
			DryRun:          dryRun,
			Identity:        worker.NewIdentity(gpu, envTag, commit),
			PriceTable:      resolved.PriceTable,
			OnlyStatus:      []archtype.Status{archtype.StatusEnqueued},
		})

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		result, err := engine.Run(ctx)
		if err != nil {
			return fmt.Errorf("worker run: %w", err)
		}

		fmt.Printf("claimed: %d, completed: %d, failed: %d, skipped: %d\n",
			result.Claimed, result.Completed, result.Failed, result.Skipped)
		return nil
	},
}

func init() {
	runCmd.AddCommand(runWorkerCmd)

	runWorkerCmd.Flags().String("run-id", "", "Run id to process (required)")
	runWorkerCmd.Flags().String("job-filter", "", "Restrict to matching job ids: substring, glob, or re:<pattern>")
	runWorkerCmd.Flags().Int("max-parallel", 1, "Max concurrent jobs this process claims")
	runWorkerCmd.Flags().Bool("fail-fast", false, "Stop claiming new jobs after the first failure")
	runWorkerCmd.Flags().Bool("dry-run", false, "Use the dry-run adapter regardless of configured algorithms")
	runWorkerCmd.Flags().String("adapter-override", "", "Force a single adapter key for every job")
	runWorkerCmd.Flags().String("gpu", "", "Worker identity: GPU tag stamped on every row this process writes")
	runWorkerCmd.Flags().String("env-tag", "", "Worker identity: environment tag")
	runWorkerCmd.Flags().String("commit", "", "Worker identity: build commit")
}
