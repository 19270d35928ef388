package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	alog "github.com/archi3d/archi3d/pkg/log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "archi3d",
	Short: "Archi3D batch orchestration for 2D-to-3D generation experiments",
	Long: `Archi3D drives a deterministic, idempotent, crash-safe batch
pipeline over a file-system single source of truth: a catalog builder
scans a dataset tree into CSV tables, a planner enqueues generation
jobs, a worker engine executes them with bounded parallelism, and a
consolidator reconciles the generations table against on-disk
evidence after a crash or partial run.`,
}

func init() {
	rootCmd.PersistentFlags().String("workspace", "", "Workspace root (overrides config/env)")
	rootCmd.PersistentFlags().String("config", "", "Project config file path (default ./archi3d.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(consolidateCmd)
	rootCmd.AddCommand(computeCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(serveMetricsCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	alog.Init(alog.Config{
		Level:      alog.Level(logLevel),
		JSONOutput: logJSON,
	})
}
