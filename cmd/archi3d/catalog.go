package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/archi3d/archi3d/pkg/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Build the items/issues catalog from the dataset tree",
}

var catalogBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Scan the dataset tree and upsert the items SSOT and issues table",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, resolved, err := resolveWorkspace(cmd)
		if err != nil {
			return err
		}
		if err := requireWorkspace(resolved); err != nil {
			return err
		}

		enrichmentPath, _ := cmd.Flags().GetString("enrichment")

		result, err := catalog.Build(root, catalog.Options{EnrichmentPath: enrichmentPath})
		if err != nil {
			return fmt.Errorf("catalog build: %w", err)
		}

		fmt.Printf("items scanned: %d, inserted: %d, updated: %d\n", result.ItemsScanned, result.Inserted, result.Updated)
		for tag, n := range result.IssueCounts {
			fmt.Printf("  issue %s: %d\n", tag, n)
		}
		return nil
	},
}

func init() {
	catalogCmd.AddCommand(catalogBuildCmd)
	catalogBuildCmd.Flags().String("enrichment", "", "Path to a JSON enrichment document")
}
