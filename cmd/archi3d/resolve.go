package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/archi3d/archi3d/cmd/archi3d/internal/config"
	"github.com/archi3d/archi3d/pkg/adapter"
	"github.com/archi3d/archi3d/pkg/adapter/dryrun"
	"github.com/archi3d/archi3d/pkg/adapter/shell"
	"github.com/archi3d/archi3d/pkg/workspace"
)

// resolveConfig loads config.Resolved using the root command's
// persistent --workspace/--config flags.
func resolveConfig(cmd *cobra.Command) (config.Resolved, error) {
	workspaceFlag, _ := cmd.Root().PersistentFlags().GetString("workspace")
	configFlag, _ := cmd.Root().PersistentFlags().GetString("config")
	return config.Load(config.Options{
		WorkspaceFlag:     workspaceFlag,
		ProjectConfigPath: configFlag,
	})
}

// resolveWorkspace loads config and opens its workspace.Root.
func resolveWorkspace(cmd *cobra.Command) (workspace.Root, config.Resolved, error) {
	resolved, err := resolveConfig(cmd)
	if err != nil {
		return workspace.Root{}, config.Resolved{}, err
	}
	root, err := workspace.New(resolved.Workspace)
	if err != nil {
		return workspace.Root{}, config.Resolved{}, err
	}
	return root, resolved, nil
}

// buildRegistry constructs the adapter.Registry named in
// config.Resolved.EnabledAlgorithms: every enabled algorithm is wired
// to the shell adapter using its configured tool path, falling back
// to the dry-run adapter when no tool path is configured for it (so
// an operator can exercise the pipeline before a real renderer binary
// is available).
func buildRegistry(resolved config.Resolved) *adapter.Registry {
	reg := adapter.NewRegistry()
	for _, algo := range resolved.EnabledAlgorithms {
		if path, ok := resolved.ToolPaths[algo]; ok && path != "" {
			reg.Register(algo, shell.New(path))
		} else {
			reg.Register(algo, dryrun.New())
		}
	}
	return reg
}

func requireWorkspace(resolved config.Resolved) error {
	if resolved.Workspace == "" {
		return fmt.Errorf("workspace not configured: pass --workspace, set ARCHI3D_WORKSPACE, or add \"workspace:\" to archi3d.yaml")
	}
	return nil
}
