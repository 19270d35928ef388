package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMergesLayersWithSecretsOverProject(t *testing.T) {
	dir := t.TempDir()
	workspace := filepath.Join(dir, "workspace")
	require.NoError(t, os.MkdirAll(workspace, 0o755))

	projectPath := filepath.Join(dir, "archi3d.yaml")
	require.NoError(t, os.WriteFile(projectPath, []byte(`
workspace: `+workspace+`
enabled_algorithms: ["algo1", "algo2"]
price_table:
  algo1: 1.5
tool_paths:
  renderer: /usr/bin/render
`), 0o644))

	secretsPath := filepath.Join(workspace, ".archi3d.secrets.yaml")
	require.NoError(t, os.WriteFile(secretsPath, []byte(`
price_table:
  algo1: 9.9
  algo2: 2.0
`), 0o644))

	resolved, err := Load(Options{ProjectConfigPath: projectPath})
	require.NoError(t, err)

	require.Equal(t, []string{"algo1", "algo2"}, resolved.EnabledAlgorithms)
	require.Equal(t, "/usr/bin/render", resolved.ToolPaths["renderer"])
	require.Equal(t, 9.9, resolved.PriceTable["algo1"])
	require.Equal(t, 2.0, resolved.PriceTable["algo2"])
}

func TestLoadEnvOverridesWorkspace(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ARCHI3D_WORKSPACE", filepath.Join(dir, "from-env"))

	resolved, err := Load(Options{ProjectConfigPath: filepath.Join(dir, "missing.yaml")})
	require.NoError(t, err)

	require.Equal(t, filepath.Join(dir, "from-env"), resolved.Workspace)
}

func TestLoadExplicitWorkspaceFlagWins(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ARCHI3D_WORKSPACE", filepath.Join(dir, "from-env"))

	resolved, err := Load(Options{
		WorkspaceFlag:     filepath.Join(dir, "from-flag"),
		ProjectConfigPath: filepath.Join(dir, "missing.yaml"),
	})
	require.NoError(t, err)

	require.Equal(t, filepath.Join(dir, "from-flag"), resolved.Workspace)
}

func TestLoadMissingFilesIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	resolved, err := Load(Options{
		WorkspaceFlag:     dir,
		ProjectConfigPath: filepath.Join(dir, "does-not-exist.yaml"),
	})
	require.NoError(t, err)
	require.Equal(t, dir, resolved.Workspace)
	require.Empty(t, resolved.EnabledAlgorithms)
}
