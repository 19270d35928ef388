// Package config resolves the CLI's layered configuration into a
// single config.Resolved value, per spec.md §6.5. The core packages
// never see this package — they accept an already-resolved value, so
// all precedence logic (env, workspace secrets, user config, project
// config) lives here, at the ambient CLI boundary.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Resolved is what every CLI sub-command builds before invoking core
// packages: a workspace root, the enabled algorithm set, a
// per-algorithm price table, external tool paths (e.g. a renderer
// executable consumed by the shell adapter), and the serve-metrics
// listen address. It carries no metric-evaluator defaults.
type Resolved struct {
	Workspace         string
	EnabledAlgorithms []string
	PriceTable        map[string]float64
	ToolPaths         map[string]string
	MetricsAddr       string
}

// Options carries the values only a CLI command (not a config file)
// can supply: an explicit --workspace flag and an override for the
// project config file's location, mainly for tests.
type Options struct {
	WorkspaceFlag     string
	ProjectConfigPath string // defaults to "./archi3d.yaml"
}

const envPrefix = "ARCHI3D"

// Load resolves configuration with precedence (highest first):
// process environment (ARCHI3D_*) → workspace-adjacent secrets file
// (.archi3d.secrets.yaml, price_table keys only) → user config
// ($XDG_CONFIG_HOME/archi3d/config.yaml) → project config
// (./archi3d.yaml). An explicit --workspace flag outranks all of the
// above, matching ordinary CLI-flag expectations.
func Load(opts Options) (Resolved, error) {
	v := viper.New()

	projectPath := opts.ProjectConfigPath
	if projectPath == "" {
		projectPath = "archi3d.yaml"
	}
	if err := mergeYAMLFile(v, projectPath); err != nil {
		return Resolved{}, err
	}

	if userPath, err := userConfigPath(); err == nil {
		if err := mergeYAMLFile(v, userPath); err != nil {
			return Resolved{}, err
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	workspace := opts.WorkspaceFlag
	if workspace == "" {
		workspace = v.GetString("workspace")
	}
	if workspace == "" {
		workspace = "."
	}
	absWorkspace, err := filepath.Abs(workspace)
	if err != nil {
		return Resolved{}, fmt.Errorf("resolve workspace %q: %w", workspace, err)
	}

	secretsPath := filepath.Join(absWorkspace, ".archi3d.secrets.yaml")
	if err := mergeSecretsFile(v, secretsPath); err != nil {
		return Resolved{}, err
	}

	priceTable := make(map[string]float64)
	for algo, raw := range v.GetStringMap("price_table") {
		switch n := raw.(type) {
		case float64:
			priceTable[algo] = n
		case int:
			priceTable[algo] = float64(n)
		}
	}

	return Resolved{
		Workspace:         absWorkspace,
		EnabledAlgorithms: v.GetStringSlice("enabled_algorithms"),
		PriceTable:        priceTable,
		ToolPaths:         v.GetStringMapString("tool_paths"),
		MetricsAddr:       v.GetString("metrics_addr"),
	}, nil
}

// userConfigPath returns $XDG_CONFIG_HOME/archi3d/config.yaml,
// falling back to ~/.config/archi3d/config.yaml.
func userConfigPath() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "archi3d", "config.yaml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "archi3d", "config.yaml"), nil
}

// mergeYAMLFile parses path with yaml.v3 and merges it into v at
// higher precedence than anything merged before it (Load therefore
// merges the project file first and the user file second). A missing
// file is not an error — every layer is optional.
func mergeYAMLFile(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config %q: %w", path, err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse config %q: %w", path, err)
	}
	return v.MergeConfigMap(doc)
}

// mergeSecretsFile merges only the price_table key from the
// workspace secrets document — §6.5 restricts this layer to pricing
// keys, since the file is expected to hold figures an operator wants
// out of the project/user config (and out of version control).
func mergeSecretsFile(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read secrets %q: %w", path, err)
	}
	var doc struct {
		PriceTable map[string]float64 `yaml:"price_table"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse secrets %q: %w", path, err)
	}
	if doc.PriceTable == nil {
		return nil
	}
	// viper merges nested maps only as map[string]any, so the typed
	// table is widened before merging.
	prices := make(map[string]any, len(doc.PriceTable))
	for algo, price := range doc.PriceTable {
		prices[algo] = price
	}
	return v.MergeConfigMap(map[string]any{"price_table": prices})
}
