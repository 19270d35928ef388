package workspace

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Root is a resolved workspace root directory. It carries no other
// state; every method is a pure function of the root path.
type Root struct {
	abs string
}

// New resolves dir to an absolute path and returns a Root over it.
func New(dir string) (Root, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Root{}, fmt.Errorf("resolve workspace root %q: %w", dir, err)
	}
	return Root{abs: abs}, nil
}

// Abs returns the workspace root as an absolute path.
func (r Root) Abs() string { return r.abs }

// DatasetDir is the read-only input tree.
func (r Root) DatasetDir() string { return filepath.Join(r.abs, "dataset") }

// TablesDir holds the CSV SSOTs.
func (r Root) TablesDir() string { return filepath.Join(r.abs, "tables") }

// ItemsCSVPath is the items SSOT.
func (r Root) ItemsCSVPath() string { return filepath.Join(r.TablesDir(), "items.csv") }

// ItemsIssuesCSVPath is the issues table.
func (r Root) ItemsIssuesCSVPath() string { return filepath.Join(r.TablesDir(), "items_issues.csv") }

// GenerationsCSVPath is the generations SSOT.
func (r Root) GenerationsCSVPath() string {
	return filepath.Join(r.TablesDir(), "generations.csv")
}

// RunsDir holds per-run output/state/manifest trees.
func (r Root) RunsDir() string { return filepath.Join(r.abs, "runs") }

// RunDir is the root of a single run's artifacts.
func (r Root) RunDir(runID string) string { return filepath.Join(r.RunsDir(), runID) }

// ManifestCSVPath is the per-run manifest.
func (r Root) ManifestCSVPath(runID string) string {
	return filepath.Join(r.RunDir(runID), "manifest.csv")
}

// StateDir holds per-job lifecycle markers for a run.
func (r Root) StateDir(runID string) string { return filepath.Join(r.RunDir(runID), "state") }

// OutputsDir holds per-job output directories for a run.
func (r Root) OutputsDir(runID string) string { return filepath.Join(r.RunDir(runID), "outputs") }

// JobOutputDir is a single job's output directory.
func (r Root) JobOutputDir(runID, jobID string) string {
	return filepath.Join(r.OutputsDir(runID), jobID)
}

// GeneratedObjectPath is the canonical generated-model path within a
// job's output directory.
func (r Root) GeneratedObjectPath(runID, jobID string) string {
	return filepath.Join(r.JobOutputDir(runID, jobID), "generated.glb")
}

// markerPath builds runs/<run>/state/<job>.<ext>.
func (r Root) markerPath(runID, jobID, ext string) string {
	return filepath.Join(r.StateDir(runID), jobID+"."+ext)
}

// InProgressMarkerPath is the zero-byte RUNNING sentinel.
func (r Root) InProgressMarkerPath(runID, jobID string) string {
	return r.markerPath(runID, jobID, "inprogress")
}

// CompletedMarkerPath is the zero-byte COMPLETED sentinel.
func (r Root) CompletedMarkerPath(runID, jobID string) string {
	return r.markerPath(runID, jobID, "completed")
}

// FailedMarkerPath is the zero-byte FAILED sentinel.
func (r Root) FailedMarkerPath(runID, jobID string) string {
	return r.markerPath(runID, jobID, "failed")
}

// ErrorTextPath holds the full failure trace for a failed job.
func (r Root) ErrorTextPath(runID, jobID string) string {
	return r.markerPath(runID, jobID, "error.txt")
}

// StateLockPath is the per-job advisory lock guarding claim/transition.
func (r Root) StateLockPath(runID, jobID string) string {
	return r.markerPath(runID, jobID, "lock")
}

// LogsDir holds append-only structured event logs.
func (r Root) LogsDir() string { return filepath.Join(r.abs, "logs") }

// LogPath builds the path for a named event log, e.g. "catalog-build".
func (r Root) LogPath(name string) string {
	return filepath.Join(r.LogsDir(), name+".log")
}

// ReportsDir holds generated HTML/report artifacts.
func (r Root) ReportsDir() string { return filepath.Join(r.abs, "reports") }

// EnsureMutableTree idempotently creates the directories this process
// may write to. dataset/ is never created — it is read-only input.
func (r Root) EnsureMutableTree() error {
	for _, dir := range []string{r.TablesDir(), r.RunsDir(), r.ReportsDir(), r.LogsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure workspace dir %q: %w", dir, err)
		}
	}
	return nil
}

// RelToWorkspace returns abs as a workspace-relative, POSIX-formatted
// path (forward slashes, no drive letter, no leading slash). abs must
// lie within the workspace root.
func (r Root) RelToWorkspace(abs string) (string, error) {
	absResolved, err := filepath.Abs(abs)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", abs, err)
	}
	rel, err := filepath.Rel(r.abs, absResolved)
	if err != nil {
		return "", fmt.Errorf("path %q is not under workspace %q: %w", abs, r.abs, err)
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path %q is outside workspace %q", abs, r.abs)
	}
	return ToPOSIX(rel), nil
}

// ToPOSIX normalizes an OS path to forward-slash form, stripping any
// leading slash and rejecting nothing else — callers are responsible
// for ensuring the path is already workspace-relative.
func ToPOSIX(p string) string {
	p = filepath.ToSlash(p)
	return strings.TrimPrefix(p, "/")
}

// FromPOSIX converts a workspace-relative POSIX path back into an
// absolute, OS-native path rooted at the workspace.
func (r Root) FromPOSIX(rel string) string {
	parts := strings.Split(rel, "/")
	return filepath.Join(append([]string{r.abs}, parts...)...)
}

// IsWorkspaceRelativePOSIX reports whether p satisfies invariant 4 of
// spec.md §3: workspace-relative, forward slashes, no drive letter, no
// leading slash.
func IsWorkspaceRelativePOSIX(p string) bool {
	if p == "" {
		return true
	}
	if strings.Contains(p, "\\") {
		return false
	}
	if strings.HasPrefix(p, "/") {
		return false
	}
	if path.IsAbs(p) {
		return false
	}
	if len(p) >= 2 && p[1] == ':' {
		return false // drive letter
	}
	return true
}
