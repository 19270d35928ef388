package workspace

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureMutableTreeIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	root, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, root.EnsureMutableTree())
	require.NoError(t, root.EnsureMutableTree())

	assert.DirExists(t, root.TablesDir())
	assert.DirExists(t, root.RunsDir())
	assert.DirExists(t, root.ReportsDir())
	assert.DirExists(t, root.LogsDir())
	assert.NoDirExists(t, root.DatasetDir())
}

func TestRelToWorkspaceIsPOSIX(t *testing.T) {
	dir := t.TempDir()
	root, err := New(dir)
	require.NoError(t, err)

	abs := filepath.Join(root.Abs(), "dataset", "335888", "images", "335888_A.jpg")
	rel, err := root.RelToWorkspace(abs)
	require.NoError(t, err)
	assert.Equal(t, "dataset/335888/images/335888_A.jpg", rel)
	assert.True(t, IsWorkspaceRelativePOSIX(rel))
}

func TestRelToWorkspaceRejectsOutsidePaths(t *testing.T) {
	root, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = root.RelToWorkspace(filepath.Join(t.TempDir(), "elsewhere.txt"))
	assert.Error(t, err)
}

func TestStateMarkerPaths(t *testing.T) {
	root, err := New("/ws")
	require.NoError(t, err)

	assert.Equal(t, "/ws/runs/r1/state/abc123.inprogress", root.InProgressMarkerPath("r1", "abc123"))
	assert.Equal(t, "/ws/runs/r1/state/abc123.completed", root.CompletedMarkerPath("r1", "abc123"))
	assert.Equal(t, "/ws/runs/r1/state/abc123.failed", root.FailedMarkerPath("r1", "abc123"))
	assert.Equal(t, "/ws/runs/r1/state/abc123.lock", root.StateLockPath("r1", "abc123"))
	assert.Equal(t, "/ws/runs/r1/outputs/abc123/generated.glb", root.GeneratedObjectPath("r1", "abc123"))
}

func TestIsWorkspaceRelativePOSIX(t *testing.T) {
	cases := map[string]bool{
		"dataset/a/b.jpg":   true,
		"":                  true,
		"/abs/path":         false,
		`dataset\a\b.jpg`:   false,
		`C:\dataset\a`:      false,
	}
	for p, want := range cases {
		assert.Equalf(t, want, IsWorkspaceRelativePOSIX(p), "path %q", p)
	}
}
