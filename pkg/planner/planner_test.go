package planner

import (
	"testing"
	"time"

	"github.com/archi3d/archi3d/pkg/archtype"
	"github.com/archi3d/archi3d/pkg/atomicio"
	"github.com/archi3d/archi3d/pkg/jobid"
	"github.com/archi3d/archi3d/pkg/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedItem(t *testing.T, root workspace.Root, productID, variant, productName, gtPath string, images ...string) {
	t.Helper()
	item := archtype.Item{
		ProductID:   productID,
		Variant:     variant,
		ProductName: productName,
		NImages:     len(images),
	}
	for i, p := range images {
		item.ImagePaths[i] = p
	}
	item.GTObjectPath = gtPath

	_, _, err := atomicio.UpsertCSV(root.ItemsCSVPath(), []string{"product_id", "variant"}, atomicio.Frame{
		Columns: archtype.ItemColumns,
		Rows:    []map[string]string{archtype.ItemToRow(item, "2026-01-01T00:00:00Z")},
	})
	require.NoError(t, err)
}

func TestPlanHappyPathSingleJob(t *testing.T) {
	dir := t.TempDir()
	root, err := workspace.New(dir)
	require.NoError(t, err)
	require.NoError(t, root.EnsureMutableTree())

	seedItem(t, root, "335888", "default", "Chair", "", "dataset/335888/images/335888_A.jpg")

	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	result, err := Plan(root, Options{RunID: "run1", Algos: []string{"algo1"}}, now)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Candidates)
	assert.Equal(t, 1, result.Enqueued)
	assert.Equal(t, 1, result.Inserted)

	wantHash := jobid.ImageSetHash([]string{"dataset/335888/images/335888_A.jpg"})
	wantJobID := jobid.JobID("335888", "default", "algo1", wantHash)

	frame, err := atomicio.ReadCSV(root.GenerationsCSVPath())
	require.NoError(t, err)
	require.Len(t, frame.Rows, 1)
	assert.Equal(t, wantJobID, frame.Rows[0]["job_id"])
	assert.Equal(t, string(archtype.StatusEnqueued), frame.Rows[0]["status"])

	manifestFrame, err := atomicio.ReadCSV(root.ManifestCSVPath("run1"))
	require.NoError(t, err)
	require.Len(t, manifestFrame.Rows, 1)
	assert.Equal(t, wantJobID, manifestFrame.Rows[0]["job_id"])
}

func TestPlanDeterministicAcrossReplans(t *testing.T) {
	dir := t.TempDir()
	root, err := workspace.New(dir)
	require.NoError(t, err)
	require.NoError(t, root.EnsureMutableTree())

	seedItem(t, root, "1", "default", "Table", "", "dataset/1/images/1_A.jpg")

	now1 := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	_, err = Plan(root, Options{RunID: "run1", Algos: []string{"algo1"}}, now1)
	require.NoError(t, err)

	frameBefore, err := atomicio.ReadCSV(root.GenerationsCSVPath())
	require.NoError(t, err)

	now2 := time.Date(2026, 7, 30, 13, 0, 0, 0, time.UTC)
	result2, err := Plan(root, Options{RunID: "run1", Algos: []string{"algo1"}}, now2)
	require.NoError(t, err)
	assert.Equal(t, 0, result2.Updated)
	assert.Equal(t, 1, result2.SkipReasons.DuplicateJob)

	frameAfter, err := atomicio.ReadCSV(root.GenerationsCSVPath())
	require.NoError(t, err)
	assert.Equal(t, frameBefore, frameAfter)
}

func TestPlanFiltersWithGTOnly(t *testing.T) {
	dir := t.TempDir()
	root, err := workspace.New(dir)
	require.NoError(t, err)
	require.NoError(t, root.EnsureMutableTree())

	seedItem(t, root, "1", "default", "NoGT", "", "dataset/1/images/1_A.jpg")
	seedItem(t, root, "2", "default", "WithGT", "dataset/2/gt/a.glb", "dataset/2/images/2_A.jpg")

	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	result, err := Plan(root, Options{RunID: "run1", Algos: []string{"algo1"}, Filters: Filters{WithGTOnly: true}}, now)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Candidates)
	assert.Equal(t, 1, result.Enqueued)
	assert.Equal(t, 1, result.SkipReasons.WithGTOnly)
}
