// Package integration exercises the catalog → planner → worker →
// consolidator pipeline end to end against a temp workspace directory,
// the way an operator's shell script would run them back to back.
// There is no cluster to bring up and no client/server split, so every
// scenario drives the packages directly in-process.
package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/archi3d/archi3d/pkg/archtype"
	"github.com/archi3d/archi3d/pkg/atomicio"
	"github.com/archi3d/archi3d/pkg/catalog"
	"github.com/archi3d/archi3d/pkg/consolidator"
	"github.com/archi3d/archi3d/pkg/planner"
	"github.com/archi3d/archi3d/pkg/worker"
	"github.com/archi3d/archi3d/pkg/workspace"
)

// newWorkspace builds a Root over a fresh temp directory with the
// mutable tree already created.
func newWorkspace(t *testing.T) workspace.Root {
	t.Helper()
	root, err := workspace.New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, root.EnsureMutableTree())
	return root
}

// seedItem writes one dataset/<productID>[ - <variant>]/images/*.jpg
// sub-directory so catalog.Build has something to scan.
func seedItem(t *testing.T, root workspace.Root, folderName string, imageNames ...string) {
	t.Helper()
	dir := filepath.Join(root.DatasetDir(), folderName, "images")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, name := range imageNames {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("fake-jpeg"), 0o644))
	}
}

func runAll(t *testing.T, root workspace.Root) catalog.Result {
	t.Helper()
	catResult, err := catalog.Build(root, catalog.Options{})
	require.NoError(t, err)
	return catResult
}

// Scenario 1: happy path, single job.
func TestHappyPathSingleJob(t *testing.T) {
	root := newWorkspace(t)
	seedItem(t, root, "335888", "335888_A.jpg")
	runAll(t, root)

	planResult, err := planner.Plan(root, planner.Options{
		RunID: "run1",
		Algos: []string{"algo1"},
	}, time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, planResult.Enqueued)

	genFrame, err := atomicio.ReadCSV(root.GenerationsCSVPath())
	require.NoError(t, err)
	require.Len(t, genFrame.Rows, 1)
	jobID := genFrame.Rows[0]["job_id"]
	require.Len(t, jobID, 12)

	eng := worker.New(root, worker.Config{RunID: "run1", DryRun: true})
	workResult, err := eng.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, workResult.Completed)
	require.Equal(t, 0, workResult.Failed)

	require.FileExists(t, root.GeneratedObjectPath("run1", jobID))

	genFrame, err = atomicio.ReadCSV(root.GenerationsCSVPath())
	require.NoError(t, err)
	require.Equal(t, string(archtype.StatusComplete), genFrame.Rows[0]["status"])

	result, err := consolidator.Consolidate(root, consolidator.Options{RunID: "run1"}, time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, result.Unchanged)
	require.Equal(t, 0, result.Updated)
	require.Equal(t, 0, result.ConflictsResolved)
}

// Scenario 2: crash recovery. A stale .inprogress marker with a CSV
// row still "running" is left alone by the consolidator — stale
// heartbeats stay "running", they are not auto-failed (spec.md §4.7
// rule 3).
func TestCrashRecoveryStaleHeartbeatNotCleared(t *testing.T) {
	root := newWorkspace(t)
	runID := "run-crash"
	jobID := "abc123def456"

	writeGenerationRow(t, root, runID, jobID, archtype.StatusRunning, "")

	markerPath := root.InProgressMarkerPath(runID, jobID)
	require.NoError(t, os.MkdirAll(filepath.Dir(markerPath), 0o755))
	require.NoError(t, os.WriteFile(markerPath, nil, 0o644))
	stale := time.Now().Add(-20 * time.Minute)
	require.NoError(t, os.Chtimes(markerPath, stale, stale))

	result, err := consolidator.Consolidate(root, consolidator.Options{RunID: runID}, time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, result.StatusHistogramAfter[string(archtype.StatusRunning)])
	require.Equal(t, 0, result.DowngradedMissingOutput)

	genFrame, err := atomicio.ReadCSV(root.GenerationsCSVPath())
	require.NoError(t, err)
	require.Equal(t, string(archtype.StatusRunning), genFrame.Rows[0]["status"])
	require.FileExists(t, markerPath)
}

// Scenario 3: missing-output downgrade. CSV says completed but the
// generated model is absent; fix_status downgrades it to failed, and
// the downgrade is idempotent on replay.
func TestMissingOutputDowngrade(t *testing.T) {
	root := newWorkspace(t)
	runID := "run-missing"
	jobID := "abc123def456"

	writeGenerationRow(t, root, runID, jobID, archtype.StatusComplete, "")
	completedPath := root.CompletedMarkerPath(runID, jobID)
	require.NoError(t, os.MkdirAll(filepath.Dir(completedPath), 0o755))
	require.NoError(t, os.WriteFile(completedPath, nil, 0o644))
	// generated.glb deliberately not written.

	result, err := consolidator.Consolidate(root, consolidator.Options{RunID: runID, FixStatus: true}, time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, result.DowngradedMissingOutput)

	genFrame, err := atomicio.ReadCSV(root.GenerationsCSVPath())
	require.NoError(t, err)
	require.Equal(t, string(archtype.StatusFailed), genFrame.Rows[0]["status"])
	require.Equal(t, "output missing", genFrame.Rows[0]["error_msg"])

	replay, err := consolidator.Consolidate(root, consolidator.Options{RunID: runID, FixStatus: true}, time.Now())
	require.NoError(t, err)
	require.Equal(t, 0, replay.DowngradedMissingOutput)
	require.Equal(t, 1, replay.Unchanged)
}

// Scenario 4: duplicate rows for the same (run_id, job_id) merge into
// a single row, preferring the higher-precedence status and filling
// any column the winner left empty from the loser.
func TestDuplicateRowsMerge(t *testing.T) {
	root := newWorkspace(t)
	runID := "run-dup"
	jobID := "abc123def456"

	running := baseRow(runID, jobID, archtype.StatusRunning)
	running["worker_host"] = "host-a"

	completed := baseRow(runID, jobID, archtype.StatusComplete)
	completed["gen_object_path"] = "runs/" + runID + "/outputs/" + jobID + "/generated.glb"

	require.NoError(t, atomicio.WriteCSVAtomic(root.GenerationsCSVPath(), atomicio.Frame{
		Columns: archtype.GenerationColumns,
		Rows:    []map[string]string{running, completed},
	}))

	glbPath := root.GeneratedObjectPath(runID, jobID)
	require.NoError(t, os.MkdirAll(filepath.Dir(glbPath), 0o755))
	require.NoError(t, os.WriteFile(glbPath, []byte("glb"), 0o644))
	completedMarker := root.CompletedMarkerPath(runID, jobID)
	require.NoError(t, os.MkdirAll(filepath.Dir(completedMarker), 0o755))
	require.NoError(t, os.WriteFile(completedMarker, nil, 0o644))

	result, err := consolidator.Consolidate(root, consolidator.Options{RunID: runID}, time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, result.ConflictsResolved)
	require.Equal(t, 1, result.Considered)

	genFrame, err := atomicio.ReadCSV(root.GenerationsCSVPath())
	require.NoError(t, err)
	require.Len(t, genFrame.Rows, 1)
	require.Equal(t, string(archtype.StatusComplete), genFrame.Rows[0]["status"])
}

// Scenario 5: determinism across restarts. Running the planner twice
// over the same items produces no diff beyond the first-write-wins
// created_at preservation rule.
func TestDeterminismAcrossRestarts(t *testing.T) {
	root := newWorkspace(t)
	seedItem(t, root, "100", "100_A.jpg")
	seedItem(t, root, "200", "200_A.jpg", "200_B.jpg")
	runAll(t, root)

	first, err := planner.Plan(root, planner.Options{RunID: "run-det", Algos: []string{"algo1", "algo2"}}, time.Now())
	require.NoError(t, err)

	firstFrame, err := atomicio.ReadCSV(root.GenerationsCSVPath())
	require.NoError(t, err)
	firstByJob := make(map[string]map[string]string, len(firstFrame.Rows))
	for _, row := range firstFrame.Rows {
		firstByJob[row["job_id"]] = row
	}

	second, err := planner.Plan(root, planner.Options{RunID: "run-det", Algos: []string{"algo1", "algo2"}}, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, first.Enqueued, second.Enqueued)
	require.Equal(t, 0, second.Inserted)

	secondFrame, err := atomicio.ReadCSV(root.GenerationsCSVPath())
	require.NoError(t, err)
	require.Len(t, secondFrame.Rows, len(firstFrame.Rows))

	for _, row := range secondFrame.Rows {
		prev, ok := firstByJob[row["job_id"]]
		require.True(t, ok, "job %s present on replan but missing from first plan", row["job_id"])
		for _, col := range archtype.GenerationColumns {
			require.Equalf(t, prev[col], row[col], "column %q diverged across replans for job %s", col, row["job_id"])
		}
	}
}

// Scenario 6: concurrent workers. Two Engines race over the same run;
// every job reaches a terminal state exactly once, nothing is left
// running, and the SSOT ends up with exactly one row per job.
func TestConcurrentWorkers(t *testing.T) {
	root := newWorkspace(t)
	for i := 0; i < 8; i++ {
		seedItem(t, root, itoaFolder(i), itoaFolder(i)+"_A.jpg")
	}
	runAll(t, root)

	_, err := planner.Plan(root, planner.Options{RunID: "run-concurrent", Algos: []string{"algo1"}}, time.Now())
	require.NoError(t, err)

	genFrame, err := atomicio.ReadCSV(root.GenerationsCSVPath())
	require.NoError(t, err)
	require.Len(t, genFrame.Rows, 8)

	done := make(chan worker.Result, 2)
	for i := 0; i < 2; i++ {
		go func() {
			eng := worker.New(root, worker.Config{RunID: "run-concurrent", MaxParallel: 4, DryRun: true})
			r, runErr := eng.Run(context.Background())
			require.NoError(t, runErr)
			done <- r
		}()
	}
	<-done
	<-done

	final, err := atomicio.ReadCSV(root.GenerationsCSVPath())
	require.NoError(t, err)
	require.Len(t, final.Rows, 8)
	for _, row := range final.Rows {
		status := archtype.Status(row["status"])
		require.Contains(t, []archtype.Status{archtype.StatusComplete, archtype.StatusFailed}, status,
			"job %s left in non-terminal status %q", row["job_id"], status)
	}
}

func itoaFolder(i int) string {
	return []string{"10", "11", "12", "13", "14", "15", "16", "17"}[i]
}

func baseRow(runID, jobID string, status archtype.Status) map[string]string {
	g := archtype.Generation{
		RunID:     runID,
		JobID:     jobID,
		ProductID: "335888",
		Variant:   "default",
		Algo:      "algo1",
		Status:    status,
		CreatedAt: time.Now(),
	}
	return archtype.GenerationToRow(g)
}

func writeGenerationRow(t *testing.T, root workspace.Root, runID, jobID string, status archtype.Status, errMsg string) {
	t.Helper()
	row := baseRow(runID, jobID, status)
	row["error_msg"] = errMsg
	require.NoError(t, atomicio.WriteCSVAtomic(root.GenerationsCSVPath(), atomicio.Frame{
		Columns: archtype.GenerationColumns,
		Rows:    []map[string]string{row},
	}))
}
