package consolidator

import (
	"os"
	"sort"
	"time"

	"github.com/archi3d/archi3d/pkg/archtype"
	"github.com/archi3d/archi3d/pkg/atomicio"
	alog "github.com/archi3d/archi3d/pkg/log"
	"github.com/archi3d/archi3d/pkg/metrics"
	"github.com/archi3d/archi3d/pkg/workspace"
)

// staleHeartbeat is how long an .inprogress marker may go unrefreshed
// before it is no longer considered a fresh heartbeat (§4.7 rule 3).
// A stale heartbeat keeps status "running" (it is not auto-failed);
// the consolidator neither changes such a row nor counts it in Result
// or in the summary log event.
const staleHeartbeat = 10 * time.Minute

// Options configures one consolidation pass over a single run_id.
type Options struct {
	RunID     string
	FixStatus bool // enables rule 4: downgrade completed-but-missing-output to failed
	Strict    bool // promote any detected conflict to a fatal error
	DryRun    bool
}

// Result summarizes one consolidation pass for the caller and the
// structured log event (§4.7 "Logging").
type Result struct {
	Considered              int
	Inserted                int
	Updated                 int
	Unchanged               int
	ConflictsResolved       int
	MarkerMismatchesFixed   int
	DowngradedMissingOutput int
	StatusHistogramBefore   map[string]int
	StatusHistogramAfter    map[string]int
	DryRun                  bool
}

// ConflictError is returned in strict mode when a conflict is detected
// between CSV state and on-disk evidence.
type ConflictError struct {
	JobID  string
	Detail string
}

func (e *ConflictError) Error() string {
	return "consolidator: conflict on job " + e.JobID + ": " + e.Detail
}

// Consolidate reconciles opts.RunID's rows in the generations SSOT
// against on-disk evidence and replaces the run's row-set atomically.
func Consolidate(root workspace.Root, opts Options, now time.Time) (Result, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ConsolidationDuration)

	frame, err := atomicio.ReadCSV(root.GenerationsCSVPath())
	if err != nil {
		return Result{}, err
	}

	byJob := make(map[string][]map[string]string)
	var order []string
	for _, row := range frame.Rows {
		if row["run_id"] != opts.RunID {
			continue
		}
		jid := row["job_id"]
		if _, seen := byJob[jid]; !seen {
			order = append(order, jid)
		}
		byJob[jid] = append(byJob[jid], row)
	}
	sort.Strings(order)

	result := Result{
		StatusHistogramBefore: map[string]int{},
		StatusHistogramAfter:  map[string]int{},
		DryRun:                opts.DryRun,
	}

	var reconciled []map[string]string
	for _, jid := range order {
		rows := byJob[jid]
		result.Considered++

		winner := mergeDuplicates(rows)
		if len(rows) > 1 {
			result.ConflictsResolved++
		}
		before := winner.Status
		result.StatusHistogramBefore[string(before)]++

		if opts.Strict && len(rows) > 1 {
			return Result{}, &ConflictError{JobID: jid, Detail: "duplicate rows for (run_id, job_id)"}
		}

		mismatch := applyEvidence(root, opts, &winner, now)
		if mismatch == mismatchDowngrade {
			result.DowngradedMissingOutput++
			result.MarkerMismatchesFixed++
		} else if mismatch == mismatchFixed {
			result.MarkerMismatchesFixed++
		}
		if opts.Strict && mismatch != mismatchNone {
			return Result{}, &ConflictError{JobID: jid, Detail: "status disagrees with on-disk evidence"}
		}

		fillMetadata(root, opts.RunID, &winner)

		result.StatusHistogramAfter[string(winner.Status)]++
		if winner.Status == before && mismatch == mismatchNone && len(rows) == 1 {
			result.Unchanged++
		}

		reconciled = append(reconciled, archtype.GenerationToRow(winner))
	}

	// The consolidator only ever reconciles rows already present for
	// this run_id; it never mints new job rows, so every considered row
	// is either unchanged or updated.
	result.Updated = result.Considered - result.Unchanged

	if !opts.DryRun {
		if _, _, err := atomicio.ReplaceRunUpsert(root.GenerationsCSVPath(), "run_id", opts.RunID, atomicio.Frame{
			Columns: archtype.GenerationColumns,
			Rows:    reconciled,
		}); err != nil {
			return Result{}, err
		}
	}

	logSummary(root, opts, result)
	return result, nil
}

// mergeDuplicates picks the highest-precedence row and fills any
// column it left empty from the losers, in their given order (§4.7
// "Duplicate merging").
func mergeDuplicates(rows []map[string]string) archtype.Generation {
	best := rows[0]
	for _, row := range rows[1:] {
		if archtype.Status(row["status"]).Precedence() > archtype.Status(best["status"]).Precedence() {
			best = row
		}
	}

	merged := make(map[string]string, len(best))
	for k, v := range best {
		merged[k] = v
	}
	for _, row := range rows {
		for k, v := range row {
			if merged[k] == "" && v != "" {
				merged[k] = v
			}
		}
	}
	return archtype.GenerationFromRow(merged)
}

type mismatchKind int

const (
	mismatchNone mismatchKind = iota
	mismatchFixed
	mismatchDowngrade
)

// applyEvidence gathers on-disk evidence for one job and applies the
// §4.7 truth table, mutating g.Status (and g.ErrorMsg on rule 4) in
// place. Returns whether the resulting status differs from what the
// CSV said coming in.
func applyEvidence(root workspace.Root, opts Options, g *archtype.Generation, now time.Time) mismatchKind {
	existing := g.Status

	completedPath := root.CompletedMarkerPath(opts.RunID, g.JobID)
	failedPath := root.FailedMarkerPath(opts.RunID, g.JobID)
	inProgressPath := root.InProgressMarkerPath(opts.RunID, g.JobID)
	objectPath := root.GeneratedObjectPath(opts.RunID, g.JobID)

	completedInfo, completedOK := statInfo(completedPath)
	failedInfo, failedOK := statInfo(failedPath)
	inProgressInfo, inProgressOK := statInfo(inProgressPath)
	_, objectExists := statInfo(objectPath)

	if g.ErrorMsg == "" {
		if data, err := os.ReadFile(root.ErrorTextPath(opts.RunID, g.JobID)); err == nil {
			g.ErrorMsg = archtype.TruncateError(string(data))
		}
	}

	switch {
	case completedOK && objectExists:
		g.Status = archtype.StatusComplete
		if g.GenerationEnd.IsZero() {
			g.GenerationEnd = completedInfo.ModTime()
		}
	case failedOK:
		g.Status = archtype.StatusFailed
		if g.GenerationEnd.IsZero() {
			g.GenerationEnd = failedInfo.ModTime()
		}
	case inProgressOK && now.Sub(inProgressInfo.ModTime()) < staleHeartbeat:
		g.Status = archtype.StatusRunning
		if g.GenerationStart.IsZero() {
			g.GenerationStart = inProgressInfo.ModTime()
		}
	case existing == archtype.StatusComplete && !objectExists:
		if opts.FixStatus {
			g.Status = archtype.StatusFailed
			g.ErrorMsg = "output missing"
			return mismatchDowngrade
		}
		// Otherwise rule 5 keeps the existing status; no evidence changes it.
	default:
		if g.Status == "" {
			g.Status = archtype.StatusEnqueued
		}
	}

	if g.Status != existing {
		return mismatchFixed
	}
	return mismatchNone
}

func statInfo(path string) (os.FileInfo, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	return info, true
}

// fillMetadata fills an empty gen_object_path with the
// workspace-relative POSIX form of the job's generated object when
// that file exists, and recomputes generation_duration_s from
// start/end when both are present (§4.7 "Metadata filling"). Preview
// paths are left as they are.
func fillMetadata(root workspace.Root, runID string, g *archtype.Generation) {
	if g.GenObjectPath == "" {
		if rel, err := root.RelToWorkspace(root.GeneratedObjectPath(runID, g.JobID)); err == nil {
			if _, err := os.Stat(root.GeneratedObjectPath(runID, g.JobID)); err == nil {
				g.GenObjectPath = rel
			}
		}
	}
	if !g.GenerationStart.IsZero() && !g.GenerationEnd.IsZero() {
		g.GenerationDurationS = g.GenerationEnd.Sub(g.GenerationStart).Seconds()
	}
}

func logSummary(root workspace.Root, opts Options, result Result) {
	metrics.ConsolidationConsideredTotal.WithLabelValues(opts.RunID).Add(float64(result.Considered))
	metrics.ConsolidationUpdatedTotal.WithLabelValues(opts.RunID).Add(float64(result.Updated))
	metrics.ConsolidationConflictsTotal.WithLabelValues(opts.RunID).Add(float64(result.ConflictsResolved))
	for status, n := range result.StatusHistogramAfter {
		metrics.GenerationsByStatus.WithLabelValues(opts.RunID, status).Set(float64(n))
	}

	fields := map[string]any{
		"event":                     "consolidation_run",
		"run_id":                    opts.RunID,
		"considered":                result.Considered,
		"upsert_inserted":           result.Inserted,
		"upsert_updated":            result.Updated,
		"unchanged":                 result.Unchanged,
		"conflicts_resolved":        result.ConflictsResolved,
		"marker_mismatches_fixed":   result.MarkerMismatchesFixed,
		"downgraded_missing_output": result.DowngradedMissingOutput,
		"status_histogram_before":  result.StatusHistogramBefore,
		"status_histogram_after":   result.StatusHistogramAfter,
		"dry_run":                   result.DryRun,
	}
	_ = atomicio.AppendLogRecord(root.LogPath("consolidator"), fields)

	alog.WithRunID(opts.RunID).Info().
		Int("considered", result.Considered).
		Int("upsert_updated", result.Updated).
		Int("conflicts_resolved", result.ConflictsResolved).
		Bool("dry_run", result.DryRun).
		Msg("consolidation complete")
}
