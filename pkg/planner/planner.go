package planner

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/archi3d/archi3d/pkg/archtype"
	"github.com/archi3d/archi3d/pkg/atomicio"
	"github.com/archi3d/archi3d/pkg/jobid"
	alog "github.com/archi3d/archi3d/pkg/log"
	"github.com/archi3d/archi3d/pkg/metrics"
	"github.com/archi3d/archi3d/pkg/workspace"
)

// PolicyUseUpTo6 is the only image-selection policy §4.5 currently
// defines: take all (up to 6) image paths already selected on the
// item.
const PolicyUseUpTo6 = "use_up_to_6"

// Filters is the §4.5 filter chain, applied in a fixed order:
// include, then exclude, then with_gt_only, then drop zero-image
// items, then limit.
type Filters struct {
	Include    string
	Exclude    string
	WithGTOnly bool
	Limit      int // 0 means unlimited
}

// Options configures a single batch-create invocation.
type Options struct {
	// RunID is auto-generated if empty.
	RunID string
	Algos []string
	// ImagePolicy is currently always PolicyUseUpTo6 if left empty.
	ImagePolicy string
	Filters     Filters
	DryRun      bool
}

// SkipReasons tallies why a candidate (item, algo) pair didn't enqueue.
// DuplicateJob is the exception: it counts pairs whose job_id already
// existed in the run; those are re-upserted and counted in Enqueued,
// not in Skipped.
type SkipReasons struct {
	NoImages        int
	FilteredInclude int
	FilteredExclude int
	WithGTOnly      int
	DuplicateJob    int
}

// Result summarizes one batch-create invocation for the structured
// log event and for callers that need the resolved run_id.
type Result struct {
	RunID       string
	Candidates  int
	Enqueued    int
	Skipped     int
	SkipReasons SkipReasons
	Inserted    int
	Updated     int
}

var generationsKeyCols = []string{"run_id", "job_id"}

var manifestColumns = []string{
	"job_id", "product_id", "variant", "algo", "used_n_images",
	"used_image_1_path", "used_image_2_path", "used_image_3_path",
	"used_image_4_path", "used_image_5_path", "used_image_6_path",
	"image_set_hash", "gt_object_path", "product_name", "manufacturer",
}

// NewRunID generates an ISO-8601 UTC slug run identifier followed by
// the first 8 characters of a random uuid, e.g.
// "20260730T120501Z-1a2b3c4d". The suffix is always appended, so
// run_id stays unique even when two calls land in the same second.
func NewRunID(now time.Time) string {
	return now.UTC().Format("20060102T150405Z") + "-" + uuid.NewString()[:8]
}

// Plan reads the items SSOT, applies Options.Filters, and (unless
// DryRun) upserts enqueued rows into the generations SSOT plus writes
// the per-run manifest. now is the caller-supplied wall-clock reading
// (core code never calls time.Now() internally for created_at so the
// planner stays testable and deterministic given a fixed clock).
func Plan(root workspace.Root, opts Options, now time.Time) (Result, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.PlanDuration)

	if opts.RunID == "" {
		opts.RunID = NewRunID(now)
	}
	policy := opts.ImagePolicy
	if policy == "" {
		policy = PolicyUseUpTo6
	}

	itemsFrame, err := atomicio.ReadCSV(root.ItemsCSVPath())
	if err != nil {
		return Result{}, fmt.Errorf("read items SSOT: %w", err)
	}

	existingCreatedAt, err := loadExistingCreatedAt(root, opts.RunID)
	if err != nil {
		return Result{}, err
	}

	result := Result{RunID: opts.RunID}
	var rows []map[string]string
	createdAt := now.UTC().Format(time.RFC3339)

	for _, row := range itemsFrame.Rows {
		item := archtype.ItemFromRow(row)
		for _, algo := range opts.Algos {
			result.Candidates++

			if !passesIncludeExclude(item, opts.Filters) {
				result.Skipped++
				if opts.Filters.Include != "" && !matchesSubstring(item, opts.Filters.Include) {
					result.SkipReasons.FilteredInclude++
				} else {
					result.SkipReasons.FilteredExclude++
				}
				continue
			}
			if opts.Filters.WithGTOnly && item.GTObjectPath == "" {
				result.Skipped++
				result.SkipReasons.WithGTOnly++
				continue
			}

			used := usedImages(item, policy)
			if len(used) == 0 {
				result.Skipped++
				result.SkipReasons.NoImages++
				continue
			}

			if opts.Filters.Limit > 0 && result.Enqueued >= opts.Filters.Limit {
				result.Skipped++
				continue
			}

			hash := jobid.ImageSetHash(used)
			jid := jobid.JobID(item.ProductID, item.Variant, algo, hash)

			rowCreatedAt := createdAt
			if prev, ok := existingCreatedAt[jid]; ok {
				result.SkipReasons.DuplicateJob++
				rowCreatedAt = prev
			}

			gen := archtype.CarryOverFromItem(item)
			gen.RunID = opts.RunID
			gen.JobID = jid
			gen.Algo = algo
			gen.ImageSetHash = hash
			gen.UsedNImages = len(used)
			for i, p := range used {
				gen.UsedImages[i] = p
			}
			gen.Status = archtype.StatusEnqueued
			gen.PriceSource = archtype.PriceSourceUnknown

			rows = append(rows, generationToRow(gen, rowCreatedAt))
			result.Enqueued++
		}
	}

	if opts.DryRun {
		logPlanSummary(root, result)
		return result, nil
	}

	inserted, updated, err := atomicio.UpsertCSV(root.GenerationsCSVPath(), generationsKeyCols, atomicio.Frame{
		Columns: archtype.GenerationColumns, Rows: rows,
	})
	if err != nil {
		return Result{}, fmt.Errorf("upsert generations SSOT: %w", err)
	}
	result.Inserted, result.Updated = inserted, updated

	if err := writeManifest(root, opts.RunID); err != nil {
		return Result{}, err
	}

	logPlanSummary(root, result)
	return result, nil
}

func matchesSubstring(item archtype.Item, substr string) bool {
	haystack := strings.ToLower(item.ProductID + item.Variant + item.ProductName)
	return strings.Contains(haystack, strings.ToLower(substr))
}

func passesIncludeExclude(item archtype.Item, f Filters) bool {
	if f.Include != "" && !matchesSubstring(item, f.Include) {
		return false
	}
	if f.Exclude != "" && matchesSubstring(item, f.Exclude) {
		return false
	}
	return true
}

func usedImages(item archtype.Item, policy string) []string {
	if policy != PolicyUseUpTo6 {
		return nil
	}
	return item.UsedImages()
}

// loadExistingCreatedAt reads the current generations SSOT and
// returns each existing job_id's created_at within runID, so
// replanning the same run preserves the original creation timestamp
// (§8 scenario 5's first-write-wins rule) instead of stamping a fresh
// one on every replan.
func loadExistingCreatedAt(root workspace.Root, runID string) (map[string]string, error) {
	frame, err := atomicio.ReadCSV(root.GenerationsCSVPath())
	if err != nil {
		return nil, fmt.Errorf("read existing generations SSOT: %w", err)
	}
	out := make(map[string]string)
	for _, row := range frame.Rows {
		if row["run_id"] == runID {
			out[row["job_id"]] = row["created_at"]
		}
	}
	return out, nil
}

func writeManifest(root workspace.Root, runID string) error {
	frame, err := atomicio.ReadCSV(root.GenerationsCSVPath())
	if err != nil {
		return fmt.Errorf("read generations SSOT for manifest: %w", err)
	}
	filtered := atomicio.FilterRows(frame, func(row map[string]string) bool {
		return row["run_id"] == runID && row["status"] == string(archtype.StatusEnqueued)
	})
	projected := atomicio.ProjectColumns(filtered, manifestColumns)
	if err := atomicio.WriteCSVAtomic(root.ManifestCSVPath(runID), projected); err != nil {
		return fmt.Errorf("write manifest for run %q: %w", runID, err)
	}
	return nil
}

func logPlanSummary(root workspace.Root, result Result) {
	metrics.PlannerCandidatesTotal.WithLabelValues(result.RunID).Add(float64(result.Candidates))
	metrics.PlannerEnqueuedTotal.WithLabelValues(result.RunID).Add(float64(result.Enqueued))
	metrics.PlannerSkippedTotal.WithLabelValues("no_images").Add(float64(result.SkipReasons.NoImages))
	metrics.PlannerSkippedTotal.WithLabelValues("filtered_include").Add(float64(result.SkipReasons.FilteredInclude))
	metrics.PlannerSkippedTotal.WithLabelValues("filtered_exclude").Add(float64(result.SkipReasons.FilteredExclude))
	metrics.PlannerSkippedTotal.WithLabelValues("with_gt_only").Add(float64(result.SkipReasons.WithGTOnly))
	metrics.PlannerSkippedTotal.WithLabelValues("duplicate_job").Add(float64(result.SkipReasons.DuplicateJob))

	fields := map[string]any{
		"event":            "batch_create",
		"run_id":           result.RunID,
		"candidates":       result.Candidates,
		"enqueued":         result.Enqueued,
		"skipped":          result.Skipped,
		"no_images":        result.SkipReasons.NoImages,
		"filtered_include": result.SkipReasons.FilteredInclude,
		"filtered_exclude": result.SkipReasons.FilteredExclude,
		"with_gt_only":     result.SkipReasons.WithGTOnly,
		"duplicate_job":    result.SkipReasons.DuplicateJob,
	}
	_ = atomicio.AppendLogRecord(root.LogPath("batch-create"), fields)

	alog.WithRunID(result.RunID).Info().
		Int("candidates", result.Candidates).
		Int("enqueued", result.Enqueued).
		Int("skipped", result.Skipped).
		Msg("batch create complete")
}

// generationToRow renders a Generation as a CSV row. Execution and
// metric columns are left empty for a freshly enqueued row.
func generationToRow(g archtype.Generation, createdAt string) map[string]string {
	row := archtype.GenerationToRow(g)
	row["created_at"] = createdAt
	return row
}
