package worker

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/archi3d/archi3d/pkg/adapter"
	"github.com/archi3d/archi3d/pkg/adapter/dryrun"
	"github.com/archi3d/archi3d/pkg/archtype"
	"github.com/archi3d/archi3d/pkg/atomicio"
	alog "github.com/archi3d/archi3d/pkg/log"
	"github.com/archi3d/archi3d/pkg/metrics"
	"github.com/archi3d/archi3d/pkg/workspace"
)

// backoffSchedule is the retry wait sequence for transient adapter
// failures (§4.6, §7): 10s, 30s, 60s, then the job fails permanently.
var backoffSchedule = []time.Duration{10 * time.Second, 30 * time.Second, 60 * time.Second}

// Identity is captured once per worker process and stamped on every
// row this process writes (§4.6 "worker identity").
type Identity struct {
	Host   string
	User   string
	GPU    string
	EnvTag string
	Commit string
}

// NewIdentity resolves the current process's identity fields. GPU and
// Commit are best-effort: an empty string means "not discoverable",
// never an error.
func NewIdentity(gpu, envTag, commit string) Identity {
	host, _ := os.Hostname()
	userName := ""
	if u, err := user.Current(); err == nil {
		userName = u.Username
	}
	return Identity{Host: host, User: userName, GPU: gpu, EnvTag: envTag, Commit: commit}
}

// Config configures one Engine run over a single run_id.
type Config struct {
	RunID string

	// JobFilter selects a subset of the run's rows by job_id:
	// substring match by default, "*"-glob when it contains '*', or a
	// regular expression when prefixed "re:".
	JobFilter string
	// OnlyStatus restricts processing to rows in these statuses.
	// Defaults to {enqueued} when empty.
	OnlyStatus []archtype.Status

	Registry      *adapter.Registry
	AdapterOverride string // algorithm key forcing a single adapter for every job

	MaxParallel int
	FailFast    bool
	DryRun      bool

	Identity Identity

	// PriceTable resolves a per-algorithm unit price when the adapter
	// result doesn't supply one.
	PriceTable map[string]float64

	// MaxRetries bounds backoffSchedule consumption; 0 means use the
	// full schedule.
	MaxRetries int
}

// Result summarizes one Engine run for the caller and the structured
// log event.
type Result struct {
	Claimed   int
	Completed int
	Failed    int
	Skipped   int
	Inserted  int
	Updated   int
}

// Engine drives a single worker process's pass over a run's jobs.
type Engine struct {
	root workspace.Root
	cfg  Config

	mu   sync.Mutex
	rows []map[string]string

	stopped atomicBool
}

// New returns an Engine bound to root and cfg. cfg.MaxParallel <= 0
// is treated as 1.
func New(root workspace.Root, cfg Config) *Engine {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 1
	}
	if len(cfg.OnlyStatus) == 0 {
		cfg.OnlyStatus = []archtype.Status{archtype.StatusEnqueued}
	}
	return &Engine{root: root, cfg: cfg}
}

// Run selects matching rows from the generations SSOT and processes
// them with bounded parallelism, then performs the single terminal
// batch upsert.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	frame, err := atomicio.ReadCSV(e.root.GenerationsCSVPath())
	if err != nil {
		return Result{}, fmt.Errorf("read generations SSOT: %w", err)
	}

	statusSet := make(map[archtype.Status]bool, len(e.cfg.OnlyStatus))
	for _, s := range e.cfg.OnlyStatus {
		statusSet[s] = true
	}
	matchJobID, err := jobFilterMatcher(e.cfg.JobFilter)
	if err != nil {
		return Result{}, err
	}

	var jobs []archtype.Generation
	for _, row := range frame.Rows {
		if row["run_id"] != e.cfg.RunID {
			continue
		}
		g := archtype.GenerationFromRow(row)
		if !statusSet[g.Status] {
			continue
		}
		if !matchJobID(g.JobID) {
			continue
		}
		jobs = append(jobs, g)
	}

	result := Result{}
	sem := make(chan struct{}, e.cfg.MaxParallel)
	var wg sync.WaitGroup
	var resultMu sync.Mutex

	for _, job := range jobs {
		if e.stopped.Load() {
			resultMu.Lock()
			result.Skipped++
			resultMu.Unlock()
			continue
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(job archtype.Generation) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome, err := e.processJob(ctx, job)
			resultMu.Lock()
			defer resultMu.Unlock()
			if err != nil {
				alog.WithJobID(job.JobID).Error().Err(err).Msg("job processing error")
				return
			}
			switch outcome {
			case outcomeSkipped:
				result.Skipped++
			case outcomeCompleted:
				result.Claimed++
				result.Completed++
			case outcomeFailed:
				result.Claimed++
				result.Failed++
				if e.cfg.FailFast {
					e.stopped.Store(true)
				}
			}
		}(job)
	}
	wg.Wait()

	inserted, updated, err := e.flush()
	if err != nil {
		return Result{}, err
	}
	result.Inserted, result.Updated = inserted, updated

	e.logSummary(result)
	return result, nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeCompleted
	outcomeFailed
)

// processJob claims, executes, and finalizes a single job. The row
// produced is appended to the in-memory accumulator under e.mu; it is
// never written to the generations SSOT directly — only Run's
// terminal flush() does that.
func (e *Engine) processJob(ctx context.Context, job archtype.Generation) (outcome, error) {
	lockPath := e.root.StateLockPath(e.cfg.RunID, job.JobID)

	var claimed bool
	var skip bool
	err := atomicio.WithLockFile(lockPath, func() error {
		if markerExists(e.root.CompletedMarkerPath(e.cfg.RunID, job.JobID)) ||
			markerExists(e.root.FailedMarkerPath(e.cfg.RunID, job.JobID)) {
			skip = true
			return nil
		}
		if err := touchMarker(e.root.InProgressMarkerPath(e.cfg.RunID, job.JobID)); err != nil {
			return err
		}
		claimed = true
		return nil
	})
	if err != nil {
		return outcomeSkipped, err
	}
	if skip || !claimed {
		return outcomeSkipped, nil
	}

	start := time.Now()
	result, runErr := e.invokeWithRetry(ctx, job)
	end := time.Now()

	job.GenerationStart = start
	job.GenerationEnd = end
	job.GenerationDurationS = end.Sub(start).Seconds()
	job.WorkerHost = e.cfg.Identity.Host
	job.WorkerUser = e.cfg.Identity.User
	job.WorkerGPU = e.cfg.Identity.GPU
	job.WorkerEnvTag = e.cfg.Identity.EnvTag
	job.WorkerCommit = e.cfg.Identity.Commit

	if runErr != nil {
		job.Status = archtype.StatusFailed
		job.ErrorMsg = archtype.TruncateError(runErr.Error())

		if err := os.Remove(e.root.InProgressMarkerPath(e.cfg.RunID, job.JobID)); err != nil && !os.IsNotExist(err) {
			return outcomeFailed, err
		}
		if err := touchMarker(e.root.FailedMarkerPath(e.cfg.RunID, job.JobID)); err != nil {
			return outcomeFailed, err
		}
		if err := os.WriteFile(e.root.ErrorTextPath(e.cfg.RunID, job.JobID), []byte(runErr.Error()), 0o644); err != nil {
			return outcomeFailed, err
		}

		metrics.JobsTotal.WithLabelValues(job.Algo, "failed").Inc()
		metrics.JobDuration.WithLabelValues(job.Algo).Observe(job.GenerationDurationS)
		e.appendRow(job)
		return outcomeFailed, nil
	}

	job.Status = archtype.StatusComplete
	job.AlgoVersion = result.AlgoVersion
	if gtRel, err := e.root.RelToWorkspace(result.GeneratedGLB); err == nil {
		job.GenObjectPath = gtRel
	}
	for _, p := range result.Previews {
		if rel, err := e.root.RelToWorkspace(p); err == nil {
			job.PreviewPaths = append(job.PreviewPaths, rel)
		}
	}
	e.fillPricing(&job, result)

	if err := os.Remove(e.root.InProgressMarkerPath(e.cfg.RunID, job.JobID)); err != nil && !os.IsNotExist(err) {
		return outcomeCompleted, err
	}
	if err := touchMarker(e.root.CompletedMarkerPath(e.cfg.RunID, job.JobID)); err != nil {
		return outcomeCompleted, err
	}

	metrics.JobsTotal.WithLabelValues(job.Algo, "completed").Inc()
	metrics.JobDuration.WithLabelValues(job.Algo).Observe(job.GenerationDurationS)
	e.appendRow(job)
	return outcomeCompleted, nil
}

// invokeWithRetry runs the job's adapter, retrying transient failures
// per backoffSchedule (§4.6/§7). Dry-run mode bypasses the registry
// entirely.
func (e *Engine) invokeWithRetry(ctx context.Context, job archtype.Generation) (adapter.Result, error) {
	var a adapter.Adapter
	if e.cfg.DryRun {
		a = dryrun.New()
	} else {
		algo := job.Algo
		if e.cfg.AdapterOverride != "" {
			algo = e.cfg.AdapterOverride
		}
		found, ok := e.cfg.Registry.Get(algo)
		if !ok {
			return adapter.Result{}, fmt.Errorf("no adapter registered for algo %q", algo)
		}
		a = found
	}

	req := adapter.Request{
		JobID:      job.JobID,
		ProductID:  job.ProductID,
		Variant:    job.Variant,
		Algo:       job.Algo,
		UsedImages: nonEmpty(job.UsedImages[:]),
		OutDir:     e.root.JobOutputDir(e.cfg.RunID, job.JobID),
		Workspace:  e.root.Abs(),
	}

	maxRetries := len(backoffSchedule)
	if e.cfg.MaxRetries > 0 && e.cfg.MaxRetries < maxRetries {
		maxRetries = e.cfg.MaxRetries
	}

	for attempt := 0; ; attempt++ {
		result, err := a.Execute(ctx, req)
		if err == nil {
			return result, nil
		}
		if !adapter.IsTransient(err) || attempt >= maxRetries {
			return adapter.Result{}, err
		}
		metrics.JobRetriesTotal.WithLabelValues(job.Algo).Inc()
		select {
		case <-ctx.Done():
			return adapter.Result{}, ctx.Err()
		case <-time.After(backoffSchedule[attempt]):
		}
	}
}

func (e *Engine) fillPricing(job *archtype.Generation, result adapter.Result) {
	if result.UnitPriceUSD != nil {
		job.UnitPriceUSD = result.UnitPriceUSD
		job.Currency = result.Currency
		job.EstimatedCostUSD = result.UnitPriceUSD
		job.PriceSource = archtype.PriceSourceAdapter
		return
	}
	if price, ok := e.cfg.PriceTable[job.Algo]; ok {
		job.UnitPriceUSD = &price
		job.EstimatedCostUSD = &price
		job.PriceSource = archtype.PriceSourceConfig
		return
	}
	job.PriceSource = archtype.PriceSourceUnknown
}

func (e *Engine) appendRow(job archtype.Generation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rows = append(e.rows, archtype.GenerationToRow(job))
}

// flush performs the single terminal batch upsert (§4.6 "batch upsert").
func (e *Engine) flush() (inserted, updated int, err error) {
	e.mu.Lock()
	rows := e.rows
	e.mu.Unlock()
	if len(rows) == 0 {
		return 0, 0, nil
	}
	return atomicio.UpsertCSV(e.root.GenerationsCSVPath(), []string{"run_id", "job_id"}, atomicio.Frame{
		Columns: archtype.GenerationColumns, Rows: rows,
	})
}

func (e *Engine) logSummary(result Result) {
	fields := map[string]any{
		"event":     "worker_run",
		"run_id":    e.cfg.RunID,
		"claimed":   result.Claimed,
		"completed": result.Completed,
		"failed":    result.Failed,
		"skipped":   result.Skipped,
	}
	_ = atomicio.AppendLogRecord(e.root.LogPath("worker"), fields)

	alog.WithRunID(e.cfg.RunID).Info().
		Int("completed", result.Completed).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Msg("worker run complete")
}

func markerExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func touchMarker(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

func nonEmpty(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

var globEscaper = strings.NewReplacer(".", `\.`, "+", `\+`, "(", `\(`, ")", `\)`)

// jobFilterMatcher compiles filter into a job-id predicate: substring
// by default, glob when it contains '*', regex when prefixed "re:".
func jobFilterMatcher(filter string) (func(jobID string) bool, error) {
	if filter == "" {
		return func(string) bool { return true }, nil
	}
	if strings.HasPrefix(filter, "re:") {
		re, err := regexp.Compile(strings.TrimPrefix(filter, "re:"))
		if err != nil {
			return nil, fmt.Errorf("compile job filter regex %q: %w", filter, err)
		}
		return re.MatchString, nil
	}
	if strings.Contains(filter, "*") {
		pattern := "^" + globEscaper.Replace(filter)
		pattern = strings.ReplaceAll(pattern, "*", ".*") + "$"
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile job filter glob %q: %w", filter, err)
		}
		return re.MatchString, nil
	}
	return func(jobID string) bool { return strings.Contains(jobID, filter) }, nil
}

// atomicBool is a tiny CAS-free bool guarded by a mutex; the worker
// pool only ever reads/writes it between job dispatches, so a mutex
// costs nothing a more elaborate atomic type would save.
type atomicBool struct {
	mu sync.Mutex
	v  bool
}

func (b *atomicBool) Load() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.v
}

func (b *atomicBool) Store(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.v = v
}
