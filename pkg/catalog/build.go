package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/archi3d/archi3d/pkg/archtype"
	"github.com/archi3d/archi3d/pkg/atomicio"
	alog "github.com/archi3d/archi3d/pkg/log"
	"github.com/archi3d/archi3d/pkg/metrics"
	"github.com/archi3d/archi3d/pkg/workspace"
)

var issuesColumns = []string{"product_id", "variant", "issue", "detail"}

var itemsKeyCols = []string{"product_id", "variant"}

// Options configures a catalog build.
type Options struct {
	// EnrichmentPath is an optional path to a JSON enrichment document.
	EnrichmentPath string
}

// Result summarizes one catalog build for the structured log event.
type Result struct {
	ItemsScanned int
	IssueCounts  map[archtype.IssueTag]int
	Inserted     int
	Updated      int
}

// Build scans root's dataset tree and writes the items SSOT and
// issues table, per §4.3. It is idempotent: running it twice over an
// unchanged tree produces zero issue churn and updated == 0.
func Build(root workspace.Root, opts Options) (Result, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.CatalogBuildDuration)

	enrichment, err := loadEnrichment(opts.EnrichmentPath)
	if err != nil {
		return Result{}, err
	}

	entries, err := os.ReadDir(root.DatasetDir())
	if err != nil {
		return Result{}, fmt.Errorf("scan dataset dir %q: %w", root.DatasetDir(), err)
	}

	existingBuildTimes, err := loadExistingBuildTimes(root.ItemsCSVPath())
	if err != nil {
		return Result{}, err
	}

	var folderNames []string
	for _, e := range entries {
		if e.IsDir() {
			folderNames = append(folderNames, e.Name())
		}
	}
	sort.Strings(folderNames)

	result := Result{IssueCounts: make(map[archtype.IssueTag]int)}
	var itemRows []map[string]string
	var issueRows []map[string]string

	buildTime := time.Now().UTC().Format(time.RFC3339)

	for _, folderName := range folderNames {
		productID, variant, ok := parseFolderName(folderName)
		if !ok {
			continue
		}
		result.ItemsScanned++

		itemDir := filepath.Join(root.DatasetDir(), folderName)
		item, issues, err := scanItem(root, productID, variant, itemDir, enrichment[productID], opts.EnrichmentPath != "")
		if err != nil {
			return Result{}, err
		}

		rowBuildTime := buildTime
		if prev, ok := existingBuildTimes[productID+"\x1f"+variant]; ok {
			rowBuildTime = prev
		}
		itemRows = append(itemRows, archtype.ItemToRow(item, rowBuildTime))
		for _, iss := range issues {
			result.IssueCounts[iss.Issue]++
			issueRows = append(issueRows, map[string]string{
				"product_id": iss.ProductID,
				"variant":    iss.Variant,
				"issue":      string(iss.Issue),
				"detail":     iss.Detail,
			})
		}
	}

	if err := root.EnsureMutableTree(); err != nil {
		return Result{}, err
	}

	inserted, updated, err := atomicio.UpsertCSV(root.ItemsCSVPath(), itemsKeyCols, atomicio.Frame{
		Columns: archtype.ItemColumns, Rows: itemRows,
	})
	if err != nil {
		return Result{}, fmt.Errorf("upsert items SSOT: %w", err)
	}
	result.Inserted, result.Updated = inserted, updated

	// items_issues.csv is fully replaced on every build, not upserted:
	// Build always rescans the whole dataset tree, so this run's
	// issueRows is already the complete, current issue set. Upserting
	// would only ever add or update rows sharing a key with this run's
	// rows — a resolved issue (its key absent from issueRows because
	// the underlying data problem was fixed) would never be removed,
	// leaking stale issues forever and breaking the "zero issue churn
	// on a stable tree" idempotence guarantee.
	issuesPath := root.ItemsIssuesCSVPath()
	if err := atomicio.WithLockFile(issuesPath+".lock", func() error {
		return atomicio.WriteCSVAtomic(issuesPath, atomicio.Frame{
			Columns: issuesColumns, Rows: issueRows,
		})
	}); err != nil {
		return Result{}, fmt.Errorf("write issues table: %w", err)
	}

	logFields := map[string]any{
		"event":         "catalog_build",
		"items_scanned": result.ItemsScanned,
		"inserted":      result.Inserted,
		"updated":       result.Updated,
	}
	for tag, n := range result.IssueCounts {
		logFields["issue_"+string(tag)] = n
	}
	if err := atomicio.AppendLogRecord(root.LogPath("catalog-build"), logFields); err != nil {
		return Result{}, fmt.Errorf("append catalog-build log: %w", err)
	}

	alog.WithComponent("catalog").Info().
		Int("items_scanned", result.ItemsScanned).
		Int("inserted", result.Inserted).
		Int("updated", result.Updated).
		Msg("catalog build complete")

	metrics.ItemsTotal.Set(float64(len(itemRows)))
	for tag, n := range result.IssueCounts {
		metrics.IssuesTotal.WithLabelValues(string(tag)).Set(float64(n))
	}

	return result, nil
}

// scanItem builds one Item row plus its issues from a single dataset
// sub-directory.
func scanItem(root workspace.Root, productID, variant, itemDir string, enrich enrichmentEntry, hasEnrichmentDoc bool) (archtype.Item, []archtype.Issue, error) {
	var issues []archtype.Issue
	addIssue := func(tag archtype.IssueTag, detail string) {
		issues = append(issues, archtype.Issue{ProductID: productID, Variant: variant, Issue: tag, Detail: detail})
	}

	imagesDir := filepath.Join(itemDir, "images")
	imageNames, err := listNames(imagesDir)
	if err != nil {
		return archtype.Item{}, nil, fmt.Errorf("list images for %s/%s: %w", productID, variant, err)
	}
	selected, tooMany, none := selectImages(imageNames)
	if tooMany {
		addIssue(archtype.IssueTooManyImages, fmt.Sprintf("%d candidates, kept %d", len(imageNames), maxUsedImages))
	}
	if none {
		addIssue(archtype.IssueNoImages, "")
	}

	var imagePaths [6]string
	for i, name := range selected {
		rel, err := root.RelToWorkspace(filepath.Join(imagesDir, name))
		if err != nil {
			return archtype.Item{}, nil, err
		}
		imagePaths[i] = rel
	}

	gtDir := filepath.Join(itemDir, "gt")
	gtNames, err := listNames(gtDir)
	if err != nil {
		return archtype.Item{}, nil, fmt.Errorf("list gt for %s/%s: %w", productID, variant, err)
	}
	gtChosen, gtMissing, gtMultiple := selectGroundTruth(gtNames)
	var gtPath string
	if gtMissing {
		addIssue(archtype.IssueMissingGT, "")
	} else {
		gtPath, err = root.RelToWorkspace(filepath.Join(gtDir, gtChosen))
		if err != nil {
			return archtype.Item{}, nil, err
		}
		if gtMultiple {
			addIssue(archtype.IssueMultipleGTCandidates, gtChosen)
		}
	}

	manufacturer := enrich.Manufacturer
	if manufacturer == "" {
		addIssue(archtype.IssueMissingManufacturer, "")
	}
	productName := localized(enrich.Name)
	if productName == "" {
		addIssue(archtype.IssueMissingProductName, "")
	}
	description := localized(enrich.Description)
	if description == "" {
		addIssue(archtype.IssueMissingDescription, "")
	}
	cats := categoryLevels(enrich.Category)
	if cats[0] == "" {
		addIssue(archtype.IssueMissingCategories, "")
	}

	datasetRel, err := root.RelToWorkspace(itemDir)
	if err != nil {
		return archtype.Item{}, nil, err
	}

	item := archtype.Item{
		ProductID:         productID,
		Variant:           variant,
		Manufacturer:      manufacturer,
		ProductName:       productName,
		CategoryL1:        cats[0],
		CategoryL2:        cats[1],
		CategoryL3:        cats[2],
		Description:       description,
		NImages:           len(selected),
		ImagePaths:        imagePaths,
		GTObjectPath:      gtPath,
		DatasetDir:        datasetRel,
		SourceJSONPresent: hasEnrichmentDoc,
	}
	return item, issues, nil
}

// loadExistingBuildTimes reads the current items SSOT (if any) and
// returns each row's build_time keyed by "product_id\x1fvariant", so
// a re-scan of an unchanged item preserves its original build_time
// instead of stamping a fresh one every run — the same first-write-wins
// rule the planner applies to created_at (§8 scenario 5).
func loadExistingBuildTimes(path string) (map[string]string, error) {
	frame, err := atomicio.ReadCSV(path)
	if err != nil {
		return nil, fmt.Errorf("read existing items SSOT: %w", err)
	}
	out := make(map[string]string, len(frame.Rows))
	for _, row := range frame.Rows {
		out[row["product_id"]+"\x1f"+row["variant"]] = row["build_time"]
	}
	return out, nil
}
