package archtype

import (
	"fmt"
	"strconv"
	"time"
)

// Item is a row in the items SSOT, keyed by (ProductID, Variant).
type Item struct {
	ProductID string
	Variant   string

	// Enrichment, all optional.
	Manufacturer  string
	ProductName   string
	CategoryL1    string
	CategoryL2    string
	CategoryL3    string
	Description   string

	NImages    int
	ImagePaths [6]string // workspace-relative POSIX, selection order preserved

	GTObjectPath string // workspace-relative POSIX, optional

	DatasetDir         string // workspace-relative POSIX
	BuildTime          time.Time
	SourceJSONPresent bool
}

// Key returns the (ProductID, Variant) key tuple.
func (i Item) Key() [2]string {
	return [2]string{i.ProductID, i.Variant}
}

// UsedImages returns the non-empty image paths, in order.
func (i Item) UsedImages() []string {
	out := make([]string, 0, i.NImages)
	for _, p := range i.ImagePaths {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IssueTag enumerates the data-quality issue tags §6.1 defines.
type IssueTag string

const (
	IssueNoImages             IssueTag = "no_images"
	IssueTooManyImages        IssueTag = "too_many_images"
	IssueMissingGT            IssueTag = "missing_gt"
	IssueMultipleGTCandidates IssueTag = "multiple_gt_candidates"
	IssueMissingManufacturer  IssueTag = "missing_manufacturer"
	IssueMissingProductName   IssueTag = "missing_product_name"
	IssueMissingDescription   IssueTag = "missing_description"
	IssueMissingCategories    IssueTag = "missing_categories"
)

// Issue is a row in the issues table.
type Issue struct {
	ProductID string
	Variant   string
	Issue     IssueTag
	Detail    string
}

// Status is the generation lifecycle state, per §3 and §4.6.
type Status string

const (
	StatusEnqueued Status = "enqueued"
	StatusRunning  Status = "running"
	StatusComplete Status = "completed"
	StatusFailed   Status = "failed"
)

// Precedence ranks statuses for duplicate-row merge (§4.7): higher
// wins. Completed beats failed beats running beats enqueued.
func (s Status) Precedence() int {
	switch s {
	case StatusComplete:
		return 3
	case StatusFailed:
		return 2
	case StatusRunning:
		return 1
	case StatusEnqueued:
		return 0
	default:
		return -1
	}
}

// PriceSource records where a generation's unit price came from.
type PriceSource string

const (
	PriceSourceAdapter PriceSource = "adapter"
	PriceSourceConfig  PriceSource = "config"
	PriceSourceUnknown PriceSource = "unknown"
)

// ErrorMsgMaxLen is the truncation bound for any error summary column.
const ErrorMsgMaxLen = 2000

// Generation is a row in the generations SSOT, keyed by (RunID, JobID).
type Generation struct {
	// Carry-over from the parent item, for observability.
	ProductID    string
	Variant      string
	Manufacturer string
	ProductName  string
	CategoryL1   string
	CategoryL2   string
	CategoryL3   string
	Description  string
	ImagePaths   [6]string
	GTObjectPath string

	// Batch/job identity.
	RunID         string
	JobID         string
	Algo          string
	AlgoVersion   string
	UsedNImages   int
	UsedImages    [6]string
	ImageSetHash  string

	// Execution.
	Status               Status
	GenerationStart      time.Time
	GenerationEnd        time.Time
	GenerationDurationS  float64
	WorkerHost           string
	WorkerUser           string
	WorkerGPU            string
	WorkerEnvTag         string
	WorkerCommit         string
	GenObjectPath        string
	PreviewPaths         []string
	UnitPriceUSD         *float64
	Currency             string
	EstimatedCostUSD     *float64
	PriceSource          PriceSource
	ErrorMsg             string
	Notes                string

	CreatedAt time.Time

	// Metric annotations, owned by external evaluators (§6.3). The
	// core never writes these columns; it only preserves them across
	// upserts/consolidation.
	Metrics map[string]string
}

// Key returns the (RunID, JobID) key tuple.
func (g Generation) Key() [2]string {
	return [2]string{g.RunID, g.JobID}
}

// CarryOverFromItem copies the parent item's observability fields.
func CarryOverFromItem(it Item) Generation {
	return Generation{
		ProductID:    it.ProductID,
		Variant:      it.Variant,
		Manufacturer: it.Manufacturer,
		ProductName:  it.ProductName,
		CategoryL1:   it.CategoryL1,
		CategoryL2:   it.CategoryL2,
		CategoryL3:   it.CategoryL3,
		Description:  it.Description,
		ImagePaths:   it.ImagePaths,
		GTObjectPath: it.GTObjectPath,
	}
}

// ItemColumns is the items SSOT's declared 19-column schema (§6.1).
var ItemColumns = []string{
	"product_id", "variant", "manufacturer", "product_name",
	"category_l1", "category_l2", "category_l3", "description",
	"n_images",
	"image_1_path", "image_2_path", "image_3_path", "image_4_path", "image_5_path", "image_6_path",
	"gt_object_path", "dataset_dir", "build_time", "source_json_present",
}

// ItemToRow renders an Item as a CSV row keyed by ItemColumns.
func ItemToRow(item Item, buildTime string) map[string]string {
	row := map[string]string{
		"product_id":          item.ProductID,
		"variant":             item.Variant,
		"manufacturer":        item.Manufacturer,
		"product_name":        item.ProductName,
		"category_l1":         item.CategoryL1,
		"category_l2":         item.CategoryL2,
		"category_l3":         item.CategoryL3,
		"description":         item.Description,
		"n_images":            strconv.Itoa(item.NImages),
		"gt_object_path":      item.GTObjectPath,
		"dataset_dir":         item.DatasetDir,
		"build_time":          buildTime,
		"source_json_present": strconv.FormatBool(item.SourceJSONPresent),
	}
	for i, p := range item.ImagePaths {
		row[fmt.Sprintf("image_%d_path", i+1)] = p
	}
	return row
}

// ItemFromRow parses a CSV row back into an Item. Malformed integer
// columns are treated as zero rather than erroring, since consumers
// only ever read rows this same writer produced.
func ItemFromRow(row map[string]string) Item {
	n, _ := strconv.Atoi(row["n_images"])
	sourcePresent, _ := strconv.ParseBool(row["source_json_present"])
	item := Item{
		ProductID:         row["product_id"],
		Variant:           row["variant"],
		Manufacturer:      row["manufacturer"],
		ProductName:       row["product_name"],
		CategoryL1:        row["category_l1"],
		CategoryL2:        row["category_l2"],
		CategoryL3:        row["category_l3"],
		Description:       row["description"],
		NImages:           n,
		GTObjectPath:      row["gt_object_path"],
		DatasetDir:        row["dataset_dir"],
		SourceJSONPresent: sourcePresent,
	}
	for i := range item.ImagePaths {
		item.ImagePaths[i] = row[fmt.Sprintf("image_%d_path", i+1)]
	}
	if t, err := time.Parse(time.RFC3339, row["build_time"]); err == nil {
		item.BuildTime = t
	}
	return item
}

// TruncateError bounds an error summary to ErrorMsgMaxLen runes.
func TruncateError(msg string) string {
	r := []rune(msg)
	if len(r) <= ErrorMsgMaxLen {
		return msg
	}
	return string(r[:ErrorMsgMaxLen])
}
