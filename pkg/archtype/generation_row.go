package archtype

import (
	"strconv"
	"strings"
	"time"
)

// GenerationColumns is the generations SSOT's core column schema
// (§3, §6.1). Metric columns owned by external evaluators are never
// declared here — the CSV upsert primitive appends them dynamically
// the first time an evaluator writes one, and preserves them on every
// subsequent core upsert because mergedColumns keeps existing columns.
var GenerationColumns = []string{
	"run_id", "job_id", "product_id", "variant", "algo", "algo_version",
	"manufacturer", "product_name", "category_l1", "category_l2", "category_l3", "description",
	"image_1_path", "image_2_path", "image_3_path", "image_4_path", "image_5_path", "image_6_path",
	"gt_object_path",
	"used_n_images",
	"used_image_1_path", "used_image_2_path", "used_image_3_path",
	"used_image_4_path", "used_image_5_path", "used_image_6_path",
	"image_set_hash",
	"status", "created_at",
	"generation_start", "generation_end", "generation_duration_s",
	"worker_host", "worker_user", "worker_gpu", "worker_env_tag", "worker_commit",
	"gen_object_path", "preview_paths",
	"unit_price_usd", "currency", "estimated_cost_usd", "price_source",
	"error_msg", "notes",
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatFloatPtr(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func parseFloatPtr(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

// GenerationToRow renders a Generation as a CSV row keyed by
// GenerationColumns, plus any metric columns the Generation carries.
func GenerationToRow(g Generation) map[string]string {
	row := map[string]string{
		"run_id": g.RunID, "job_id": g.JobID,
		"product_id": g.ProductID, "variant": g.Variant,
		"algo": g.Algo, "algo_version": g.AlgoVersion,
		"manufacturer": g.Manufacturer, "product_name": g.ProductName,
		"category_l1": g.CategoryL1, "category_l2": g.CategoryL2, "category_l3": g.CategoryL3,
		"description":    g.Description,
		"gt_object_path": g.GTObjectPath,
		"used_n_images":  strconv.Itoa(g.UsedNImages),
		"image_set_hash": g.ImageSetHash,
		"status":         string(g.Status),
		"created_at":     formatTime(g.CreatedAt),
		"generation_start":      formatTime(g.GenerationStart),
		"generation_end":        formatTime(g.GenerationEnd),
		"generation_duration_s": formatDurationS(g.GenerationDurationS),
		"worker_host":    g.WorkerHost,
		"worker_user":    g.WorkerUser,
		"worker_gpu":     g.WorkerGPU,
		"worker_env_tag": g.WorkerEnvTag,
		"worker_commit":  g.WorkerCommit,
		"gen_object_path": g.GenObjectPath,
		"preview_paths":   strings.Join(g.PreviewPaths, ";"),
		"unit_price_usd":  formatFloatPtr(g.UnitPriceUSD),
		"currency":        g.Currency,
		"estimated_cost_usd": formatFloatPtr(g.EstimatedCostUSD),
		"price_source":    string(g.PriceSource),
		"error_msg":       g.ErrorMsg,
		"notes":           g.Notes,
	}
	for i, p := range g.ImagePaths {
		row["image_"+strconv.Itoa(i+1)+"_path"] = p
	}
	for i, p := range g.UsedImages {
		row["used_image_"+strconv.Itoa(i+1)+"_path"] = p
	}
	for col, val := range g.Metrics {
		row[col] = val
	}
	return row
}

func formatDurationS(d float64) string {
	if d == 0 {
		return ""
	}
	return strconv.FormatFloat(d, 'f', -1, 64)
}

// GenerationFromRow parses a CSV row back into a Generation. Metric
// columns (anything not in GenerationColumns) are preserved verbatim
// in the Metrics map so consumers never need to know the evaluator
// schema in advance.
func GenerationFromRow(row map[string]string) Generation {
	g := Generation{
		RunID: row["run_id"], JobID: row["job_id"],
		ProductID: row["product_id"], Variant: row["variant"],
		Algo: row["algo"], AlgoVersion: row["algo_version"],
		Manufacturer: row["manufacturer"], ProductName: row["product_name"],
		CategoryL1: row["category_l1"], CategoryL2: row["category_l2"], CategoryL3: row["category_l3"],
		Description:    row["description"],
		GTObjectPath:   row["gt_object_path"],
		ImageSetHash:   row["image_set_hash"],
		Status:         Status(row["status"]),
		CreatedAt:      parseTime(row["created_at"]),
		GenerationStart: parseTime(row["generation_start"]),
		GenerationEnd:   parseTime(row["generation_end"]),
		WorkerHost:     row["worker_host"],
		WorkerUser:     row["worker_user"],
		WorkerGPU:      row["worker_gpu"],
		WorkerEnvTag:   row["worker_env_tag"],
		WorkerCommit:   row["worker_commit"],
		GenObjectPath:  row["gen_object_path"],
		UnitPriceUSD:   parseFloatPtr(row["unit_price_usd"]),
		Currency:       row["currency"],
		EstimatedCostUSD: parseFloatPtr(row["estimated_cost_usd"]),
		PriceSource:    PriceSource(row["price_source"]),
		ErrorMsg:       row["error_msg"],
		Notes:          row["notes"],
	}
	if n, err := strconv.Atoi(row["used_n_images"]); err == nil {
		g.UsedNImages = n
	}
	if d, err := strconv.ParseFloat(row["generation_duration_s"], 64); err == nil {
		g.GenerationDurationS = d
	}
	if row["preview_paths"] != "" {
		g.PreviewPaths = strings.Split(row["preview_paths"], ";")
	}
	for i := range g.ImagePaths {
		g.ImagePaths[i] = row["image_"+strconv.Itoa(i+1)+"_path"]
	}
	for i := range g.UsedImages {
		g.UsedImages[i] = row["used_image_"+strconv.Itoa(i+1)+"_path"]
	}

	known := make(map[string]bool, len(GenerationColumns))
	for _, c := range GenerationColumns {
		known[c] = true
	}
	for col, val := range row {
		if !known[col] {
			if g.Metrics == nil {
				g.Metrics = make(map[string]string)
			}
			g.Metrics[col] = val
		}
	}
	return g
}
