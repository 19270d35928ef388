package metrics

import (
	"testing"

	"github.com/archi3d/archi3d/pkg/archtype"
	"github.com/archi3d/archi3d/pkg/atomicio"
	"github.com/archi3d/archi3d/pkg/workspace"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func testGaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("write gauge metric: %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestCollectorCollectSetsGauges(t *testing.T) {
	dir := t.TempDir()
	root, err := workspace.New(dir)
	if err != nil {
		t.Fatalf("workspace.New: %v", err)
	}
	if err := root.EnsureMutableTree(); err != nil {
		t.Fatalf("EnsureMutableTree: %v", err)
	}

	item := archtype.Item{ProductID: "1", Variant: "default"}
	if _, _, err := atomicio.UpsertCSV(root.ItemsCSVPath(), []string{"product_id", "variant"}, atomicio.Frame{
		Columns: archtype.ItemColumns,
		Rows:    []map[string]string{archtype.ItemToRow(item, "2026-01-01T00:00:00Z")},
	}); err != nil {
		t.Fatalf("seed item: %v", err)
	}

	g := archtype.Generation{RunID: "run1", JobID: "job1", Status: archtype.StatusComplete}
	if _, _, err := atomicio.UpsertCSV(root.GenerationsCSVPath(), []string{"run_id", "job_id"}, atomicio.Frame{
		Columns: archtype.GenerationColumns,
		Rows:    []map[string]string{archtype.GenerationToRow(g)},
	}); err != nil {
		t.Fatalf("seed generation: %v", err)
	}

	c := NewCollector(root, []string{"run1"})
	c.collect() // should not panic on a populated workspace

	value := testGaugeValue(t, ItemsTotal)
	if value != 1 {
		t.Errorf("ItemsTotal = %v, want 1", value)
	}
}
