package metrics

import (
	"fmt"
	"time"

	"github.com/archi3d/archi3d/pkg/atomicio"
	"github.com/archi3d/archi3d/pkg/workspace"
)

// Collector periodically re-derives gauge metrics from the workspace's
// SSOT tables, the way the teacher's own Collector periodically polled
// its manager for cluster state.
type Collector struct {
	root   workspace.Root
	runIDs []string
	stopCh chan struct{}
}

// NewCollector returns a Collector that snapshots root's tables for
// the given run_ids (generations-by-status is scoped per run; items
// and issues are workspace-wide).
func NewCollector(root workspace.Root, runIDs []string) *Collector {
	return &Collector{root: root, runIDs: runIDs, stopCh: make(chan struct{})}
}

// Start begins collecting on a 15s interval, matching the teacher's
// collection cadence.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectItemMetrics()
	c.collectIssueMetrics()
	c.collectGenerationMetrics()
}

func (c *Collector) collectItemMetrics() {
	frame, err := atomicio.ReadCSV(c.root.ItemsCSVPath())
	if err != nil {
		RegisterComponent("items_table", false, err.Error())
		return
	}
	RegisterComponent("items_table", true, fmt.Sprintf("%d rows", len(frame.Rows)))
	ItemsTotal.Set(float64(len(frame.Rows)))
}

func (c *Collector) collectIssueMetrics() {
	frame, err := atomicio.ReadCSV(c.root.ItemsIssuesCSVPath())
	if err != nil {
		RegisterComponent("issues_table", false, err.Error())
		return
	}
	RegisterComponent("issues_table", true, fmt.Sprintf("%d rows", len(frame.Rows)))
	counts := make(map[string]int)
	for _, row := range frame.Rows {
		counts[row["issue"]]++
	}
	for issue, count := range counts {
		IssuesTotal.WithLabelValues(issue).Set(float64(count))
	}
}

func (c *Collector) collectGenerationMetrics() {
	frame, err := atomicio.ReadCSV(c.root.GenerationsCSVPath())
	if err != nil {
		RegisterComponent("generations_table", false, err.Error())
		return
	}
	RegisterComponent("generations_table", true, fmt.Sprintf("%d rows", len(frame.Rows)))
	for _, runID := range c.runIDs {
		counts := make(map[string]int)
		for _, row := range frame.Rows {
			if row["run_id"] != runID {
				continue
			}
			counts[row["status"]]++
		}
		for status, count := range counts {
			GenerationsByStatus.WithLabelValues(runID, status).Set(float64(count))
		}
	}
}
