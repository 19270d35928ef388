package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	alog "github.com/archi3d/archi3d/pkg/log"
	"github.com/archi3d/archi3d/pkg/metrics"
)

var serveMetricsCmd = &cobra.Command{
	Use:   "serve-metrics",
	Short: "Expose the Prometheus registry over HTTP for a running batch",
	Long: `Starts an HTTP server exposing /metrics, /health, and /live so
an operator script that invokes batch create, run worker, and
consolidate back-to-back can be scraped while it runs. This is ambient
observability; it does not perform any scheduling itself.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, resolved, err := resolveWorkspace(cmd)
		if err != nil {
			return err
		}
		if err := requireWorkspace(resolved); err != nil {
			return err
		}

		runIDs, _ := cmd.Flags().GetStringSlice("run-id")
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = resolved.MetricsAddr
		}
		if addr == "" {
			addr = "127.0.0.1:9090"
		}

		collector := metrics.NewCollector(root, runIDs)
		collector.Start()
		defer collector.Stop()

		metrics.RegisterComponent("workspace", true, resolved.Workspace)

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/live", metrics.LivenessHandler())

		alog.WithComponent("serve-metrics").Info().Str("addr", addr).Msg("metrics server starting")
		fmt.Printf("metrics endpoint: http://%s/metrics\n", addr)
		return http.ListenAndServe(addr, mux)
	},
}

func init() {
	serveMetricsCmd.Flags().StringSlice("run-id", nil, "Run ids to poll for generation-status gauges")
	serveMetricsCmd.Flags().String("addr", "", "Listen address (default 127.0.0.1:9090 or config metrics_addr)")
}
