/*
Package metrics exposes Archi3D's Prometheus instrumentation: counters
and histograms for the catalog builder, batch planner, worker engine,
and consolidator, a periodic Collector that snapshots SSOT table
gauges, and a small health/liveness surface for the serve-metrics
command.

Structure follows the teacher's pkg/metrics: a package-level var block
of prometheus.New*Vec collectors registered in init(), a Timer helper
for histogram observation, and a ticker-driven Collector that
re-derives gauges from the current state rather than being pushed
updates — here the "manager" the teacher's Collector polled is
replaced by the workspace's own CSV tables.
*/
package metrics
