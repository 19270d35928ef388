/*
Package planner implements the Batch Planner (spec.md §4.5): it reads
the items SSOT, applies the include/exclude/with-gt-only/limit filter
chain, computes deterministic job identity for each surviving
(item, algo) pair via pkg/jobid, and upserts enqueued rows into the
generations SSOT along with a per-run manifest projection.
*/
package planner
