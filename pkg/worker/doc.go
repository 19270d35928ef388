/*
Package worker implements the Worker Engine (spec.md §4.6): it claims
generation rows under a per-job advisory lock, drives each job through
the ENQUEUED→RUNNING→COMPLETED/FAILED lifecycle via a registered
adapter, retries transient adapter failures with backoff, and performs
a single batch upsert of all results when the run completes rather
than one upsert per job, avoiding the concurrent-upsert race that
would otherwise corrupt non-key columns.

The Engine's shape — a config struct plus a mutex-guarded in-memory
accumulator and identity captured once at construction — mirrors the
teacher's own Worker struct, restructured around claiming rows from a
CSV table with a bounded goroutine pool instead of polling a manager
for container assignments over a heartbeat loop.
*/
package worker
