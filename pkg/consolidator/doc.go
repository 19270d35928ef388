/*
Package consolidator implements the Consolidator (spec.md §4.7): it
reconciles a run's rows in the generations SSOT against on-disk
evidence — state markers, output files, marker mtimes — merges
duplicate rows by status precedence, fills recoverable metadata, and
replaces the run's row-set in a single atomic write.

Its shape (a stateless pass over one collection, emitting a tallied
summary) is grounded on the teacher's pkg/reconciler.Reconciler, which
drives cluster state back to desired state on a similar "gather
evidence, decide, converge" loop; the heartbeat-staleness check used
here for a stale .inprogress marker mirrors its node-heartbeat check.
*/
package consolidator
