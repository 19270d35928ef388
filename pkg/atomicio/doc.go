/*
Package atomicio implements the three primitives spec.md §4.2 requires
every writer of workspace state to go through: an atomic text write, an
append-only structured log record, and a key-based CSV upsert. All
three are safe against a crash mid-write (the on-disk file is either
the old content or the new content, never a truncation). The log
append and the CSV upsert also serialize concurrent writers on the
same host via a sibling ".lock" file taken with github.com/gofrs/flock;
the atomic text write itself takes no lock and relies on the
rename, so concurrent writers of one file leave the last rename's
content.

Per the design note in spec.md §9, logs are diagnostic, not a
coordination mechanism: the lock only keeps one process's append from
interleaving with another's on a local filesystem. On a cloud-synced
drive, appended lines may become visible to other hosts with delay;
callers must not infer ordering or mutual exclusion from log content.
*/
package atomicio
