/*
Package archtype defines the row-level data model shared by every
component of the orchestration core: the catalog builder, the batch
planner, the worker engine, and the consolidator all read and write
the same Item and Generation shapes so a row written by one stage is
directly consumable by the next without translation.

None of these types carry behavior beyond small accessors; the CSV
column order, key columns, and string encodings they imply are the
single source of truth for pkg/atomicio's table readers/writers.
*/
package archtype
