/*
Package workspace maps a workspace root directory to the canonical
layout described in spec.md §3: dataset/, tables/, runs/<run_id>/,
logs/, reports/. Every function here is pure given the root — there is
no process-wide mutable state, per the "global singleton" design note
in spec.md §9: callers thread a Root value through function
boundaries instead of reaching for a package-level variable.
*/
package workspace
