/*
Package jobid computes the two deterministic identifiers spec.md §4.4
defines: the image-set hash and the job id derived from it. Neither
function consults a clock or random source, so the same inputs always
yield the same output across processes and across runs — this is the
basis for the planner's and consolidator's idempotence.
*/
package jobid
