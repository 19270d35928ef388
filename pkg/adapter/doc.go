/*
Package adapter defines the generation-backend contract (spec.md
§6.2) and an explicit registry mapping an algorithm key to the
Adapter that executes it. Per the "no runtime reflection / dynamic
dispatch" design note in spec.md §9, a new algorithm is wired in by
registering a concrete value, never by looking one up via a type
switch on a string or by reflecting into a plugin — callers hold a
typed Registry and call Get(algo) before invoking Execute.

Subpackages dryrun and shell provide the two adapters the core ships:
dryrun synthesizes placeholder output for end-to-end orchestration
tests (§4.6), and shell invokes an external renderer executable
(§6.5's "external tool paths"), adapted from the teacher's
pkg/health.ExecChecker command-runner shape.
*/
package adapter
