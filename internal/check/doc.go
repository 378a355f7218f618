// Package check defines the Collector contract, the static registry of
// built-in checks, and the fault-safe runner that bounds every probe.
//
// Built-in collectors and their deduction tables:
//
//	resource   disk/mem/cpu vs thresholds      WARN −5/−10, CRITICAL −10/−15
//	backup     age of newest backup vs limit   CRITICAL −25 when stale
//	integrity  SHA-256 of critical files       CRITICAL −15 on mismatch
//	security   unresolved critical alerts      CRITICAL −15 per alert
//	probe      sampled latency vs SLA          WARN −5, CRITICAL −10
//
// Run converts any collector fault (timeout, error, panic) into a
// synthetic CRITICAL result with a fixed 5-point deduction so a broken
// check degrades the score without aborting the run. ApplyRules overlays
// the configured threshold table on top of collector output.
package check
