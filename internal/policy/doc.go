// Package policy maps a composite score and its per-check results to the
// minimum required response level and the concrete actions implementing
// it. Score bands select notify / ticket / incident / critical-incident;
// a CRITICAL result on a configured hard component overrides the band and
// forces at least incident level. Incident open/close state and the
// consecutive-recovered-runs counter live in the injected state store.
package policy
