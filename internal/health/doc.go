// Package health defines the shared domain types of the scoring engine:
// per-check results, composite reports, response levels and action outcomes.
// These are the canonical in-memory representations passed between the
// collector, scorer, policy and dispatch layers, deliberately free of any
// transport or storage concerns.
package health
