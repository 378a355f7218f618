// Package history persists composite reports append-only in SQLite and
// answers trend queries over the score series. A persistence failure never
// invalidates the in-memory report; retention pruning is the only path
// that removes rows.
package history
