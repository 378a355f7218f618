// Package engine schedules and orchestrates evaluation runs: collectors
// fan out concurrently under individual timeouts, the scorer and policy
// evaluator run synchronously on the gathered results, the dispatcher
// executes the selected actions, and the report is appended to history.
// Runs for the same target are mutually exclusive.
package engine
