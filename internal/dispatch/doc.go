// Package dispatch executes the actions selected by the policy evaluator:
// notifications, whitelisted auto-heal procedures and escalations. Every
// dispatch is checked against the shared cooldown registry first, retried
// with bounded exponential backoff on failure, and downgraded to a NOTIFY
// describing the failed remediation when retries are exhausted.
package dispatch
