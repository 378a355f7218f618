// Package config loads, validates and watches the engine configuration file.
//
// Load(path) reads the YAML file, applies defaults (5m interval, 10s check
// timeout, 3 recovery runs, gate minimum 90, 30-day retention), then
// validates required fields and enums. Validation failure is the engine's
// only fatal error class: the process refuses to start rather than run with
// ambiguous thresholds.
//
// Durations appear in the file as integer seconds (or milliseconds where
// noted) and are exposed as time.Duration through accessor methods. Webhook
// URLs are resolved from environment variables at send time via URLEnv
// indirection so secrets never live in the file.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. It handles the rename→create
// pattern used by atomic-save editors by re-adding the watch after the
// event.
package config
