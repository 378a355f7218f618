// Package httpapi serves the daemon's read-only status surface: a JSON
// API over the latest report and trend history, and a WebSocket feed that
// pushes each new report to connected clients.
package httpapi
