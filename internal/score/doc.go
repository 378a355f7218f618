// Package score turns a set of check results into the composite 0–100
// health score and its letter grade. It is a pure function layer with no
// state and no side effects.
package score
