// Package cli wires the vigil command tree: status, report, snapshot,
// gate and the run daemon. Exit codes follow the score-band contract and
// are carried through cobra via ExitCodeError.
package cli
