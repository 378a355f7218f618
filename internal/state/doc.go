// Package state holds the engine's mutable shared state: the cooldown
// registry keyed by (action type, target), the consecutive-recovered-runs
// counter, and the open incident record. The Store is injected where it is
// needed and serializes all access behind one mutex.
package state
