// Package metrics computes the dashboard summary from a store snapshot.
//
// Compute is a pure function of the snapshot and the evaluation time; the
// same inputs always give the same Result.
package metrics
