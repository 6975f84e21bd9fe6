// Package jobs owns the in-memory job registry and the read-only projections
// (poll and stream) built on top of it. The registry is the only authority
// over job state transitions.
package jobs
