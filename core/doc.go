// Package core defines the shared vocabulary of the runtime: run and task
// identifiers, the immutable sequenced Event record that every component
// appends to the event log, the per-run sequence counter, and the
// configuration error type surfaced by setup-time validation.
//
// Everything here is deliberately dependency-free (beyond uuid) so that the
// leaf packages (eventlog, budget, task) can share these types without
// import cycles.
package core
