// Package store provides the on-disk Green's-function store.
//
// A store is a directory holding:
//   - config: the YAML store configuration
//   - index: fixed-size record entries addressed by ((iz*nx)+ix)*nc+ic
//   - traces: append-only float32 sample data
//   - phases/<id>.phase: binary travel-time tables
//   - extra/<backend-id>: backend-specific YAML settings
//   - build.db: SQLite build journal
//   - lock: advisory lock file held by the single writer
//
// # Record Lifecycle
//
// An index entry starts as "not built" (offset 0). A build commit appends the
// samples to traces first and then rewrites the partition's index block in a
// single write, so readers never observe a partial record. Built records are
// immutable unless a forced build repoints them at freshly appended data.
//
// Offsets 1 and 2 are reserved: 1 marks an all-zero record, 2 a short record
// whose one or two samples are held inline in the entry.
//
// # Concurrency
//
//   - One writer per directory, enforced with flock on the lock file
//   - Readers re-read the index entry on every access
//   - A Store handle is safe for concurrent use
//
// # Build Journal
//
// The journal uses SQLite with the same configuration as every database
// in this module:
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Journal rows are ordered by a logical sequence number, never by wall time.
package store
