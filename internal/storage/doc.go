// Package storage is the durable job store shared by every cronhub process.
//
// Each Store operation is a complete transaction against the backing file:
// reload the full job set, mutate it in memory, write the full set back
// atomically. Nothing is cached between calls, so a process always observes
// the latest committed state of other processes.
//
// Drivers:
//   - "file": one JSON document, written via tmp+rename under an flock
//   - "sqlite": one SQLite database file (modernc.org/sqlite, no cgo)
package storage
