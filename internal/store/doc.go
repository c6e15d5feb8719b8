// Package store provides SQLite-backed durable storage for sensor records.
//
// The store is an append-only table of readings:
//   - Insert assigns the record ID (AUTOINCREMENT, never reused)
//   - FetchByID, MaxID, Count, and Recent are read-only
//   - Nothing in sensord updates or deletes a row
//
// # Identity
//
// The ID of a new record is the statement's LastInsertId. It is never
// recovered afterwards with SELECT MAX(id), which would race with other
// writers.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - One open connection: every call is exclusive and single-statement
package store
