// Package store provides SQLite-backed durable storage for recognized text.
//
// The store holds a single table of immutable text records:
//   - Insert: generates an id and a creation stamp, persists, returns the record
//   - ListOrdered: every record, newest first
//   - GetByID: point lookup, absence is not an error
//   - DeleteByID: permanent and idempotent
//
// # Ordering
//
// created_at is written in the fixed-width ir.TimestampLayout, so ORDER BY
// created_at DESC is chronological. Stamps issued by one Store are strictly
// increasing even if the wall clock stalls or steps back; ties cannot occur.
//
// # Schema versioning
//
// The schema version lives in PRAGMA user_version. Open runs the Migrator
// before returning, and a failed migration fails Open: a partially migrated
// store is never handed out.
//
// # Database Configuration
//
//   - WAL mode: readers do not block the single writer
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - one open connection: single process, single writer
package store
