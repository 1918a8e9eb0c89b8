// Package registry keeps the in-memory, newest-first view of stored text
// records that the CLI reads from.
//
// The registry is a cache over a RecordStore. Add persists and refreshes in
// one call. Remove only deletes: callers refresh explicitly, so a list taken
// between the two still shows the removed record.
package registry
