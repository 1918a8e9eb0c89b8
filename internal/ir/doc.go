// Package ir provides the core value types shared by every snaptext package.
//
// This package contains type definitions and small pure helpers only. All
// other internal packages import ir; ir imports nothing internal, which keeps
// it the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - TextRecord is immutable once created; the only mutation is deletion
//   - Record IDs are 128-bit UUIDv7 strings generated client-side
//   - Timestamps are UTC and persisted in a fixed-width layout so that
//     lexical order equals chronological order
//   - All JSON tags use snake_case
package ir
