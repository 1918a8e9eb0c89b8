// Package harness runs YAML capture scenarios against the real pipeline,
// registry and an in-memory store, and compares their traces with golden
// files.
//
// # Scenario Format
//
//	name: scan_recognized
//	description: "Two regions are joined and stored"
//	steps:
//	  - action: acquire
//	    image: { path: page.jpg, size: 1024, source: library }
//	    expect: { state: image_ready }
//	  - action: confirm
//	    regions: [HELLO, WORLD]
//	    expect: { state: recognized }
//	assertions:
//	  - type: records
//	    texts: ["HELLO\tWORLD"]
//
// Step actions:
//
//   - acquire: hand an image reference to the pipeline
//   - confirm: script the engine result (regions, fail or hang) and confirm;
//     with async the engine is held and the step returns while recognizing
//   - release: let a held engine finish and wait for the outcome
//   - clear: return the pipeline to idle
//   - set_ready: change engine readiness (ready, progress in percent)
//   - remove, refresh: registry operations
//
// # Assertion Types
//
//   - trace_contains: an event of the given type with matching fields exists
//   - trace_order: transition target states appear in order
//   - trace_count: exact number of events of a type
//   - record_count, records: stored records, newest first
//   - listed: the registry's cached view, newest first
//   - final_state: pipeline state after the last step
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory database, testutil.DeterministicClock
// for created_at and sequential record ids, so traces are byte-identical
// across runs and suitable for golden comparison.
package harness
