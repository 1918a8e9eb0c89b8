// Package pipeline drives one image from acquisition through recognition to
// a stored text record.
//
// A Pipeline is a small state machine:
//
//	Idle ──Acquire──▶ ImageReady ──Confirm──▶ Recognizing ──▶ Recognized
//	                                                      ├──▶ EmptyResult
//	                                                      └──▶ Failed
//
// Every state except Recognizing returns to Idle with Clear. The recognition
// call is the only blocking step and is made with the pipeline's mutex
// released. The in-flight flag is set under the mutex before the call is
// issued, so a second Confirm while recognizing is skipped rather than
// starting a duplicate run.
package pipeline
