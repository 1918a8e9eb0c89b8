// Package recognition is the boundary around the opaque text-recognition engine.
//
// The engine is consumed through Gateway: a readiness signal (ready flag plus
// model download progress in [0,1]) and an asynchronous
// Recognize(image) -> []TextRegion call that may take seconds and may fail
// for any reason. Callers treat every failure the same way.
//
// ModelFetcher and Tracker implement the readiness half for engines whose
// model data has to be downloaded before first use; package tesseract wires
// them to gosseract.
package recognition
