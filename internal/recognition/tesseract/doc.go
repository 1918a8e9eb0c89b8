// Package tesseract implements recognition.Gateway on top of Tesseract via
// gosseract.
//
// Tesseract needs cgo and libtesseract. Builds without cgo get an Engine whose
// Prepare and Recognize return recognition.ErrUnavailable, so the rest of the
// program still compiles and reports a clear error at run time.
//
// Model data ("<lang>.traineddata") is fetched on first Prepare into the
// configured tessdata directory; Readiness reports the download progress.
package tesseract
