// Package acquire turns a device capture or a library pick into an
// ir.ImageRef the capture pipeline can work with.
//
// Sources only describe the image. They do not enforce the size ceiling;
// the pipeline does that when the reference is handed to it.
package acquire
