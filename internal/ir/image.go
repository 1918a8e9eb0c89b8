package ir

// Source identifies where an image reference came from.
type Source string

const (
	// SourceCamera is a frame taken with the capture device.
	SourceCamera Source = "camera"

	// SourceLibrary is a file chosen from the image library.
	SourceLibrary Source = "library"
)

// ImageRef is an opaque reference to a local image file.
// Size is the payload length in bytes; Width and Height are zero when unknown.
type ImageRef struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Source Source `json:"source"`
}
