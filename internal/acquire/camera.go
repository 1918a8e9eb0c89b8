package acquire

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"

	"github.com/disintegration/imaging"

	"github.com/roach88/snaptext/internal/ir"
)

// Capture aspect ratio, width:height.
const (
	aspectW = 3
	aspectH = 4
)

// jpegQuality for written captures.
const jpegQuality = 95

// Camera stands in for a capture device. FramePath is the raw frame the
// device produced; the capture is cropped to 3:4 portrait and written as a
// JPEG into OutputDir.
type Camera struct {
	FramePath string
	OutputDir string
}

// Acquire reads the frame, crops it and writes the capture.
func (c Camera) Acquire(ctx context.Context) (ir.ImageRef, error) {
	if err := ctx.Err(); err != nil {
		return ir.ImageRef{}, err
	}
	if c.FramePath == "" {
		return ir.ImageRef{}, ErrDeviceUnavailable
	}

	frame, err := imaging.Open(c.FramePath, imaging.AutoOrientation(true))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ir.ImageRef{}, fmt.Errorf("capture %s: %w", c.FramePath, ErrDeviceUnavailable)
		}
		return ir.ImageRef{}, fmt.Errorf("capture %s: %w: %v", c.FramePath, ErrNotAnImage, err)
	}

	w, h := cropSize(frame.Bounds())
	if w == 0 || h == 0 {
		return ir.ImageRef{}, fmt.Errorf("capture %s: empty frame: %w", c.FramePath, ErrNotAnImage)
	}
	shot := imaging.Fill(frame, w, h, imaging.Center, imaging.Lanczos)

	dir := c.OutputDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ir.ImageRef{}, fmt.Errorf("capture dir: %w", err)
	}

	out, err := os.CreateTemp(dir, "capture-*.jpg")
	if err != nil {
		return ir.ImageRef{}, fmt.Errorf("capture file: %w", err)
	}
	path := out.Name()
	if err := imaging.Encode(out, shot, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		out.Close()
		os.Remove(path)
		return ir.ImageRef{}, fmt.Errorf("write capture: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return ir.ImageRef{}, fmt.Errorf("write capture: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return ir.ImageRef{}, fmt.Errorf("stat capture: %w", err)
	}

	return ir.ImageRef{
		Path:   path,
		Size:   info.Size(),
		Width:  w,
		Height: h,
		Source: ir.SourceCamera,
	}, nil
}

// cropSize returns the largest 3:4 rectangle that fits inside b.
func cropSize(b image.Rectangle) (int, int) {
	w, h := b.Dx(), b.Dy()
	if w*aspectH > h*aspectW {
		return h * aspectW / aspectH, h
	}
	return w, w * aspectH / aspectW
}
