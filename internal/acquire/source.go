package acquire

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/disintegration/imaging"

	"github.com/roach88/snaptext/internal/ir"
)

var (
	// ErrDeviceUnavailable is returned when no capture device or frame exists.
	ErrDeviceUnavailable = errors.New("capture device unavailable")

	// ErrNotAnImage is returned when the selected file cannot be decoded.
	ErrNotAnImage = errors.New("not a supported image")
)

// Source yields one image reference per call.
type Source interface {
	Acquire(ctx context.Context) (ir.ImageRef, error)
}

// LibraryPicker selects an existing image file.
type LibraryPicker struct {
	Path string

	// SkipDecodeAbove, when positive, is a byte size above which the file is
	// not decoded. The reference then has no dimensions and the pipeline's
	// ceiling rejects it without the pixels ever being loaded.
	SkipDecodeAbove int64
}

// Acquire stats and decodes the picked file.
// The byte size is the on-disk size; dimensions are after EXIF orientation.
func (p LibraryPicker) Acquire(ctx context.Context) (ir.ImageRef, error) {
	if err := ctx.Err(); err != nil {
		return ir.ImageRef{}, err
	}

	info, err := os.Stat(p.Path)
	if err != nil {
		return ir.ImageRef{}, fmt.Errorf("pick image: %w", err)
	}
	if info.IsDir() {
		return ir.ImageRef{}, fmt.Errorf("pick image %s: %w", p.Path, ErrNotAnImage)
	}

	if p.SkipDecodeAbove > 0 && info.Size() > p.SkipDecodeAbove {
		return ir.ImageRef{Path: p.Path, Size: info.Size(), Source: ir.SourceLibrary}, nil
	}

	img, err := imaging.Open(p.Path, imaging.AutoOrientation(true))
	if err != nil {
		return ir.ImageRef{}, fmt.Errorf("pick image %s: %w: %v", p.Path, ErrNotAnImage, err)
	}

	b := img.Bounds()
	return ir.ImageRef{
		Path:   p.Path,
		Size:   info.Size(),
		Width:  b.Dx(),
		Height: b.Dy(),
		Source: ir.SourceLibrary,
	}, nil
}
