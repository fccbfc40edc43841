package icoforge

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/png"
	"io"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/avif"
	ico "github.com/sergeymakinen/go-ico"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

// Drawable is a decoded source which knows its natural dimensions
// and is able to draw itself into a rectangle of the destination image.
// Implementations must be safe for concurrent use.
type Drawable interface {
	Size() (w, h float64)
	Draw(dst *image.NRGBA, r image.Rectangle) error
}

// decodeFn decodes a binary payload of a specific raster format.
type decodeFn func(io.Reader) (image.Image, error)

// decoders holds the raster decoders keyed by their format.
var decoders = map[Format]decodeFn{
	FormatPNG: png.Decode,
	FormatJPEG: func(r io.Reader) (image.Image, error) {
		return imaging.Decode(r, imaging.AutoOrientation(true))
	},
	FormatGIF:  gif.Decode,
	FormatWebP: webp.Decode,
	FormatBMP:  bmp.Decode,
	FormatTIFF: tiff.Decode,
	FormatAVIF: avif.Decode,
	FormatICO:  ico.Decode,
}

// Decode turns the source into a Drawable, resampling bitmaps with the Lanczos filter.
func Decode(src Source) (Drawable, error) {
	return decode(src, imaging.Lanczos)
}

func decode(src Source, filter imaging.ResampleFilter) (Drawable, error) {
	if len(src.Data) == 0 {
		return nil, &DecodeError{Format: src.Format, Err: io.ErrUnexpectedEOF}
	}
	if src.Kind == Vector {
		return decodeSVG(src.Data)
	}

	fn, ok := decoders[src.Format]
	if !ok {
		return nil, &DecodeError{Format: src.Format, Err: ErrUnsupportedFormat}
	}
	img, err := fn(bytes.NewReader(src.Data))
	if err != nil {
		return nil, &DecodeError{Format: src.Format, Err: err}
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, &DecodeError{Format: src.Format, Err: fmt.Errorf("empty image %dx%d", b.Dx(), b.Dy())}
	}
	return &bitmap{img: imaging.Clone(img), filter: filter}, nil
}

// bitmap is a Drawable backed by a decoded raster image.
type bitmap struct {
	img    *image.NRGBA
	filter imaging.ResampleFilter
}

func (b *bitmap) Size() (float64, float64) {
	s := b.img.Bounds().Size()
	return float64(s.X), float64(s.Y)
}

func (b *bitmap) Draw(dst *image.NRGBA, r image.Rectangle) error {
	if r.Empty() {
		return fmt.Errorf("empty draw rectangle %v", r)
	}
	res := imaging.Resize(b.img, r.Dx(), r.Dy(), b.filter)
	// The destination is transparent, so the resampled pixels are copied
	// as they are instead of being composited.
	*dst = *imaging.Paste(dst, res, r.Min)
	return nil
}
