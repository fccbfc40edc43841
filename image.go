package icoforge

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"math"

	"github.com/disintegration/imaging"
	"github.com/esimov/icoforge/utils"
)

// Rect is a rectangle expressed in floating point coordinates.
type Rect struct {
	X, Y, W, H float64
}

// FitRect computes the largest rectangle with the w/h aspect ratio which fits
// inside a size x size square, centered on both axes.
func FitRect(w, h float64, size int) Rect {
	s := float64(size)
	aspect := w / h

	dw, dh := s, s
	if aspect > 1 {
		dh = s / aspect
	} else {
		dw = s * aspect
	}
	return Rect{
		X: (s - dw) / 2,
		Y: (s - dh) / 2,
		W: dw,
		H: dh,
	}
}

// Pixels snaps the rectangle to the pixel grid of a size x size canvas.
// Each side covers at least one pixel and the result never exceeds the canvas.
func (r Rect) Pixels(size int) image.Rectangle {
	snap := func(off, length float64) (int, int) {
		n := utils.Max(1, int(math.Round(length)))
		n = utils.Min(n, size)
		o := utils.Clamp(int(math.Round(off)), 0, size-n)
		return o, n
	}
	x, w := snap(r.X, r.W)
	y, h := snap(r.Y, r.H)
	return image.Rect(x, y, x+w, y+h)
}

// RenderedImage is a single square icon produced for one requested size.
type RenderedImage struct {
	Size  int
	Image *image.NRGBA
	// Data holds the PNG encoded Image.
	Data []byte
}

// IconSize returns the square dimension of the icon.
func (ri RenderedImage) IconSize() int { return ri.Size }

// IconData returns the PNG payload.
func (ri RenderedImage) IconData() ([]byte, error) {
	if len(ri.Data) == 0 {
		return nil, errors.New("missing png payload")
	}
	return ri.Data, nil
}

// PreviewURI returns a data URI which can be used to display the icon.
func (ri RenderedImage) PreviewURI() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(ri.Data)
}

// encodePNG compresses the image losslessly. Non-premultiplied alpha is kept as is.
func encodePNG(img *image.NRGBA) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
