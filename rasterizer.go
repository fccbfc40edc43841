package icoforge

import (
	"context"
	"fmt"
	"image"
	"runtime"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"
)

// DefaultSizes are the icon sizes produced when none is requested explicitly.
var DefaultSizes = []int{16, 32, 48, 64, 180, 192, 512}

// maxWorkers sets the maximum number of concurrently rendered sizes.
const maxWorkers = 20

// Rasterizer renders a source into square icons of multiple sizes.
// It holds no state between calls, so a single value can be shared.
type Rasterizer struct {
	// Filter is the resampling filter used for bitmap sources.
	// The zero value resamples with nearest neighbor.
	Filter imaging.ResampleFilter
	// Workers limits the number of sizes rendered concurrently.
	Workers int
}

// NewRasterizer returns a Rasterizer using the Lanczos filter and one worker per CPU.
func NewRasterizer() *Rasterizer {
	return &Rasterizer{
		Filter:  imaging.Lanczos,
		Workers: runtime.NumCPU(),
	}
}

// RenderAll renders the source with a default Rasterizer.
func RenderAll(ctx context.Context, src Source, sizes []int) ([]RenderedImage, error) {
	return NewRasterizer().RenderAll(ctx, src, sizes)
}

// RenderAll decodes the source once and renders it into one icon per requested size.
// The results follow the order of sizes. In case a single size fails
// the whole batch is discarded and the first error is returned.
func (r *Rasterizer) RenderAll(ctx context.Context, src Source, sizes []int) ([]RenderedImage, error) {
	if len(sizes) == 0 {
		return nil, ErrNoSizes
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d, err := decode(src, r.Filter)
	if err != nil {
		return nil, err
	}

	workers := r.Workers
	if workers <= 0 || workers > maxWorkers {
		workers = runtime.NumCPU()
	}

	results := make([]RenderedImage, len(sizes))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, size := range sizes {
		i, size := i, size
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ri, err := r.Render(d, size)
			if err != nil {
				return err
			}
			results[i] = *ri
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Render draws the decoded image centered into a transparent size x size canvas,
// preserving its aspect ratio, and compresses the result as PNG.
func (r *Rasterizer) Render(d Drawable, size int) (*RenderedImage, error) {
	if size <= 0 {
		return nil, &RenderError{Size: size, Err: fmt.Errorf("invalid size %d", size)}
	}

	w, h := d.Size()
	if w <= 0 || h <= 0 {
		return nil, &RenderError{Size: size, Err: fmt.Errorf("invalid natural size %gx%g", w, h)}
	}

	// A freshly allocated NRGBA is fully transparent.
	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	rect := FitRect(w, h, size).Pixels(size)
	if err := d.Draw(dst, rect); err != nil {
		return nil, &RenderError{Size: size, Err: err}
	}

	data, err := encodePNG(dst)
	if err != nil {
		return nil, &RenderError{Size: size, Err: err}
	}
	return &RenderedImage{
		Size:  size,
		Image: dst,
		Data:  data,
	}, nil
}
