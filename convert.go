package icoforge

import (
	"context"

	"github.com/esimov/icoforge/ico"
)

// EncodeICO packs the rendered images into an icon container, in the given order.
func EncodeICO(images []RenderedImage) ([]byte, error) {
	entries := make([]ico.Entry, len(images))
	for i, img := range images {
		entries[i] = img
	}
	return ico.EncodeBytes(entries)
}

// Convert renders the source at every size and packs the results into an icon container.
// The rendered images are returned as well, so they can be reused for previews or packaging.
func (r *Rasterizer) Convert(ctx context.Context, src Source, sizes []int) ([]byte, []RenderedImage, error) {
	images, err := r.RenderAll(ctx, src, sizes)
	if err != nil {
		return nil, nil, err
	}
	data, err := EncodeICO(images)
	if err != nil {
		return nil, nil, err
	}
	return data, images, nil
}
