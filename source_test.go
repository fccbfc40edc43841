package icoforge

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"testing"

	"github.com/esimov/icoforge/ico"
	"github.com/gen2brain/avif"
	"github.com/stretchr/testify/assert"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func TestSource_IsSupported(t *testing.T) {
	for _, name := range []string{"a.svg", "A.PNG", "b.jpg", "c.jpeg", "d.webp", "e.gif", "f.bmp", "g.tiff", "h.tif", "i.ico", "j.avif"} {
		assert.True(t, IsSupported(name, ""), name)
	}
	for _, ct := range []string{"image/svg+xml", "image/png", "image/jpeg", "image/webp", "image/gif",
		"image/bmp", "image/tiff", "image/x-icon", "image/vnd.microsoft.icon", "image/avif", "image/svg+xml; charset=utf-8"} {
		assert.True(t, IsSupported("", ct), ct)
	}
	assert.False(t, IsSupported("notes.txt", "text/plain"))
	assert.False(t, IsSupported("", ""))
	assert.Equal(t, "SVG, PNG, JPEG, WebP, GIF, BMP, TIFF, AVIF, ICO", SupportedFormatsLabel())
	assert.Len(t, Extensions(), 11)
}

func TestSource_IsVector(t *testing.T) {
	assert.True(t, IsVector("logo.SVG", ""))
	assert.True(t, IsVector("upload", "image/svg+xml"))
	assert.False(t, IsVector("logo.png", "image/png"))
	assert.False(t, IsVector("", ""))
}

func TestSource_ValidateSVG(t *testing.T) {
	valid := []string{
		rectSVG,
		`<?xml version="1.0"?><!DOCTYPE svg><SVG></SVG>`,
		`<svg/>`,
	}
	for _, markup := range valid {
		assert.NoError(t, ValidateSVG([]byte(markup)), markup)
	}

	invalid := []string{
		"",
		"just text",
		"<svg><unclosed>",
		"<html><body></body></html>",
		"<svg></svg><svg></svg>",
		"<svg><g></svg>",
	}
	for _, markup := range invalid {
		err := ValidateSVG([]byte(markup))
		assert.True(t, errors.Is(err, ErrInvalidSVG), "%q: %v", markup, err)

		var decErr *DecodeError
		assert.True(t, errors.As(err, &decErr))
		assert.Equal(t, FormatSVG, decErr.Format)
	}
}

func TestSource_NaturalSize(t *testing.T) {
	cases := []struct {
		markup string
		w, h   float64
	}{
		{`<svg viewBox="0 0 100 50"/>`, 100, 50},
		{`<svg viewBox="0,0,24,48" width="10"/>`, 24, 48},
		{`<svg width="64px" height="32"/>`, 64, 32},
		{`<svg width="100%" height="100%"/>`, 300, 150},
		{`<svg/>`, 300, 150},
		{`<svg width="64"/>`, 64, 150},
		{`<svg viewBox="0 0 0 10" width="3" height="4"/>`, 3, 4},
	}
	for _, c := range cases {
		root, err := parseSVGRoot([]byte(c.markup))
		assert.NoError(t, err)
		w, h := root.size()
		assert.Equal(t, c.w, w, c.markup)
		assert.Equal(t, c.h, h, c.markup)
	}
}

func TestSource_SniffFormat(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))

	var jpg, gf, bm, tf bytes.Buffer
	assert.NoError(t, jpeg.Encode(&jpg, img, nil))
	assert.NoError(t, gif.Encode(&gf, img, nil))
	assert.NoError(t, bmp.Encode(&bm, img))
	assert.NoError(t, tiff.Encode(&tf, img, nil))

	cases := map[Format][]byte{
		FormatPNG:  solidPNG(t, 4, 2, color.Black),
		FormatJPEG: jpg.Bytes(),
		FormatGIF:  gf.Bytes(),
		FormatBMP:  bm.Bytes(),
		FormatTIFF: tf.Bytes(),
		FormatWebP: []byte("RIFF\x00\x00\x00\x00WEBPVP8 "),
		FormatAVIF: []byte("\x00\x00\x00\x1cftypavif\x00\x00\x00\x00"),
		FormatICO:  {0, 0, 1, 0, 1, 0},
	}
	for want, data := range cases {
		got, ok := SniffFormat(data)
		assert.True(t, ok, want)
		assert.Equal(t, want, got)
	}

	_, ok := SniffFormat([]byte("plain text"))
	assert.False(t, ok)
}

func TestSource_NewSourceRouting(t *testing.T) {
	// The content wins over a wrong declaration.
	src, err := NewSource("photo.jpg", "image/jpeg", solidPNG(t, 2, 2, color.White))
	assert.NoError(t, err)
	assert.Equal(t, FormatPNG, src.Format)
	assert.Equal(t, "photo.jpg", src.FileName)

	// Unknown magic falls back to the declared type.
	src, err = NewSource("x", "image/avif", []byte("????"))
	assert.NoError(t, err)
	assert.Equal(t, FormatAVIF, src.Format)

	_, err = NewSource("notes.txt", "text/plain", []byte("hello"))
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	_, err = NewSource("logo.svg", "", []byte("<html/>"))
	assert.True(t, errors.Is(err, ErrInvalidSVG))
}

func TestSource_DecodeFormats(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 30, 10))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}

	var jpg, gf, bm, tf bytes.Buffer
	assert.NoError(t, jpeg.Encode(&jpg, img, nil))
	assert.NoError(t, gif.Encode(&gf, img, nil))
	assert.NoError(t, bmp.Encode(&bm, img))
	assert.NoError(t, tiff.Encode(&tf, img, nil))

	for name, data := range map[string][]byte{
		"a.jpg":  jpg.Bytes(),
		"b.gif":  gf.Bytes(),
		"c.bmp":  bm.Bytes(),
		"d.tiff": tf.Bytes(),
	} {
		src, err := NewSource(name, "", data)
		assert.NoError(t, err, name)

		d, err := Decode(src)
		assert.NoError(t, err, name)
		w, h := d.Size()
		assert.Equal(t, [2]float64{30, 10}, [2]float64{w, h}, name)
	}
}

// losslessWebP builds a lossless WebP image of a single color. Every prefix code
// holds one symbol only, so the pixel data takes no bits at all.
func losslessWebP(w, h int, c color.NRGBA) []byte {
	var (
		data  = []byte{0x2f}
		acc   byte
		nbits uint
	)
	put := func(v uint32, n uint) {
		for i := uint(0); i < n; i++ {
			acc |= byte(v>>i&1) << nbits
			if nbits++; nbits == 8 {
				data = append(data, acc)
				acc, nbits = 0, 0
			}
		}
	}
	put(uint32(w-1), 14)
	put(uint32(h-1), 14)
	put(1, 1) // alpha is used
	put(0, 3) // version
	put(0, 1) // no transform
	put(0, 1) // no color cache
	put(0, 1) // no meta prefix codes
	for _, v := range []uint8{c.G, c.R, c.B, c.A} {
		put(1, 1) // simple code
		put(0, 1) // one symbol
		put(1, 1) // 8 bit symbol
		put(uint32(v), 8)
	}
	put(1, 1) // distance code: a single 1 bit symbol
	put(0, 1)
	put(0, 1)
	put(0, 1)
	if nbits > 0 {
		data = append(data, acc)
	}

	le32 := func(n int) []byte {
		return []byte{byte(n), byte(n >> 8), byte(n >> 16), byte(n >> 24)}
	}
	chunk := append([]byte("VP8L"), le32(len(data))...)
	chunk = append(chunk, data...)
	if len(data)%2 == 1 {
		chunk = append(chunk, 0)
	}
	out := append([]byte("RIFF"), le32(4+len(chunk))...)
	out = append(out, "WEBP"...)
	return append(out, chunk...)
}

func TestSource_DecodeWebP(t *testing.T) {
	c := color.NRGBA{R: 0x20, G: 0x80, B: 0xf0, A: 0xff}
	src, err := NewSource("logo.webp", "", losslessWebP(30, 10, c))
	assert.NoError(t, err)
	assert.Equal(t, FormatWebP, src.Format)

	d, err := Decode(src)
	assert.NoError(t, err)
	w, h := d.Size()
	assert.Equal(t, [2]float64{30, 10}, [2]float64{w, h})

	images, err := RenderAll(context.Background(), src, []int{30})
	assert.NoError(t, err)
	assert.Equal(t, c, images[0].Image.NRGBAAt(15, 15))
	assert.Zero(t, images[0].Image.NRGBAAt(15, 0).A)
}

func TestSource_DecodeAVIF(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 32, 16))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	assert.NoError(t, avif.Encode(&buf, img))

	src, err := NewSource("logo.avif", "", buf.Bytes())
	assert.NoError(t, err)
	assert.Equal(t, FormatAVIF, src.Format)

	d, err := Decode(src)
	assert.NoError(t, err)
	w, h := d.Size()
	assert.Equal(t, [2]float64{32, 16}, [2]float64{w, h})

	images, err := RenderAll(context.Background(), src, []int{32})
	assert.NoError(t, err)
	px := images[0].Image.NRGBAAt(16, 16)
	assert.Equal(t, uint8(0xff), px.A)
	assert.InDelta(t, 0xff, int(px.R), 8)
	assert.Zero(t, images[0].Image.NRGBAAt(16, 0).A)
}

func TestSource_ReconvertIcon(t *testing.T) {
	png32 := solidPNG(t, 32, 32, color.NRGBA{R: 0xff, A: 0xff})
	data, err := ico.EncodeBytes([]ico.Entry{ico.Image{Size: 32, Data: png32}})
	assert.NoError(t, err)

	src, err := NewSource("favicon.ico", "image/x-icon", data)
	assert.NoError(t, err)
	assert.Equal(t, FormatICO, src.Format)

	images, err := RenderAll(context.Background(), src, []int{16})
	assert.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0xff, A: 0xff}, images[0].Image.NRGBAAt(8, 8))
}
