package favpack

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/esimov/icoforge"
	"github.com/esimov/icoforge/ico"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
)

const squareSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10"><rect width="10" height="10" fill="#0a0"/></svg>`

func render(t *testing.T, sizes []int) []icoforge.RenderedImage {
	t.Helper()
	src, err := icoforge.NewVectorSource("logo.svg", []byte(squareSVG))
	if err != nil {
		t.Fatalf("invalid fixture: %v", err)
	}
	images, err := icoforge.RenderAll(context.Background(), src, sizes)
	if err != nil {
		t.Fatalf("could not render fixture: %v", err)
	}
	return images
}

func readZip(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("invalid archive: %v", err)
	}
	files := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("could not open %s: %v", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("could not read %s: %v", f.Name, err)
		}
		files[f.Name] = content
	}
	return files
}

func TestFavpack_Build(t *testing.T) {
	images := render(t, []int{16, 32, 180, 192, 512})

	var buf bytes.Buffer
	err := Build(&buf, images, Options{Name: "logo", Modified: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)})
	assert.NoError(t, err)

	files := readZip(t, buf.Bytes())
	for _, name := range []string{
		ICOName, ManifestName, SnippetName, AppleTouchName,
		"favicon-16x16.png", "favicon-32x32.png", "favicon-180x180.png",
		"favicon-192x192.png", "favicon-512x512.png",
	} {
		assert.Contains(t, files, name)
	}
	assert.Len(t, files, 9)
	assert.Equal(t, images[2].Data, files[AppleTouchName])
	assert.Equal(t, images[0].Data, files["favicon-16x16.png"])

	hdr, _, err := ico.ReadDir(bytes.NewReader(files[ICOName]))
	assert.NoError(t, err)
	assert.Equal(t, uint16(5), hdr.Count)

	var manifest WebManifest
	assert.NoError(t, json.Unmarshal(files[ManifestName], &manifest))
	assert.Equal(t, "logo", manifest.Name)
	assert.Equal(t, []ManifestIcon{
		{Src: "/favicon-192x192.png", Sizes: "192x192", Type: "image/png", Purpose: "any"},
		{Src: "/favicon-512x512.png", Sizes: "512x512", Type: "image/png", Purpose: "any"},
	}, manifest.Icons)
}

func TestFavpack_BuildEmpty(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, Build(&buf, nil, Options{}), ErrNoImages)
	assert.Zero(t, buf.Len())
}

func TestFavpack_ManifestFallsBackToAllSizes(t *testing.T) {
	m := Manifest([]int{32, 16}, Options{})
	assert.Equal(t, "favicon", m.Name)
	assert.Equal(t, "favicon", m.ShortName)
	assert.Equal(t, "standalone", m.Display)
	assert.Len(t, m.Icons, 2)
	assert.Equal(t, "16x16", m.Icons[0].Sizes)
}

func TestFavpack_Snippet(t *testing.T) {
	want := `<link rel="icon" href="/favicon.ico" sizes="any">
<link rel="icon" type="image/png" sizes="16x16" href="/favicon-16x16.png">
<link rel="icon" type="image/png" sizes="32x32" href="/favicon-32x32.png">
<link rel="apple-touch-icon" sizes="180x180" href="/apple-touch-icon.png">
<link rel="manifest" href="/site.webmanifest">
`
	assert.Equal(t, want, Snippet([]int{32, 180, 16}))
	assert.NotContains(t, Snippet([]int{16}), "apple-touch-icon")
}
