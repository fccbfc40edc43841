// Package favpack bundles rendered icons into a ready to deploy favicon package:
// the ICO container, one PNG per size, a web app manifest and the HTML snippet
// referencing them.
package favpack

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"sort"
	"time"

	"github.com/esimov/icoforge"
	"github.com/klauspost/compress/zip"
)

// File names used inside the package.
const (
	ICOName        = "favicon.ico"
	ManifestName   = "site.webmanifest"
	SnippetName    = "favicon-snippet.html"
	AppleTouchName = "apple-touch-icon.png"

	// AppleTouchSize is the size of the icon referenced by iOS home screens.
	AppleTouchSize = 180
	// manifestMinSize is the smallest icon listed in the manifest.
	manifestMinSize = 192

	// MIMEType is the content type of the package archive.
	MIMEType = "application/zip"
)

// ErrNoImages is returned when the package is built from an empty image set.
var ErrNoImages = errors.New("favpack: no images to package")

// Options customizes the generated manifest.
type Options struct {
	Name            string
	ShortName       string
	ThemeColor      string
	BackgroundColor string
	Display         string
	// Modified is the timestamp stored on the archive entries. Defaults to the current time.
	Modified time.Time
}

func (o Options) withDefaults() Options {
	if o.Name == "" {
		o.Name = "favicon"
	}
	if o.ShortName == "" {
		o.ShortName = o.Name
	}
	if o.ThemeColor == "" {
		o.ThemeColor = "#ffffff"
	}
	if o.BackgroundColor == "" {
		o.BackgroundColor = "#ffffff"
	}
	if o.Display == "" {
		o.Display = "standalone"
	}
	if o.Modified.IsZero() {
		o.Modified = time.Now()
	}
	return o
}

// PNGName returns the archive name of the PNG rendered at size.
func PNGName(size int) string {
	return fmt.Sprintf("favicon-%dx%d.png", size, size)
}

// ManifestIcon is an icon entry of the web app manifest.
type ManifestIcon struct {
	Src     string `json:"src"`
	Sizes   string `json:"sizes"`
	Type    string `json:"type"`
	Purpose string `json:"purpose"`
}

// WebManifest is the subset of the web app manifest describing the app icons.
type WebManifest struct {
	Name            string         `json:"name"`
	ShortName       string         `json:"short_name"`
	Icons           []ManifestIcon `json:"icons"`
	ThemeColor      string         `json:"theme_color"`
	BackgroundColor string         `json:"background_color"`
	Display         string         `json:"display"`
}

// Manifest describes the icons of at least 192px. When no such size
// is available every size is listed.
func Manifest(sizes []int, opts Options) WebManifest {
	opts = opts.withDefaults()

	listed := make([]int, 0, len(sizes))
	for _, s := range sizes {
		if s >= manifestMinSize {
			listed = append(listed, s)
		}
	}
	if len(listed) == 0 {
		listed = append(listed, sizes...)
	}
	sort.Ints(listed)

	icons := make([]ManifestIcon, 0, len(listed))
	for _, s := range listed {
		icons = append(icons, ManifestIcon{
			Src:     "/" + PNGName(s),
			Sizes:   fmt.Sprintf("%dx%d", s, s),
			Type:    "image/png",
			Purpose: "any",
		})
	}
	return WebManifest{
		Name:            opts.Name,
		ShortName:       opts.ShortName,
		Icons:           icons,
		ThemeColor:      opts.ThemeColor,
		BackgroundColor: opts.BackgroundColor,
		Display:         opts.Display,
	}
}

var snippetTmpl = template.Must(template.New("snippet").Parse(
	`<link rel="icon" href="/{{.ICO}}" sizes="any">
{{range .Icons}}<link rel="icon" type="image/png" sizes="{{.}}x{{.}}" href="/favicon-{{.}}x{{.}}.png">
{{end}}{{if .Apple}}<link rel="apple-touch-icon" sizes="180x180" href="/{{.AppleName}}">
{{end}}<link rel="manifest" href="/{{.Manifest}}">
`))

// Snippet returns the HTML to be pasted inside the <head> tag of a page
// in order to reference the packaged icons.
func Snippet(sizes []int) string {
	icons := make([]int, 0, len(sizes))
	apple := false
	for _, s := range sizes {
		if s == AppleTouchSize {
			apple = true
			continue
		}
		icons = append(icons, s)
	}
	sort.Ints(icons)

	var buf bytes.Buffer
	// The template only renders integers and constants.
	_ = snippetTmpl.Execute(&buf, struct {
		ICO, AppleName, Manifest string
		Icons                    []int
		Apple                    bool
	}{
		ICO:       ICOName,
		AppleName: AppleTouchName,
		Manifest:  ManifestName,
		Icons:     icons,
		Apple:     apple,
	})
	return buf.String()
}

// Build writes the zip archive holding the complete favicon package.
func Build(w io.Writer, images []icoforge.RenderedImage, opts Options) error {
	if len(images) == 0 {
		return ErrNoImages
	}
	opts = opts.withDefaults()

	icoData, err := icoforge.EncodeICO(images)
	if err != nil {
		return err
	}

	sizes := make([]int, len(images))
	for i, img := range images {
		sizes[i] = img.Size
	}
	manifest, err := json.MarshalIndent(Manifest(sizes, opts), "", "  ")
	if err != nil {
		return fmt.Errorf("favpack: encode manifest: %w", err)
	}

	zw := zip.NewWriter(w)
	add := func(name string, method uint16, data []byte) error {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   method,
			Modified: opts.Modified,
		})
		if err != nil {
			return fmt.Errorf("favpack: create %s: %w", name, err)
		}
		if _, err := fw.Write(data); err != nil {
			return fmt.Errorf("favpack: write %s: %w", name, err)
		}
		return nil
	}

	// PNG payloads are already deflated.
	if err := add(ICOName, zip.Store, icoData); err != nil {
		return err
	}
	for _, img := range images {
		if err := add(PNGName(img.Size), zip.Store, img.Data); err != nil {
			return err
		}
		if img.Size == AppleTouchSize {
			if err := add(AppleTouchName, zip.Store, img.Data); err != nil {
				return err
			}
		}
	}
	if err := add(ManifestName, zip.Deflate, manifest); err != nil {
		return err
	}
	if err := add(SnippetName, zip.Deflate, []byte(Snippet(sizes))); err != nil {
		return err
	}
	return zw.Close()
}
