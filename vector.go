package icoforge

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"image"
	"io"
	"strconv"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/draw"
)

// svgRoot holds the dimensions declared on the root <svg> element.
type svgRoot struct {
	width, height float64
	viewBox       [4]float64
	hasViewBox    bool
}

// ValidateSVG checks that the markup is well-formed and that its root element is <svg>.
func ValidateSVG(markup []byte) error {
	_, err := parseSVGRoot(markup)
	return err
}

func parseSVGRoot(markup []byte) (*svgRoot, error) {
	var (
		root  *svgRoot
		depth int
	)
	dec := xml.NewDecoder(bytes.NewReader(markup))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &DecodeError{Format: FormatSVG, Err: fmt.Errorf("%w: %v", ErrInvalidSVG, err)}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				if root != nil {
					return nil, &DecodeError{Format: FormatSVG, Err: fmt.Errorf("%w: multiple root elements", ErrInvalidSVG)}
				}
				if !strings.EqualFold(t.Name.Local, "svg") {
					return nil, &DecodeError{Format: FormatSVG, Err: fmt.Errorf("%w: unexpected root element <%s>", ErrInvalidSVG, t.Name.Local)}
				}
				root = readSVGAttrs(t.Attr)
			}
			depth++
		case xml.EndElement:
			depth--
		}
	}

	if root == nil {
		return nil, &DecodeError{Format: FormatSVG, Err: fmt.Errorf("%w: missing root element", ErrInvalidSVG)}
	}
	if depth != 0 {
		return nil, &DecodeError{Format: FormatSVG, Err: fmt.Errorf("%w: unclosed element", ErrInvalidSVG)}
	}
	return root, nil
}

func readSVGAttrs(attrs []xml.Attr) *svgRoot {
	root := &svgRoot{}
	for _, attr := range attrs {
		switch attr.Name.Local {
		case "width":
			root.width = parseLength(attr.Value)
		case "height":
			root.height = parseLength(attr.Value)
		case "viewBox":
			fields := strings.FieldsFunc(attr.Value, func(r rune) bool {
				return r == ' ' || r == ',' || r == '\t' || r == '\n'
			})
			if len(fields) != 4 {
				continue
			}
			var vb [4]float64
			valid := true
			for i, f := range fields {
				v, err := strconv.ParseFloat(f, 64)
				if err != nil {
					valid = false
					break
				}
				vb[i] = v
			}
			if valid && vb[2] > 0 && vb[3] > 0 {
				root.viewBox = vb
				root.hasViewBox = true
			}
		}
	}
	return root
}

// parseLength reads an absolute svg length. Percentages and unparsable values yield 0.
func parseLength(s string) float64 {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "%") {
		return 0
	}
	s = strings.TrimSuffix(s, "px")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// Fallback dimensions of markup lacking a viewBox and an absolute width or height.
const (
	defaultSVGWidth  = 300
	defaultSVGHeight = 150
)

// viewport returns the user space rectangle mapped onto the drawing area.
// The viewBox has precedence over the width and height attributes.
func (r *svgRoot) viewport() (x, y, w, h float64) {
	if r.hasViewBox {
		return r.viewBox[0], r.viewBox[1], r.viewBox[2], r.viewBox[3]
	}
	w, h = defaultSVGWidth, defaultSVGHeight
	if r.width > 0 {
		w = r.width
	}
	if r.height > 0 {
		h = r.height
	}
	return 0, 0, w, h
}

// size returns the natural dimensions of the drawing.
func (r *svgRoot) size() (float64, float64) {
	_, _, w, h := r.viewport()
	return w, h
}

// vectorImage is a Drawable backed by svg markup.
// The markup is parsed again on every draw, since the parsed icon
// is mutated when its target rectangle is set.
type vectorImage struct {
	markup []byte
	root   *svgRoot
}

func decodeSVG(markup []byte) (Drawable, error) {
	root, err := parseSVGRoot(markup)
	if err != nil {
		return nil, err
	}
	if _, err := oksvg.ReadIconStream(bytes.NewReader(markup)); err != nil {
		return nil, &DecodeError{Format: FormatSVG, Err: err}
	}
	return &vectorImage{markup: markup, root: root}, nil
}

func (v *vectorImage) Size() (float64, float64) {
	return v.root.size()
}

func (v *vectorImage) Draw(dst *image.NRGBA, r image.Rectangle) error {
	b := dst.Bounds()
	if b.Empty() || r.Empty() {
		return errors.New("empty destination")
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(v.markup))
	if err != nil {
		return err
	}

	// The root element has already been parsed, so its viewport is used
	// even when oksvg does not recognize the root tag.
	vx, vy, vw, vh := v.root.viewport()
	icon.ViewBox.X, icon.ViewBox.Y = vx, vy
	icon.ViewBox.W, icon.ViewBox.H = vw, vh
	icon.Transform = rasterx.Identity.
		Translate(float64(r.Min.X), float64(r.Min.Y)).
		Scale(float64(r.Dx())/vw, float64(r.Dy())/vh).
		Translate(-vx, -vy)

	canvas := image.NewRGBA(b)
	scanner := rasterx.NewScannerGV(b.Dx(), b.Dy(), canvas, b)
	raster := rasterx.NewDasher(b.Dx(), b.Dy(), scanner)
	icon.Draw(raster, 1.0)

	// Nothing drawn outside of the fit rectangle may leak into the padding.
	draw.Draw(dst, r, canvas, r.Min, draw.Src)
	return nil
}
