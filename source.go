package icoforge

import (
	"bytes"
	"mime"
	"path/filepath"
	"strings"
)

// Kind discriminates between text based vector sources and binary raster sources.
type Kind int

const (
	// Raster sources are read as binary and decoded by a bitmap decoder.
	Raster Kind = iota
	// Vector sources are read as text markup and rendered at the target resolution.
	Vector
)

func (k Kind) String() string {
	if k == Vector {
		return "vector"
	}
	return "raster"
}

// Format identifies the encoding of a source image.
type Format string

// The supported source formats.
const (
	FormatSVG  Format = "svg"
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatWebP Format = "webp"
	FormatGIF  Format = "gif"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
	FormatAVIF Format = "avif"
	FormatICO  Format = "ico"
)

var extFormats = map[string]Format{
	".svg":  FormatSVG,
	".png":  FormatPNG,
	".jpg":  FormatJPEG,
	".jpeg": FormatJPEG,
	".webp": FormatWebP,
	".gif":  FormatGIF,
	".bmp":  FormatBMP,
	".tiff": FormatTIFF,
	".tif":  FormatTIFF,
	".ico":  FormatICO,
	".avif": FormatAVIF,
}

var mimeFormats = map[string]Format{
	"image/svg+xml":            FormatSVG,
	"image/png":                FormatPNG,
	"image/jpeg":               FormatJPEG,
	"image/webp":               FormatWebP,
	"image/gif":                FormatGIF,
	"image/bmp":                FormatBMP,
	"image/tiff":               FormatTIFF,
	"image/x-icon":             FormatICO,
	"image/vnd.microsoft.icon": FormatICO,
	"image/avif":               FormatAVIF,
}

// Extensions returns the supported file extensions, including the leading dot.
func Extensions() []string {
	return []string{".svg", ".png", ".jpg", ".jpeg", ".webp", ".gif", ".bmp", ".tiff", ".tif", ".ico", ".avif"}
}

// SupportedFormatsLabel returns a user friendly list of the accepted formats.
func SupportedFormatsLabel() string {
	return "SVG, PNG, JPEG, WebP, GIF, BMP, TIFF, AVIF, ICO"
}

// FormatFromName returns the format signalled by the file extension, if any.
func FormatFromName(fileName string) (Format, bool) {
	f, ok := extFormats[strings.ToLower(filepath.Ext(fileName))]
	return f, ok
}

// FormatFromContentType returns the format signalled by a MIME type, if any.
// Media type parameters like charset are ignored.
func FormatFromContentType(contentType string) (Format, bool) {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = contentType
	}
	f, ok := mimeFormats[strings.ToLower(strings.TrimSpace(mt))]
	return f, ok
}

// IsSupported reports whether the file name or the declared content type
// designates one of the supported formats.
func IsSupported(fileName, contentType string) bool {
	if _, ok := FormatFromName(fileName); ok {
		return true
	}
	_, ok := FormatFromContentType(contentType)
	return ok
}

// IsVector reports whether the declared type or the extension signals svg markup.
// This decision has to be taken before reading the payload,
// since vector content is treated as text while raster content as binary.
func IsVector(fileName, contentType string) bool {
	if f, ok := FormatFromContentType(contentType); ok && f == FormatSVG {
		return true
	}
	f, ok := FormatFromName(fileName)
	return ok && f == FormatSVG
}

// SniffFormat detects a raster format by inspecting the magic bytes of the payload.
func SniffFormat(data []byte) (Format, bool) {
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return FormatPNG, true
	case bytes.HasPrefix(data, []byte{0xff, 0xd8, 0xff}):
		return FormatJPEG, true
	case bytes.HasPrefix(data, []byte("GIF87a")), bytes.HasPrefix(data, []byte("GIF89a")):
		return FormatGIF, true
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return FormatWebP, true
	case bytes.HasPrefix(data, []byte("BM")):
		return FormatBMP, true
	case bytes.HasPrefix(data, []byte("II*\x00")), bytes.HasPrefix(data, []byte("MM\x00*")):
		return FormatTIFF, true
	case len(data) >= 12 && string(data[4:8]) == "ftyp" &&
		(string(data[8:12]) == "avif" || string(data[8:12]) == "avis"):
		return FormatAVIF, true
	case bytes.HasPrefix(data, []byte{0, 0, 1, 0}):
		return FormatICO, true
	}
	return "", false
}

// Source is the input of a conversion. Exactly one of the two kinds is held:
// Vector sources carry svg markup, Raster sources carry the encoded bitmap bytes.
type Source struct {
	Kind   Kind
	Format Format
	Data   []byte

	// FileName is used only for labels.
	FileName string
}

// NewSource routes the payload to a vector or raster source based on the declared
// content type and file name. Vector payloads are validated before being accepted,
// raster payloads have their format detected from the content, falling back
// to the declared type.
func NewSource(fileName, contentType string, data []byte) (Source, error) {
	if IsVector(fileName, contentType) {
		return NewVectorSource(fileName, data)
	}

	format, ok := SniffFormat(data)
	if !ok {
		if format, ok = FormatFromContentType(contentType); !ok {
			format, ok = FormatFromName(fileName)
		}
	}
	if !ok || format == FormatSVG {
		return Source{}, &DecodeError{Err: ErrUnsupportedFormat}
	}
	return Source{
		Kind:     Raster,
		Format:   format,
		Data:     data,
		FileName: fileName,
	}, nil
}

// NewVectorSource creates a vector source out of svg markup, e.g. pasted text.
func NewVectorSource(fileName string, markup []byte) (Source, error) {
	if err := ValidateSVG(markup); err != nil {
		return Source{}, err
	}
	return Source{
		Kind:     Vector,
		Format:   FormatSVG,
		Data:     markup,
		FileName: fileName,
	}, nil
}
