package icoforge

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSizes is returned when a render is requested without any target size.
	ErrNoSizes = errors.New("no icon size requested")

	// ErrUnsupportedFormat is returned when the source format cannot be detected
	// or has no registered decoder.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrInvalidSVG is returned for markup which is not well-formed
	// or whose root element is not <svg>.
	ErrInvalidSVG = errors.New("invalid svg markup")
)

// DecodeError reports a source which could not be parsed as its declared format.
// It fails the entire conversion since no size can be produced from it.
type DecodeError struct {
	Format Format
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Format == "" {
		return fmt.Sprintf("decode: %v", e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// RenderError reports a drawing or compression failure for a single icon size.
type RenderError struct {
	Size int
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %dx%d: %v", e.Size, e.Size, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }
