// Package ico packs already compressed PNG images into a multi-resolution ICO container.
//
// The encoder is a pure binary packer: the payloads are written verbatim,
// they are never decoded, resampled or recompressed.
//
// Layout of the produced container (all fields little-endian):
//
//	offset 0       uint16  reserved = 0
//	offset 2       uint16  type     = 1
//	offset 4       uint16  count
//	offset 6       count × 16 byte directory entries
//	offset 6+16×N  concatenated payloads, in entry order
package ico

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	// HeaderSize is the size of the ICONDIR header.
	HeaderSize = 6
	// EntrySize is the size of a single ICONDIRENTRY.
	EntrySize = 16

	// TypeIcon identifies an icon resource (2 would be a cursor).
	TypeIcon = 1

	// MIMEType is the content type of the encoded container.
	MIMEType = "image/x-icon"
)

var (
	// ErrEmpty is returned when no image is passed to the encoder.
	ErrEmpty = errors.New("empty image set")
	// ErrFormat is returned by ReadDir for data which is not an icon container.
	ErrFormat = errors.New("not a valid ico file")
)

// EncodeError reports an invalid image set. No partial container is produced.
type EncodeError struct {
	// Index of the offending image, -1 when the error concerns the whole set.
	Index int
	Err   error
}

func (e *EncodeError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("ico: %v", e.Err)
	}
	return fmt.Sprintf("ico: image #%d: %v", e.Index, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// Entry is an image ready to be packed: a square size and its compressed payload.
type Entry interface {
	IconSize() int
	IconData() ([]byte, error)
}

// Image is a plain Entry value.
type Image struct {
	Size int
	Data []byte
}

func (img Image) IconSize() int             { return img.Size }
func (img Image) IconData() ([]byte, error) { return img.Data, nil }

// Header is the fixed ICONDIR header.
type Header struct {
	Reserved uint16
	Type     uint16
	Count    uint16
}

// DirEntry is a single ICONDIRENTRY.
type DirEntry struct {
	Width      uint8 // 0 means 256
	Height     uint8 // 0 means 256
	ColorCount uint8
	Reserved   uint8
	Planes     uint16
	BitCount   uint16
	Size       uint32
	Offset     uint32
}

// dimension converts a pixel size into its directory byte.
// Anything from 256 upwards is stored as 0.
func dimension(size int) uint8 {
	if size >= 256 {
		return 0
	}
	return uint8(size)
}

// Encode writes the icon container holding the images in the order supplied.
func Encode(w io.Writer, images []Entry) error {
	data, err := EncodeBytes(images)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// EncodeBytes returns the icon container holding the images in the order supplied.
// The images are not sorted: the caller decides the entry order.
func EncodeBytes(images []Entry) ([]byte, error) {
	if len(images) == 0 {
		return nil, &EncodeError{Index: -1, Err: ErrEmpty}
	}
	if len(images) > math.MaxUint16 {
		return nil, &EncodeError{Index: -1, Err: fmt.Errorf("too many images: %d", len(images))}
	}

	payloads := make([][]byte, len(images))
	total := HeaderSize + EntrySize*len(images)
	for i, img := range images {
		if img.IconSize() <= 0 {
			return nil, &EncodeError{Index: i, Err: fmt.Errorf("invalid size %d", img.IconSize())}
		}
		data, err := img.IconData()
		if err != nil {
			return nil, &EncodeError{Index: i, Err: err}
		}
		if len(data) == 0 {
			return nil, &EncodeError{Index: i, Err: errors.New("empty payload")}
		}
		if uint64(total)+uint64(len(data)) > math.MaxUint32 {
			return nil, &EncodeError{Index: i, Err: errors.New("container exceeds 4 GiB")}
		}
		payloads[i] = data
		total += len(data)
	}

	buf := bytes.NewBuffer(make([]byte, 0, total))
	// Writes into a bytes.Buffer never fail.
	_ = binary.Write(buf, binary.LittleEndian, Header{
		Type:  TypeIcon,
		Count: uint16(len(images)),
	})

	offset := uint32(HeaderSize + EntrySize*len(images))
	for i, img := range images {
		_ = binary.Write(buf, binary.LittleEndian, DirEntry{
			Width:    dimension(img.IconSize()),
			Height:   dimension(img.IconSize()),
			Planes:   1,
			BitCount: 32,
			Size:     uint32(len(payloads[i])),
			Offset:   offset,
		})
		offset += uint32(len(payloads[i]))
	}
	for _, data := range payloads {
		buf.Write(data)
	}
	return buf.Bytes(), nil
}

// ReadDir reads the header and the directory entries of an icon container.
func ReadDir(r io.Reader) (Header, []DirEntry, error) {
	var hdr Header
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return hdr, nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if hdr.Reserved != 0 || hdr.Type != TypeIcon || hdr.Count == 0 {
		return hdr, nil, ErrFormat
	}

	entries := make([]DirEntry, hdr.Count)
	if err := binary.Read(r, binary.LittleEndian, entries); err != nil {
		return hdr, nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return hdr, entries, nil
}

// Payloads splits a complete container into the images it holds.
// The directory offsets and sizes are checked against the data bounds.
func Payloads(data []byte) ([]Image, error) {
	_, entries, err := ReadDir(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	images := make([]Image, len(entries))
	for i, e := range entries {
		end := uint64(e.Offset) + uint64(e.Size)
		if end > uint64(len(data)) {
			return nil, fmt.Errorf("%w: entry #%d out of bounds", ErrFormat, i)
		}
		size := int(e.Width)
		if size == 0 {
			size = 256
		}
		images[i] = Image{Size: size, Data: data[e.Offset:end]}
	}
	return images, nil
}
