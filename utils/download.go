package utils

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// MaxFileSize is the largest accepted source image.
const MaxFileSize = 10 << 20

// ErrTooLarge is returned when a source exceeds MaxFileSize.
var ErrTooLarge = fmt.Errorf("file size exceeds the %d MB limit", MaxFileSize>>20)

// DownloadImage downloads the image from the internet and returns its content
// together with the file name and the content type reported by the server.
func DownloadImage(uri string) ([]byte, string, string, error) {
	res, err := http.Get(uri)
	if err != nil {
		return nil, "", "", fmt.Errorf("unable to download image file from URI: %s: %w", uri, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, "", "", fmt.Errorf("unable to download image file from URI: %s, status %v", uri, res.Status)
	}

	data, err := ReadLimited(res.Body, MaxFileSize)
	if err != nil {
		return nil, "", "", err
	}

	ctype := res.Header.Get("Content-Type")
	if ctype == "" || ctype == "application/octet-stream" {
		ctype = DetectContentType(data)
	}
	if !strings.Contains(ctype, "image") {
		return nil, "", "", errors.New("the downloaded file is not a valid image type")
	}

	name := "image"
	if u, err := url.Parse(uri); err == nil && path.Base(u.Path) != "/" && path.Base(u.Path) != "." {
		name = path.Base(u.Path)
	}
	return data, name, ctype, nil
}

// ReadLimited reads r until EOF, failing with ErrTooLarge once limit bytes are exceeded.
func ReadLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("unable to read the source: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, ErrTooLarge
	}
	return data, nil
}

// IsValidUrl tests a string to determine if it is a well-structured url or not.
func IsValidUrl(uri string) bool {
	_, err := url.ParseRequestURI(uri)
	if err != nil {
		return false
	}

	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}

	return true
}

// DetectContentType detects the MIME type by sniffing the content.
// Only the first 512 bytes are considered. It always returns a valid
// content-type and "application/octet-stream" if no others seemed to match.
func DetectContentType(data []byte) string {
	if len(data) > 512 {
		data = data[:512]
	}
	return http.DetectContentType(data)
}
