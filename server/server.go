// Package server exposes the icon conversion over HTTP.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/esimov/icoforge"
	"github.com/esimov/icoforge/config"
	"github.com/esimov/icoforge/favpack"
	"github.com/esimov/icoforge/ico"
	"github.com/esimov/icoforge/utils"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server handles the conversion requests.
type Server struct {
	rasterizer *icoforge.Rasterizer
	cfg        *config.Config
}

// New creates a server rendering with the provided rasterizer and configuration.
func New(r *icoforge.Rasterizer, cfg *config.Config) *Server {
	return &Server{rasterizer: r, cfg: cfg}
}

// Router returns the HTTP handler serving every route.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/formats", s.handleFormats)
	r.Get("/snippet", s.handleSnippet)
	r.Post("/convert", s.handleConvert)
	r.Post("/package", s.handlePackage)
	r.Post("/inspect", s.handleInspect)
	return r
}

// ListenAndServe starts serving on addr.
func (s *Server) ListenAndServe(addr string) error {
	log.Printf("icoforge service listening on %s", addr)
	return http.ListenAndServe(addr, s.Router())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"label":      icoforge.SupportedFormatsLabel(),
		"extensions": icoforge.Extensions(),
		"sizes":      s.cfg.Sizes,
		"max_bytes":  utils.MaxFileSize,
	})
}

func (s *Server) handleSnippet(w http.ResponseWriter, r *http.Request) {
	sizes, err := s.sizes(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, favpack.Snippet(sizes))
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	data, images, ok := s.convert(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", ico.MIMEType)
	w.Header().Set("Content-Disposition", `attachment; filename="favicon.ico"`)
	w.Header().Set("X-Icon-Sizes", joinSizes(images))
	w.Write(data)
}

func (s *Server) handlePackage(w http.ResponseWriter, r *http.Request) {
	_, images, ok := s.convert(w, r)
	if !ok {
		return
	}

	opts := favpack.Options{
		Name:            s.cfg.Package.Name,
		ThemeColor:      s.cfg.Package.ThemeColor,
		BackgroundColor: s.cfg.Package.BackgroundColor,
		Display:         s.cfg.Package.Display,
	}
	if name := r.URL.Query().Get("name"); name != "" {
		opts.Name = name
	}

	var buf bytes.Buffer
	if err := favpack.Build(&buf, images, opts); err != nil {
		http.Error(w, fmt.Sprintf("Package generation failed: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", favpack.MIMEType)
	w.Header().Set("Content-Disposition", `attachment; filename="favicon-package.zip"`)
	w.Write(buf.Bytes())
}

type inspectEntry struct {
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	BitCount uint16 `json:"bit_count"`
	Size     uint32 `json:"size"`
	Offset   uint32 `json:"offset"`
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	data, _, _, err := readUpload(w, r)
	if err != nil {
		http.Error(w, err.Error(), uploadStatus(err))
		return
	}
	hdr, dir, err := ico.ReadDir(bytes.NewReader(data))
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	entries := make([]inspectEntry, len(dir))
	for i, e := range dir {
		entries[i] = inspectEntry{
			Width:    pixels(e.Width),
			Height:   pixels(e.Height),
			BitCount: e.BitCount,
			Size:     e.Size,
			Offset:   e.Offset,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   hdr.Count,
		"entries": entries,
	})
}

// convert renders the uploaded image and writes the error response when it fails.
func (s *Server) convert(w http.ResponseWriter, r *http.Request) ([]byte, []icoforge.RenderedImage, bool) {
	sizes, err := s.sizes(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, nil, false
	}

	data, name, ctype, err := readUpload(w, r)
	if err != nil {
		http.Error(w, err.Error(), uploadStatus(err))
		return nil, nil, false
	}
	if !icoforge.IsSupported(name, ctype) {
		if _, ok := icoforge.SniffFormat(data); !ok {
			http.Error(w, fmt.Sprintf("Unsupported file type, expected one of: %s", icoforge.SupportedFormatsLabel()), http.StatusUnsupportedMediaType)
			return nil, nil, false
		}
	}

	src, err := icoforge.NewSource(name, ctype, data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return nil, nil, false
	}

	out, images, err := s.rasterizer.Convert(r.Context(), src, sizes)
	if err != nil {
		status := http.StatusInternalServerError
		var decErr *icoforge.DecodeError
		if errors.As(err, &decErr) {
			status = http.StatusUnprocessableEntity
		}
		http.Error(w, fmt.Sprintf("Conversion failed: %v", err), status)
		return nil, nil, false
	}
	return out, images, true
}

func (s *Server) sizes(r *http.Request) ([]int, error) {
	q := r.URL.Query().Get("sizes")
	if q == "" {
		return s.cfg.Sizes, nil
	}
	return config.ParseSizes(q)
}

var errMissingFile = errors.New("missing file")

// readUpload reads the source either from the "file" field of a multipart form
// or from the raw request body.
func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, string, error) {
	// Leave some room for the multipart envelope.
	body := http.MaxBytesReader(w, r.Body, utils.MaxFileSize+(1<<20))

	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "multipart/form-data" {
		r.Body = body
		file, hdr, err := r.FormFile("file")
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return nil, "", "", utils.ErrTooLarge
			}
			return nil, "", "", errMissingFile
		}
		defer file.Close()

		data, err := utils.ReadLimited(file, utils.MaxFileSize)
		if err != nil {
			return nil, "", "", err
		}
		return data, filepath.Base(hdr.Filename), hdr.Header.Get("Content-Type"), nil
	}

	data, err := utils.ReadLimited(body, utils.MaxFileSize)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, "", "", utils.ErrTooLarge
		}
		return nil, "", "", err
	}
	if len(data) == 0 {
		return nil, "", "", errMissingFile
	}
	return data, r.URL.Query().Get("filename"), mt, nil
}

func uploadStatus(err error) int {
	if errors.Is(err, utils.ErrTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func pixels(b uint8) int {
	if b == 0 {
		return 256
	}
	return int(b)
}

func joinSizes(images []icoforge.RenderedImage) string {
	parts := make([]string, len(images))
	for i, img := range images {
		parts[i] = fmt.Sprintf("%dx%d", img.Size, img.Size)
	}
	return strings.Join(parts, ",")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("could not encode the response: %v", err)
	}
}
