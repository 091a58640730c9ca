package handlers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio"
	"github.com/kozaktomas/face-registry/internal/imaging"
	"go.uber.org/zap"
)

// maxUploadMemory is how much of a multipart form is kept in memory before spilling to disk.
const maxUploadMemory = 32 << 20

const msgNotAnImage = "uploaded file is not a supported image"

type uploadedPhoto struct {
	hash uint64
	path string
}

// UploadHandler stores face photos under the public uploads directory.
type UploadHandler struct {
	dir    string
	now    func() time.Time
	logger *zap.Logger

	mu   sync.Mutex
	seen []uploadedPhoto
}

// NewUploadHandler creates a new upload handler writing into dir.
func NewUploadHandler(dir string, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{
		dir:    dir,
		now:    time.Now,
		logger: logger,
	}
}

// UploadResponse describes a stored image.
type UploadResponse struct {
	Success     bool   `json:"success"`
	Path        string `json:"path"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Format      string `json:"format"`
	Resized     bool   `json:"resized"`
	DHash       string `json:"dhash"`
	DuplicateOf string `json:"duplicateOf,omitempty"`
}

// safeFileName strips directories and characters that would need escaping in a URL path.
func safeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '?' || r == '#' || r == '%' || r < 0x20:
			return -1
		case r == ' ':
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "upload"
	}
	return name
}

// saveUploadedFile writes data to dir/<unix-millis>-<name> and returns the file name.
func (h *UploadHandler) saveUploadedFile(data []byte, original string) (string, error) {
	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating upload directory: %w", err)
	}

	name := fmt.Sprintf("%d-%s", h.now().UnixMilli(), safeFileName(original))
	path := filepath.Join(h.dir, name)
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644) //nolint:gosec // name sanitized via safeFileName
	if err != nil {
		return "", fmt.Errorf("creating upload file: %w", err)
	}

	if _, err := out.Write(data); err != nil {
		out.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing upload file: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("closing upload file: %w", err)
	}
	return name, nil
}

// replaceWithJPEG swaps the stored upload for a downscaled JPEG copy.
func (h *UploadHandler) replaceWithJPEG(name string, data []byte) (string, error) {
	jpegName := strings.TrimSuffix(name, filepath.Ext(name)) + ".jpg"
	if err := renameio.WriteFile(filepath.Join(h.dir, jpegName), data, 0o644); err != nil {
		return "", fmt.Errorf("writing resized upload: %w", err)
	}
	if jpegName != name {
		if err := os.Remove(filepath.Join(h.dir, name)); err != nil {
			return "", fmt.Errorf("removing original upload: %w", err)
		}
	}
	return jpegName, nil
}

// remember records the photo hash and returns the path of an earlier near-identical upload, if any.
func (h *UploadHandler) remember(hash uint64, path string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, p := range h.seen {
		if imaging.Similar(p.hash, hash, imaging.DuplicateDistance) {
			return p.path
		}
	}
	h.seen = append(h.seen, uploadedPhoto{hash: hash, path: path})
	return ""
}

// Upload handles POST /api/uploads with a multipart "file" field.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	photo, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		h.logger.Info("rejected upload", zap.String("file", sanitizeForLog(header.Filename)), zap.Error(err))
		respondError(w, http.StatusBadRequest, msgNotAnImage)
		return
	}

	name, err := h.saveUploadedFile(data, header.Filename)
	if err != nil {
		h.logger.Error("saving upload failed", zap.String("file", sanitizeForLog(header.Filename)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to save file")
		return
	}

	resp := UploadResponse{
		Success: true,
		Width:   photo.Width(),
		Height:  photo.Height(),
		Format:  photo.Format,
	}

	resized, width, height, ok, err := imaging.Downscale(photo, imaging.MaxDimension)
	if err == nil && ok {
		var jpegName string
		if jpegName, err = h.replaceWithJPEG(name, resized); err == nil {
			name = jpegName
			resp.Width, resp.Height, resp.Format, resp.Resized = width, height, "jpeg", true
		}
	}
	if err != nil {
		h.logger.Error("resizing upload failed", zap.String("file", name), zap.Error(err))
		os.Remove(filepath.Join(h.dir, name))
		respondError(w, http.StatusInternalServerError, "failed to save file")
		return
	}

	hash := imaging.DHash(photo.Image)
	resp.Path = "/uploads/" + name
	resp.DHash = imaging.FormatHash(hash)
	resp.DuplicateOf = h.remember(hash, resp.Path)

	h.logger.Info("image uploaded",
		zap.String("file", name),
		zap.String("format", resp.Format),
		zap.Int("width", resp.Width),
		zap.Int("height", resp.Height),
		zap.Bool("resized", resp.Resized),
		zap.String("dhash", resp.DHash),
	)
	respondJSON(w, http.StatusOK, resp)
}
