package handlers

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// multipartRequest builds a POST with a single file part under field.
func multipartRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if field != "" {
		part, err := writer.CreateFormFile(field, filename)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		part.Write(content)
	}
	writer.Close()

	req := httptest.NewRequest("POST", "/api/uploads", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func newTestUploadHandler(t *testing.T) (*UploadHandler, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "uploads")
	handler := NewUploadHandler(dir, testLogger)
	handler.now = func() time.Time { return time.UnixMilli(1700000000123) }
	return handler, dir
}

func TestUploadHandler_Upload_Success(t *testing.T) {
	handler, dir := newTestUploadHandler(t)
	recorder := httptest.NewRecorder()

	handler.Upload(recorder, multipartRequest(t, "file", "my face.png", pngBytes(t, 4, 3)))

	assertStatusCode(t, recorder, http.StatusOK)
	var resp UploadResponse
	parseJSONResponse(t, recorder, &resp)
	if !resp.Success {
		t.Error("expected success true")
	}
	if resp.Path != "/uploads/1700000000123-my_face.png" {
		t.Errorf("unexpected path '%s'", resp.Path)
	}
	if resp.Width != 4 || resp.Height != 3 || resp.Format != "png" || resp.Resized {
		t.Errorf("unexpected image info %+v", resp)
	}
	if len(resp.DHash) != 16 {
		t.Errorf("expected 16 hex digit dhash, got '%s'", resp.DHash)
	}
	if resp.DuplicateOf != "" {
		t.Errorf("first upload should not be a duplicate, got '%s'", resp.DuplicateOf)
	}
	if _, err := os.Stat(filepath.Join(dir, "1700000000123-my_face.png")); err != nil {
		t.Errorf("expected uploaded file on disk: %v", err)
	}
}

func TestUploadHandler_Upload_DownscalesLargePhotos(t *testing.T) {
	handler, dir := newTestUploadHandler(t)
	recorder := httptest.NewRecorder()

	handler.Upload(recorder, multipartRequest(t, "file", "big.png", pngBytes(t, 2000, 10)))

	assertStatusCode(t, recorder, http.StatusOK)
	var resp UploadResponse
	parseJSONResponse(t, recorder, &resp)
	if !resp.Resized || resp.Format != "jpeg" || resp.Width != 1920 || resp.Height != 9 {
		t.Errorf("unexpected image info %+v", resp)
	}
	if resp.Path != "/uploads/1700000000123-big.jpg" {
		t.Errorf("unexpected path '%s'", resp.Path)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading upload dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "1700000000123-big.jpg" {
		t.Errorf("expected only the resized file, found %v", entries)
	}
}

func TestUploadHandler_Upload_ReportsDuplicates(t *testing.T) {
	handler, _ := newTestUploadHandler(t)
	data := pngBytes(t, 40, 30)

	first := httptest.NewRecorder()
	handler.Upload(first, multipartRequest(t, "file", "a.png", data))
	assertStatusCode(t, first, http.StatusOK)

	second := httptest.NewRecorder()
	handler.Upload(second, multipartRequest(t, "file", "b.png", data))
	assertStatusCode(t, second, http.StatusOK)

	var resp UploadResponse
	parseJSONResponse(t, second, &resp)
	if resp.DuplicateOf != "/uploads/1700000000123-a.png" {
		t.Errorf("expected duplicate of first upload, got '%s'", resp.DuplicateOf)
	}
}

func TestUploadHandler_Upload_NotAnImage(t *testing.T) {
	handler, dir := newTestUploadHandler(t)
	recorder := httptest.NewRecorder()

	handler.Upload(recorder, multipartRequest(t, "file", "notes.txt", []byte("definitely not an image")))

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "uploaded file is not a supported image")

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected rejected file to be removed, found %d files", len(entries))
	}
}

func TestUploadHandler_Upload_MissingFile(t *testing.T) {
	handler, _ := newTestUploadHandler(t)
	recorder := httptest.NewRecorder()

	handler.Upload(recorder, multipartRequest(t, "", "", nil))

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "no file provided")
}

func TestUploadHandler_Upload_NotMultipart(t *testing.T) {
	handler, _ := newTestUploadHandler(t)
	recorder := httptest.NewRecorder()

	handler.Upload(recorder, jsonRequest(t, "POST", "/api/uploads", map[string]string{"file": "x"}))

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "failed to parse multipart form")
}

func TestSafeFileName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"face.png", "face.png"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\bob\face.jpg`, "face.jpg"},
		{"a b?c#d%.png", "a_bcd.png"},
		{"..", "upload"},
		{"", "upload"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := safeFileName(tt.input); got != tt.expected {
				t.Errorf("safeFileName(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
