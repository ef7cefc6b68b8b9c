package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/tool-forge/internal/apierror"
)

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	root := t.TempDir()
	local, err := NewLocal(
		filepath.Join(root, "uploads"),
		filepath.Join(root, "outputs"),
		filepath.Join(root, "downloads"),
		1<<20,
		log.New(io.Discard, "", 0),
	)
	if err != nil {
		t.Fatalf("NewLocal returned error: %v", err)
	}
	return local
}

// buildFileHeader は multipart フォームを経由して FileHeader を作成します。
func buildFileHeader(t *testing.T, field, filename string, data []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fw, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	reader := multipart.NewReader(body, writer.Boundary())
	form, err := reader.ReadForm(1 << 20)
	if err != nil {
		t.Fatalf("failed to read form: %v", err)
	}
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File[field][0]
}

var pdfBytes = []byte("%PDF-1.4\n% dummy pdf content\n%%EOF\n")

func TestStageAndRelease(t *testing.T) {
	local := newTestLocal(t)
	fh := buildFileHeader(t, "file", "report.pdf", pdfBytes)

	staged, err := local.Stage(context.Background(), fh, "application/pdf")
	if err != nil {
		t.Fatalf("Stage returned error: %v", err)
	}
	if staged.OriginalName != "report.pdf" || staged.Stem() != "report" {
		t.Fatalf("unexpected names: %s / %s", staged.OriginalName, staged.Stem())
	}
	if staged.MIME != "application/pdf" {
		t.Fatalf("unexpected mime: %s", staged.MIME)
	}
	if _, err := os.Stat(staged.Path); err != nil {
		t.Fatalf("staged file missing: %v", err)
	}

	if err := staged.Release(); err != nil {
		t.Fatalf("Release returned error: %v", err)
	}
	if err := staged.Release(); err != nil {
		t.Fatalf("second Release returned error: %v", err)
	}
	if _, err := os.Stat(staged.Path); !os.IsNotExist(err) {
		t.Fatalf("expected staged file to be removed, stat err=%v", err)
	}
}

func TestStageSameNameDoesNotCollide(t *testing.T) {
	local := newTestLocal(t)
	a, err := local.Stage(context.Background(), buildFileHeader(t, "file", "same.pdf", pdfBytes))
	if err != nil {
		t.Fatalf("Stage returned error: %v", err)
	}
	defer a.Release()
	b, err := local.Stage(context.Background(), buildFileHeader(t, "file", "same.pdf", pdfBytes))
	if err != nil {
		t.Fatalf("Stage returned error: %v", err)
	}
	defer b.Release()
	if a.Path == b.Path {
		t.Fatalf("expected distinct staged paths, got %s", a.Path)
	}
}

func TestStageRejectsWrongType(t *testing.T) {
	local := newTestLocal(t)
	fh := buildFileHeader(t, "file", "notes.pdf", []byte("just some text"))

	_, err := local.Stage(context.Background(), fh, "application/pdf")
	var apiErr *apierror.Error
	if !errors.As(err, &apiErr) || apiErr.Code != "INVALID_FILE_TYPE" {
		t.Fatalf("expected INVALID_FILE_TYPE, got %v", err)
	}

	entries, _ := os.ReadDir(local.uploadDir)
	if len(entries) != 0 {
		t.Fatalf("expected rejected upload to be released, found %d files", len(entries))
	}
}

func TestStageRejectsOversize(t *testing.T) {
	local := newTestLocal(t)
	local.maxFileSize = 4
	fh := buildFileHeader(t, "file", "big.pdf", pdfBytes)

	_, err := local.Stage(context.Background(), fh)
	if apierror.StatusCode(err) != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %v", err)
	}
}

func TestSaveOutputAndLocatePrefersOutputs(t *testing.T) {
	local := newTestLocal(t)

	if _, err := local.SaveOutput("dup.bin", strings.NewReader("output")); err != nil {
		t.Fatalf("SaveOutput returned error: %v", err)
	}
	if err := os.WriteFile(filepath.Join(local.DownloadDir(), "dup.bin"), []byte("download"), 0o640); err != nil {
		t.Fatalf("failed to write download file: %v", err)
	}

	path, err := local.Locate("dup.bin")
	if err != nil {
		t.Fatalf("Locate returned error: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "output" {
		t.Fatalf("expected output copy, got %q", data)
	}
}

func TestLocateFallsBackToDownloads(t *testing.T) {
	local := newTestLocal(t)
	if err := os.WriteFile(filepath.Join(local.DownloadDir(), "clip.mp4"), []byte("video"), 0o640); err != nil {
		t.Fatalf("failed to write download file: %v", err)
	}
	path, err := local.Locate("clip.mp4")
	if err != nil {
		t.Fatalf("Locate returned error: %v", err)
	}
	if filepath.Dir(path) != local.DownloadDir() {
		t.Fatalf("unexpected path: %s", path)
	}
}

func TestLocateRejectsTraversal(t *testing.T) {
	local := newTestLocal(t)
	if _, err := local.Locate("../secret"); apierror.StatusCode(err) != http.StatusBadRequest {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestClearDownloads(t *testing.T) {
	local := newTestLocal(t)
	for _, name := range []string{"a.mp4", "b.mp3"} {
		if err := os.WriteFile(filepath.Join(local.DownloadDir(), name), []byte("x"), 0o640); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}
	}
	local.ClearDownloads()
	entries, err := os.ReadDir(local.DownloadDir())
	if err != nil {
		t.Fatalf("ReadDir returned error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty download dir, found %d entries", len(entries))
	}
}

func TestDownloadHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	local := newTestLocal(t)
	if _, err := local.SaveOutput("merged.pdf", bytes.NewReader(pdfBytes)); err != nil {
		t.Fatalf("SaveOutput returned error: %v", err)
	}

	router := gin.New()
	router.GET("/api/download/:filename", DownloadHandler(local, log.New(io.Discard, "", 0)))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/download/merged.pdf", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/octet-stream" {
		t.Fatalf("unexpected content-type: %s", ct)
	}
	if !bytes.Equal(rec.Body.Bytes(), pdfBytes) {
		t.Fatalf("unexpected body: %q", rec.Body.Bytes())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/download/missing.pdf", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown file, got %d", rec.Code)
	}
}
