package pdf

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/tool-forge/internal/apierror"
	"github.com/yourusername/tool-forge/internal/storage"
)

type stubMergeService struct {
	artifact storage.Artifact
	err      error
	got      int
}

func (s *stubMergeService) Merge(ctx context.Context, files []*multipart.FileHeader) (storage.Artifact, error) {
	s.got = len(files)
	return s.artifact, s.err
}

type stubSplitService struct {
	opts SplitOptions
}

func (s *stubSplitService) Split(ctx context.Context, file *multipart.FileHeader, opts SplitOptions) (storage.Artifact, error) {
	s.opts = opts
	return storage.NewArtifact("split_input.zip"), nil
}

type stubWatermarkService struct {
	opts     WatermarkOptions
	hasImage bool
}

func (s *stubWatermarkService) Watermark(ctx context.Context, file, image *multipart.FileHeader, opts WatermarkOptions) (storage.Artifact, error) {
	s.opts = opts
	s.hasImage = image != nil
	return storage.NewArtifact("watermarked_input.pdf"), nil
}

type formPart struct {
	field    string
	filename string
	data     []byte
}

func newMultipartRequest(t *testing.T, path string, files []formPart, fields map[string]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, f := range files {
		fileWriter, err := writer.CreateFormFile(f.field, f.filename)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := io.Copy(fileWriter, bytes.NewReader(f.data)); err != nil {
			t.Fatalf("failed to write dummy file: %v", err)
		}
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("failed to write field %s: %v", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestMergeHandlerSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &stubMergeService{artifact: storage.NewArtifact("merged.pdf")}

	req := newMultipartRequest(t, "/api/pdf/merge", []formPart{
		{field: "files", filename: "input1.pdf", data: []byte("dummy")},
		{field: "files", filename: "input2.pdf", data: []byte("dummy")},
	}, nil)
	rec := httptest.NewRecorder()

	router := gin.New()
	router.POST("/api/pdf/merge", MergeHandler(service, discardLogger()))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	if service.got != 2 {
		t.Fatalf("expected 2 files passed to service, got %d", service.got)
	}

	var payload storage.Artifact
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload.Filename != "merged.pdf" || payload.URL != "/api/download/merged.pdf" {
		t.Fatalf("unexpected payload: %#v", payload)
	}
}

func TestMergeHandlerAcceptsBracketField(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &stubMergeService{artifact: storage.NewArtifact("merged.pdf")}

	req := newMultipartRequest(t, "/api/pdf/merge", []formPart{
		{field: "files[]", filename: "input1.pdf", data: []byte("dummy")},
	}, nil)
	rec := httptest.NewRecorder()

	router := gin.New()
	router.POST("/api/pdf/merge", MergeHandler(service, discardLogger()))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || service.got != 1 {
		t.Fatalf("unexpected status=%d files=%d", rec.Code, service.got)
	}
}

func TestMergeHandlerNoFiles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	req := newMultipartRequest(t, "/api/pdf/merge", nil, map[string]string{"foo": "bar"})
	rec := httptest.NewRecorder()

	router := gin.New()
	router.POST("/api/pdf/merge", MergeHandler(&stubMergeService{}, discardLogger()))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestMergeHandlerCollaboratorFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &stubMergeService{
		err: apierror.Collaborator("PDFの結合に失敗しました", http.StatusServiceUnavailable, nil),
	}

	req := newMultipartRequest(t, "/api/pdf/merge", []formPart{
		{field: "files", filename: "input1.pdf", data: []byte("dummy")},
	}, nil)
	rec := httptest.NewRecorder()

	router := gin.New()
	router.POST("/api/pdf/merge", MergeHandler(service, discardLogger()))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("unexpected status: %d", rec.Code)
	}

	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload["code"] != "COLLABORATOR_ERROR" {
		t.Fatalf("unexpected code: %s", payload["code"])
	}
}

func TestSplitHandlerValidation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name   string
		fields map[string]string
		want   int
	}{
		{"missing type", map[string]string{"split_value": "2"}, http.StatusBadRequest},
		{"invalid type", map[string]string{"split_type": "chapters", "split_value": "2"}, http.StatusBadRequest},
		{"missing value", map[string]string{"split_type": "interval"}, http.StatusBadRequest},
		{"ok", map[string]string{"split_type": "Interval", "split_value": "2"}, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			service := &stubSplitService{}
			req := newMultipartRequest(t, "/api/pdf/split", []formPart{
				{field: "file", filename: "input.pdf", data: []byte("dummy")},
			}, tc.fields)
			rec := httptest.NewRecorder()

			router := gin.New()
			router.POST("/api/pdf/split", SplitHandler(service, discardLogger()))
			router.ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
			}
			if tc.want == http.StatusOK && (service.opts.Type != SplitTypeInterval || service.opts.Value != "2") {
				t.Fatalf("unexpected options: %#v", service.opts)
			}
		})
	}
}

func TestWatermarkHandlerParsesOptions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &stubWatermarkService{}
	req := newMultipartRequest(t, "/api/pdf/add-watermark", []formPart{
		{field: "file", filename: "input.pdf", data: []byte("dummy")},
		{field: "watermark_image", filename: "logo.png", data: []byte("dummy")},
	}, map[string]string{
		"watermark_type": "image",
		"font_size":      "12",
		"opacity":        "0.25",
	})
	rec := httptest.NewRecorder()

	router := gin.New()
	router.POST("/api/pdf/add-watermark", WatermarkHandler(service, discardLogger()))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	if !service.hasImage {
		t.Fatal("expected watermark image to be forwarded")
	}
	want := WatermarkOptions{Type: WatermarkImage, FontSize: 12, Rotation: 0, Opacity: 0.25, WidthSpacer: 50, HeightSpacer: 50}
	if service.opts != want {
		t.Fatalf("unexpected options: %#v", service.opts)
	}
}

func TestWatermarkHandlerInvalidNumber(t *testing.T) {
	gin.SetMode(gin.TestMode)
	req := newMultipartRequest(t, "/api/pdf/add-watermark", []formPart{
		{field: "file", filename: "input.pdf", data: []byte("dummy")},
	}, map[string]string{
		"watermark_type": "text",
		"watermark_text": "DRAFT",
		"rotation":       "forty-five",
	})
	rec := httptest.NewRecorder()

	router := gin.New()
	router.POST("/api/pdf/add-watermark", WatermarkHandler(&stubWatermarkService{}, discardLogger()))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}
