package main

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/tool-forge/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	return &config.Config{
		Port:                     "0",
		GinMode:                  gin.TestMode,
		CORSAllowedOrigins:       "http://localhost:3010",
		UploadDir:                filepath.Join(root, "uploads"),
		OutputDir:                filepath.Join(root, "outputs"),
		DownloadDir:              filepath.Join(root, "downloads"),
		MaxFileSize:              1 << 20,
		HTTPClientTimeout:        5,
		YtdlpConcurrentFragments: 3,
		YtdlpRetries:             3,
		ProgressTTLMinutes:       5,
	}
}

func newTestRouter(t *testing.T, cfg *config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	deps, err := setupServices(cfg, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("setupServices returned error: %v", err)
	}
	t.Cleanup(deps.Close)

	router := gin.New()
	setupRoutes(router, deps)
	return router
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, testConfig(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if payload["status"] != "ok" || payload["service"] != serviceName {
		t.Fatalf("unexpected payload: %#v", payload)
	}
}

func TestRoutesServeOutputsAndProgress(t *testing.T) {
	cfg := testConfig(t)
	router := newTestRouter(t, cfg)

	if err := os.WriteFile(filepath.Join(cfg.OutputDir, "merged.pdf"), []byte("%PDF-1.4"), 0o640); err != nil {
		t.Fatalf("failed to write output: %v", err)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/download/merged.pdf", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "%PDF-1.4" {
		t.Fatalf("unexpected download response: %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/download-progress", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected progress status: %d", rec.Code)
	}
	var record map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
		t.Fatalf("failed to parse progress: %v", err)
	}
	if record["status"] != "idle" {
		t.Fatalf("expected idle progress before any download, got %v", record["status"])
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/download-progress/unknown", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown job, got %d", rec.Code)
	}
}

func TestSetupServicesWithRedisMirror(t *testing.T) {
	srv := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.ProgressRedisURL = "redis://" + srv.Addr()

	deps, err := setupServices(cfg, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("setupServices returned error: %v", err)
	}
	defer deps.Close()
	if deps.redis == nil {
		t.Fatal("expected redis client to be configured")
	}
}

func TestSetupServicesRejectsBadRedisURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.ProgressRedisURL = "://bad"
	if _, err := setupServices(cfg, log.New(io.Discard, "", 0)); err == nil {
		t.Fatal("expected error for invalid redis url")
	}
}
