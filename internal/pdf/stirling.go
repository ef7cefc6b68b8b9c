package pdf

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/yourusername/tool-forge/internal/apierror"
)

const (
	stirlingMergePath     = "/merge-pdfs"
	stirlingSplitPath     = "/split-pdf"
	stirlingWatermarkPath = "/add-watermark"

	maxErrorBodyBytes = 2048
)

// StirlingClient は Stirling-PDF の HTTP API を呼び出す Processor です。
type StirlingClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewStirlingClient は StirlingClient を作成します。
// エンドポイントは絶対パスとして baseURL に対して解決されるため、baseURL のパス部分は使われません。
func NewStirlingClient(baseURL, apiKey string, timeout time.Duration) *StirlingClient {
	return &StirlingClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type formFile struct {
	field string
	path  string
}

// Merge は複数PDFを結合します。
func (s *StirlingClient) Merge(ctx context.Context, inputs []string, w io.Writer) error {
	files := make([]formFile, len(inputs))
	for i, path := range inputs {
		files[i] = formFile{field: "fileInput", path: path}
	}
	return s.post(ctx, stirlingMergePath, files, nil, w, "PDFの結合に失敗しました")
}

// Split はPDFを分割し、zip を書き出します。
func (s *StirlingClient) Split(ctx context.Context, input string, opts SplitOptions, w io.Writer) error {
	fields := map[string]string{
		"splitType":  string(opts.Type),
		"splitValue": opts.Value,
	}
	return s.post(ctx, stirlingSplitPath, []formFile{{field: "fileInput", path: input}}, fields, w, "PDFの分割に失敗しました")
}

// Watermark はPDFに透かしを追加します。
func (s *StirlingClient) Watermark(ctx context.Context, input string, opts WatermarkOptions, w io.Writer) error {
	fields := map[string]string{
		"watermarkType": string(opts.Type),
		"fontSize":      strconv.Itoa(opts.FontSize),
		"rotation":      strconv.Itoa(opts.Rotation),
		"opacity":       strconv.FormatFloat(opts.Opacity, 'f', -1, 64),
		"widthSpacer":   strconv.Itoa(opts.WidthSpacer),
		"heightSpacer":  strconv.Itoa(opts.HeightSpacer),
	}
	files := []formFile{{field: "fileInput", path: input}}
	switch opts.Type {
	case WatermarkText:
		fields["watermarkText"] = opts.Text
	case WatermarkImage:
		files = append(files, formFile{field: "watermarkImage", path: opts.ImagePath})
	}
	return s.post(ctx, stirlingWatermarkPath, files, fields, w, "透かしの追加に失敗しました")
}

func (s *StirlingClient) post(ctx context.Context, path string, files []formFile, fields map[string]string, w io.Writer, failMsg string) error {
	endpoint, err := s.endpoint(path)
	if err != nil {
		return apierror.Collaborator(failMsg, 0, err)
	}

	body, contentType := streamMultipart(files, fields)
	defer body.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to build stirling request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if s.apiKey != "" {
		req.Header.Set("X-API-KEY", s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apierror.Collaborator(failMsg, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return apierror.Collaborator(failMsg, resp.StatusCode,
			fmt.Errorf("stirling-pdf responded %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return apierror.Collaborator(failMsg, 0, fmt.Errorf("failed to read stirling response: %w", err))
	}
	return nil
}

func (s *StirlingClient) endpoint(path string) (string, error) {
	base, err := url.Parse(s.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid STIRLING_PDF_URL %q: %w", s.baseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("invalid STIRLING_PDF_URL %q: scheme and host are required", s.baseURL)
	}
	return base.ResolveReference(&url.URL{Path: path}).String(), nil
}

// streamMultipart はファイルをメモリに載せずに multipart ボディを生成します。
func streamMultipart(files []formFile, fields map[string]string) (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		err := writeMultipart(writer, files, fields)
		if closeErr := writer.Close(); err == nil {
			err = closeErr
		}
		pw.CloseWithError(err)
	}()

	return pr, writer.FormDataContentType()
}

func writeMultipart(writer *multipart.Writer, files []formFile, fields map[string]string) error {
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return err
		}
	}
	for _, f := range files {
		part, err := writer.CreateFormFile(f.field, filepath.Base(f.path))
		if err != nil {
			return err
		}
		src, err := os.Open(f.path)
		if err != nil {
			return err
		}
		_, err = io.Copy(part, src)
		src.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
