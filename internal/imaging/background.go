package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yourusername/tool-forge/internal/apierror"
)

const (
	rembgRemovePath   = "/api/remove"
	maxErrorBodyBytes = 2048

	// DefaultKeyTolerance はローカル背景除去で背景色とみなすチャンネル差の上限です。
	DefaultKeyTolerance = 32
)

// BackgroundRemover は inputPath の画像から背景を除去し、PNG を w に書き出します。
type BackgroundRemover interface {
	Remove(ctx context.Context, inputPath string, w io.Writer) error
}

// RembgClient は rembg サーバーの HTTP API を呼び出します。
type RembgClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRembgClient は RembgClient を作成します。
func NewRembgClient(baseURL string, timeout time.Duration) *RembgClient {
	return &RembgClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Remove は画像を rembg へ送信し、返却された PNG を書き出します。
func (r *RembgClient) Remove(ctx context.Context, inputPath string, w io.Writer) error {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filepath.Base(inputPath))
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	src, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("画像ファイルのオープンに失敗しました: %w", err)
	}
	_, err = io.Copy(part, src)
	src.Close()
	if err != nil {
		return fmt.Errorf("failed to write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+rembgRemovePath, body)
	if err != nil {
		return fmt.Errorf("failed to build rembg request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := r.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apierror.Collaborator("背景除去に失敗しました", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return apierror.Collaborator("背景除去に失敗しました", resp.StatusCode,
			fmt.Errorf("rembg responded %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return apierror.Collaborator("背景除去に失敗しました", 0, fmt.Errorf("failed to read rembg response: %w", err))
	}
	return nil
}

// BorderKeyer は rembg が使えない環境向けの簡易背景除去です。
// 四隅の平均色に近く、画像の外周とつながっている画素を透明にします。
type BorderKeyer struct {
	Tolerance int
}

// NewBorderKeyer は BorderKeyer を作成します。tolerance が 0 以下の場合は既定値を使います。
func NewBorderKeyer(tolerance int) *BorderKeyer {
	if tolerance <= 0 {
		tolerance = DefaultKeyTolerance
	}
	return &BorderKeyer{Tolerance: tolerance}
}

// Remove は画像を読み込み、背景を透過させた PNG を書き出します。
func (k *BorderKeyer) Remove(ctx context.Context, inputPath string, w io.Writer) error {
	img, err := decodeFile(inputPath)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return Encode(w, k.Key(img), FormatPNG)
}

// Key は背景色を推定し、外周から塗りつぶして透明化した画像を返します。
func (k *BorderKeyer) Key(src image.Image) *image.NRGBA {
	b := src.Bounds()
	width, height := b.Dx(), b.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dst.Set(x, y, src.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	if width == 0 || height == 0 {
		return dst
	}

	bg := cornerAverage(dst)
	visited := make([]bool, width*height)
	queue := make([]image.Point, 0, 2*(width+height))
	push := func(x, y int) {
		idx := y*width + x
		if visited[idx] {
			return
		}
		visited[idx] = true
		if k.near(dst.NRGBAAt(x, y), bg) {
			queue = append(queue, image.Point{X: x, Y: y})
		}
	}

	for x := 0; x < width; x++ {
		push(x, 0)
		push(x, height-1)
	}
	for y := 0; y < height; y++ {
		push(0, y)
		push(width-1, y)
	}

	for len(queue) > 0 {
		p := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		dst.SetNRGBA(p.X, p.Y, color.NRGBA{})
		if p.X > 0 {
			push(p.X-1, p.Y)
		}
		if p.X < width-1 {
			push(p.X+1, p.Y)
		}
		if p.Y > 0 {
			push(p.X, p.Y-1)
		}
		if p.Y < height-1 {
			push(p.X, p.Y+1)
		}
	}
	return dst
}

func (k *BorderKeyer) near(c, bg color.NRGBA) bool {
	if c.A == 0 {
		return true
	}
	return absDiff(c.R, bg.R) <= k.Tolerance &&
		absDiff(c.G, bg.G) <= k.Tolerance &&
		absDiff(c.B, bg.B) <= k.Tolerance
}

func cornerAverage(img *image.NRGBA) color.NRGBA {
	b := img.Bounds()
	corners := []color.NRGBA{
		img.NRGBAAt(b.Min.X, b.Min.Y),
		img.NRGBAAt(b.Max.X-1, b.Min.Y),
		img.NRGBAAt(b.Min.X, b.Max.Y-1),
		img.NRGBAAt(b.Max.X-1, b.Max.Y-1),
	}
	var r, g, bl int
	for _, c := range corners {
		r += int(c.R)
		g += int(c.G)
		bl += int(c.B)
	}
	n := len(corners)
	return color.NRGBA{R: uint8(r / n), G: uint8(g / n), B: uint8(bl / n), A: 0xff}
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func decodeFile(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("画像ファイルのオープンに失敗しました: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, apierror.Collaborator("画像の読み込みに失敗しました", 0, err)
	}
	return img, nil
}
