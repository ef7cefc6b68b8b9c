package imaging

import (
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/gen2brain/webp"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"

	// 入力側のデコーダー登録
	_ "golang.org/x/image/webp"

	"github.com/yourusername/tool-forge/internal/apierror"
)

// Format は変換先の画像形式です。
type Format string

const (
	FormatPNG  Format = "PNG"
	FormatJPEG Format = "JPEG"
	FormatWEBP Format = "WEBP"
	FormatGIF  Format = "GIF"
	FormatBMP  Format = "BMP"
	FormatTIFF Format = "TIFF"
)

const (
	jpegQuality = 95
	webpQuality = 95
	webpMethod  = 6
)

// ParseFormat は形式名を正規化します。大文字小文字は区別せず、jpg は JPEG として扱います。
func ParseFormat(raw string) (Format, error) {
	name := strings.ToUpper(strings.TrimSpace(raw))
	switch name {
	case "JPG":
		return FormatJPEG, nil
	case "TIF":
		return FormatTIFF, nil
	}
	switch f := Format(name); f {
	case FormatPNG, FormatJPEG, FormatWEBP, FormatGIF, FormatBMP, FormatTIFF:
		return f, nil
	}
	return "", apierror.Validation("UNSUPPORTED_FORMAT", fmt.Sprintf("未対応の画像形式です: %s", raw))
}

// SupportsAlpha は形式が透過を保持できるかを返します。
func (f Format) SupportsAlpha() bool {
	switch f {
	case FormatJPEG, FormatBMP:
		return false
	}
	return true
}

// ConvertOptions は変換パラメータです。Width と Height が両方正の場合のみリサイズします。
type ConvertOptions struct {
	Format Format
	Width  int
	Height int
}

func (o ConvertOptions) resize() bool {
	return o.Width > 0 && o.Height > 0
}

// Convert は img をリサイズ・透過除去したうえで指定形式にエンコードします。
func Convert(img image.Image, opts ConvertOptions, w io.Writer) error {
	if opts.resize() {
		img = Resize(img, opts.Width, opts.Height)
	}
	if !opts.Format.SupportsAlpha() {
		img = Flatten(img)
	}
	return Encode(w, img, opts.Format)
}

// Resize は Catmull-Rom で width x height に拡大縮小します。
func Resize(src image.Image, width, height int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// Flatten は透過部分を白背景に合成した不透明画像を返します。
func Flatten(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst
}

// Encode は形式ごとのパラメータで img を書き出します。
func Encode(w io.Writer, img image.Image, format Format) error {
	var err error
	switch format {
	case FormatPNG:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		err = enc.Encode(w, img)
	case FormatJPEG:
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality})
	case FormatWEBP:
		err = webp.Encode(w, img, webp.Options{Quality: webpQuality, Method: webpMethod})
	case FormatGIF:
		err = gif.Encode(w, img, &gif.Options{NumColors: 256})
	case FormatBMP:
		err = bmp.Encode(w, img)
	case FormatTIFF:
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	default:
		return apierror.Validation("UNSUPPORTED_FORMAT", fmt.Sprintf("未対応の画像形式です: %s", format))
	}
	if err != nil {
		return apierror.Collaborator(fmt.Sprintf("%s へのエンコードに失敗しました", format), 0, err)
	}
	return nil
}
