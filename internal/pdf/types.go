package pdf

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/yourusername/tool-forge/internal/apierror"
)

// SplitType は分割方法を表します。
type SplitType string

const (
	SplitTypeRanges   SplitType = "ranges"
	SplitTypePages    SplitType = "pages"
	SplitTypeInterval SplitType = "interval"
)

// ParseSplitType は split_type の値を検証します。
func ParseSplitType(raw string) (SplitType, error) {
	switch t := SplitType(strings.ToLower(strings.TrimSpace(raw))); t {
	case SplitTypeRanges, SplitTypePages, SplitTypeInterval:
		return t, nil
	default:
		return "", apierror.Validation("INVALID_INPUT", fmt.Sprintf("split_type には ranges, pages, interval のいずれかを指定してください (received: %s)", raw))
	}
}

// SplitOptions は分割処理のパラメータです。
type SplitOptions struct {
	Type  SplitType
	Value string
}

// WatermarkType は透かしの種類を表します。
type WatermarkType string

const (
	WatermarkText  WatermarkType = "text"
	WatermarkImage WatermarkType = "image"
)

// WatermarkOptions は透かし処理のパラメータです。
type WatermarkOptions struct {
	Type         WatermarkType
	Text         string
	ImagePath    string
	FontSize     int
	Rotation     int
	Opacity      float64
	WidthSpacer  int
	HeightSpacer int
}

// DefaultWatermarkOptions はフォーム未指定時の既定値です。
func DefaultWatermarkOptions() WatermarkOptions {
	return WatermarkOptions{
		FontSize:     30,
		Rotation:     0,
		Opacity:      0.5,
		WidthSpacer:  50,
		HeightSpacer: 50,
	}
}

// Processor は PDF 処理を実際に行う外部サービス／ライブラリの抽象です。
// 入力はステージング済みファイルのパスで、結果は w に書き出します。
type Processor interface {
	Merge(ctx context.Context, inputs []string, w io.Writer) error
	Split(ctx context.Context, input string, opts SplitOptions, w io.Writer) error
	Watermark(ctx context.Context, input string, opts WatermarkOptions, w io.Writer) error
}
