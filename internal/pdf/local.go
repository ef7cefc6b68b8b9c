package pdf

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/yourusername/tool-forge/internal/apierror"
)

// LocalProcessor は pdfcpu を使ってプロセス内で PDF を処理する Processor です。
// Stirling-PDF が設定されていない環境で使用します。
type LocalProcessor struct {
	tempDir string
}

// NewLocalProcessor は LocalProcessor を作成します。tempDir が空の場合は OS 既定を使います。
func NewLocalProcessor(tempDir string) *LocalProcessor {
	return &LocalProcessor{tempDir: tempDir}
}

// Merge は入力順に PDF を結合します。
func (p *LocalProcessor) Merge(ctx context.Context, inputs []string, w io.Writer) error {
	return p.withWorkDir(func(dir string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		outPath := filepath.Join(dir, "merged.pdf")
		if err := pdfapi.MergeCreateFile(inputs, outPath, false, nil); err != nil {
			return apierror.Collaborator("PDFの結合に失敗しました", 0, err)
		}
		return copyFile(w, outPath)
	})
}

// Split はページ範囲ごとに PDF を切り出し、zip にまとめて書き出します。
func (p *LocalProcessor) Split(ctx context.Context, input string, opts SplitOptions, w io.Writer) error {
	pageCount, err := pdfapi.PageCountFile(input)
	if err != nil {
		return apierror.Collaborator("PDFのページ数取得に失敗しました", 0, err)
	}
	ranges, err := planSplit(opts, pageCount)
	if err != nil {
		return err
	}

	return p.withWorkDir(func(dir string) error {
		partPaths := make([]string, 0, len(ranges))
		for i, pr := range ranges {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			partPath := filepath.Join(dir, fmt.Sprintf("part-%02d.pdf", i+1))
			if err := pdfapi.CollectFile(input, partPath, pr.selection(), nil); err != nil {
				return apierror.Collaborator(fmt.Sprintf("ページ範囲 %d の生成に失敗しました", i+1), 0, err)
			}
			partPaths = append(partPaths, partPath)
		}
		return writeZip(w, partPaths)
	})
}

// Watermark はテキストまたは画像の透かしを全ページに追加します。
// pdfcpu はタイル配置を持たないため WidthSpacer/HeightSpacer は使用しません。
func (p *LocalProcessor) Watermark(ctx context.Context, input string, opts WatermarkOptions, w io.Writer) error {
	return p.withWorkDir(func(dir string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		outPath := filepath.Join(dir, "watermarked.pdf")
		var err error
		switch opts.Type {
		case WatermarkText:
			desc := fmt.Sprintf("fontname:Helvetica, points:%d, rotation:%d, opacity:%s",
				opts.FontSize, opts.Rotation, formatOpacity(opts.Opacity))
			err = pdfapi.AddTextWatermarksFile(input, outPath, nil, true, opts.Text, desc, nil)
		case WatermarkImage:
			desc := fmt.Sprintf("rotation:%d, opacity:%s", opts.Rotation, formatOpacity(opts.Opacity))
			err = pdfapi.AddImageWatermarksFile(input, outPath, nil, true, opts.ImagePath, desc, nil)
		default:
			return invalidInput(fmt.Sprintf("未対応の透かし種別です: %s", opts.Type))
		}
		if err != nil {
			return apierror.Collaborator("透かしの追加に失敗しました", 0, err)
		}
		return copyFile(w, outPath)
	})
}

func (p *LocalProcessor) withWorkDir(fn func(dir string) error) error {
	dir, err := os.MkdirTemp(p.tempDir, "tool-forge-pdf-*")
	if err != nil {
		return fmt.Errorf("作業ディレクトリの作成に失敗しました: %w", err)
	}
	defer os.RemoveAll(dir)
	return fn(dir)
}

func formatOpacity(v float64) string {
	if v <= 0 || v > 1 {
		v = 0.5
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}

func copyFile(w io.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("処理結果のオープンに失敗しました: %w", err)
	}
	defer file.Close()
	if _, err := io.Copy(w, file); err != nil {
		return fmt.Errorf("処理結果の書き込みに失敗しました: %w", err)
	}
	return nil
}

// writeZip は files を順に Deflate で zip へ格納します。エントリ名はファイル名のみです。
func writeZip(w io.Writer, files []string) error {
	zw := zip.NewWriter(w)
	for _, path := range files {
		if err := addZipEntry(zw, path); err != nil {
			_ = zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("zipの書き込みに失敗しました: %w", err)
	}
	return nil
}

func addZipEntry(zw *zip.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("分割結果のオープンに失敗しました: %w", err)
	}
	defer file.Close()

	entry, err := zw.Create(filepath.Base(path))
	if err != nil {
		return fmt.Errorf("zipエントリ %s の作成に失敗しました: %w", filepath.Base(path), err)
	}
	if _, err := io.Copy(entry, file); err != nil {
		return fmt.Errorf("zipエントリ %s の書き込みに失敗しました: %w", filepath.Base(path), err)
	}
	return nil
}
