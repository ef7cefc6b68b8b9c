// Package pdf はPDF操作（結合・分割・透かし）機能を提供します。
package pdf

import (
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"strings"

	"github.com/yourusername/tool-forge/internal/storage"
)

const (
	mimePDF   = "application/pdf"
	mimeImage = "image/"

	mergedFilename = "merged.pdf"
)

// Service はアップロードのステージング、Processor 呼び出し、成果物保存をまとめます。
type Service struct {
	processor Processor
	store     *storage.Local
	logger    *log.Logger
}

// NewService は Service を作成します。
func NewService(processor Processor, store *storage.Local, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		processor: processor,
		store:     store,
		logger:    logger,
	}
}

// Merge はアップロード順に PDF を結合します。
func (s *Service) Merge(ctx context.Context, files []*multipart.FileHeader) (storage.Artifact, error) {
	if len(files) == 0 {
		return storage.Artifact{}, invalidInput("アップロードされたPDFファイルが見つかりません。")
	}

	staged, err := s.store.StageAll(ctx, files, mimePDF)
	if err != nil {
		return storage.Artifact{}, err
	}
	defer storage.ReleaseAll(staged)

	inputs := make([]string, len(staged))
	for i, f := range staged {
		inputs[i] = f.Path
	}

	s.logger.Printf("merging %d PDFs", len(inputs))
	return s.store.CreateOutput(mergedFilename, func(w io.Writer) error {
		return s.processor.Merge(ctx, inputs, w)
	})
}

// Split は PDF を分割し、zip を成果物として保存します。
func (s *Service) Split(ctx context.Context, file *multipart.FileHeader, opts SplitOptions) (storage.Artifact, error) {
	if strings.TrimSpace(opts.Value) == "" {
		return storage.Artifact{}, invalidInput("split_value を指定してください。")
	}

	staged, err := s.store.Stage(ctx, file, mimePDF)
	if err != nil {
		return storage.Artifact{}, err
	}
	defer staged.Release()

	s.logger.Printf("splitting %s (type=%s value=%s)", staged.OriginalName, opts.Type, opts.Value)
	return s.store.CreateOutput(fmt.Sprintf("split_%s.zip", staged.Stem()), func(w io.Writer) error {
		return s.processor.Split(ctx, staged.Path, opts, w)
	})
}

// Watermark は PDF に透かしを追加します。
// text の場合は opts.Text、image の場合は image が必須です。
func (s *Service) Watermark(ctx context.Context, file, image *multipart.FileHeader, opts WatermarkOptions) (storage.Artifact, error) {
	switch opts.Type {
	case WatermarkText:
		if strings.TrimSpace(opts.Text) == "" {
			return storage.Artifact{}, invalidInput("透かしテキストを指定してください。")
		}
	case WatermarkImage:
		if image == nil {
			return storage.Artifact{}, invalidInput("透かし画像を指定してください。")
		}
	default:
		return storage.Artifact{}, invalidInput(fmt.Sprintf("watermark_type には text または image を指定してください (received: %s)", opts.Type))
	}

	staged, err := s.store.Stage(ctx, file, mimePDF)
	if err != nil {
		return storage.Artifact{}, err
	}
	defer staged.Release()

	if opts.Type == WatermarkImage {
		stagedImage, err := s.store.Stage(ctx, image, mimeImage)
		if err != nil {
			return storage.Artifact{}, err
		}
		defer stagedImage.Release()
		opts.ImagePath = stagedImage.Path
	}

	s.logger.Printf("adding %s watermark to %s", opts.Type, staged.OriginalName)
	return s.store.CreateOutput(fmt.Sprintf("watermarked_%s.pdf", staged.Stem()), func(w io.Writer) error {
		return s.processor.Watermark(ctx, staged.Path, opts, w)
	})
}
