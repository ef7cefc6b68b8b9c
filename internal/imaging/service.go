// Package imaging は画像の背景除去と形式変換を提供します。
package imaging

import (
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"strings"

	"github.com/yourusername/tool-forge/internal/apierror"
	"github.com/yourusername/tool-forge/internal/storage"
)

const mimeImage = "image/"

// Service はアップロード画像ごとに1つの成果物を生成します。
type Service struct {
	remover BackgroundRemover
	store   *storage.Local
	logger  *log.Logger
}

// NewService は Service を作成します。
func NewService(remover BackgroundRemover, store *storage.Local, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		remover: remover,
		store:   store,
		logger:  logger,
	}
}

// RemoveBackground は各画像の背景を除去し、nobg_<stem>.png として保存します。
func (s *Service) RemoveBackground(ctx context.Context, files []*multipart.FileHeader) ([]storage.Artifact, error) {
	if len(files) == 0 {
		return nil, apierror.Validation("INVALID_INPUT", "画像ファイルを選択してください。")
	}

	artifacts := make([]storage.Artifact, 0, len(files))
	for _, fh := range files {
		artifact, err := s.each(ctx, fh, func(staged *storage.StagedFile) (storage.Artifact, error) {
			s.logger.Printf("removing background from %s (%s)", staged.OriginalName, staged.MIME)
			return s.store.CreateOutput(fmt.Sprintf("nobg_%s.png", staged.Stem()), func(w io.Writer) error {
				return s.remover.Remove(ctx, staged.Path, w)
			})
		})
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, artifact)
	}
	return artifacts, nil
}

// Convert は各画像を opts に従って変換し、converted_<stem>.<ext> として保存します。
// ext はリクエストされた形式名を小文字にしたものです。
func (s *Service) Convert(ctx context.Context, files []*multipart.FileHeader, rawFormat string, width, height int) ([]storage.Artifact, error) {
	if len(files) == 0 {
		return nil, apierror.Validation("INVALID_INPUT", "画像ファイルを選択してください。")
	}
	format, err := ParseFormat(rawFormat)
	if err != nil {
		return nil, err
	}
	opts := ConvertOptions{Format: format, Width: width, Height: height}
	ext := strings.ToLower(strings.TrimSpace(rawFormat))

	s.logger.Printf("converting %d images to %s (width=%d height=%d)", len(files), format, width, height)
	artifacts := make([]storage.Artifact, 0, len(files))
	for _, fh := range files {
		artifact, err := s.each(ctx, fh, func(staged *storage.StagedFile) (storage.Artifact, error) {
			img, err := decodeFile(staged.Path)
			if err != nil {
				return storage.Artifact{}, err
			}
			return s.store.CreateOutput(fmt.Sprintf("converted_%s.%s", staged.Stem(), ext), func(w io.Writer) error {
				return Convert(img, opts, w)
			})
		})
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, artifact)
	}
	return artifacts, nil
}

func (s *Service) each(ctx context.Context, fh *multipart.FileHeader, fn func(*storage.StagedFile) (storage.Artifact, error)) (storage.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return storage.Artifact{}, err
	}
	staged, err := s.store.Stage(ctx, fh, mimeImage)
	if err != nil {
		return storage.Artifact{}, err
	}
	defer staged.Release()
	return fn(staged)
}
