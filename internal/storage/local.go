// Package storage はアップロード・成果物・ダウンロードのステージングディレクトリを管理します。
package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/yourusername/tool-forge/internal/apierror"
)

const downloadRoute = "/api/download/"

// Artifact はクライアントへ返す成果物の参照です。
type Artifact struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// NewArtifact はファイル名から取得用URL付きの参照を作成します。
func NewArtifact(filename string) Artifact {
	return Artifact{
		Filename: filename,
		URL:      downloadRoute + url.PathEscape(filename),
	}
}

// Local はローカルファイルシステム上の3つのステージングディレクトリを扱います。
type Local struct {
	uploadDir   string
	outputDir   string
	downloadDir string
	maxFileSize int64
	logger      *log.Logger
}

// NewLocal はディレクトリを作成したうえで Local を返します。
func NewLocal(uploadDir, outputDir, downloadDir string, maxFileSize int64, logger *log.Logger) (*Local, error) {
	for _, dir := range []string{uploadDir, outputDir, downloadDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create staging dir %s: %w", dir, err)
		}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Local{
		uploadDir:   uploadDir,
		outputDir:   outputDir,
		downloadDir: downloadDir,
		maxFileSize: maxFileSize,
		logger:      logger,
	}, nil
}

// DownloadDir は動画ダウンロード先ディレクトリを返します。
func (l *Local) DownloadDir() string {
	return l.downloadDir
}

// StagedFile はアップロードディレクトリに保存された入力ファイルです。
// 呼び出し側は defer Release() で必ず解放します。
type StagedFile struct {
	Path         string
	OriginalName string
	Size         int64
	MIME         string

	releaseOnce sync.Once
	releaseErr  error
}

// Stem は元ファイル名から拡張子を除いた部分を返します。
func (f *StagedFile) Stem() string {
	return Stem(f.OriginalName)
}

// Release はステージングしたファイルを削除します。何度呼んでも安全です。
func (f *StagedFile) Release() error {
	if f == nil {
		return nil
	}
	f.releaseOnce.Do(func() {
		if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
			f.releaseErr = err
		}
	})
	return f.releaseErr
}

// ReleaseAll は複数のステージングファイルを解放します。
func ReleaseAll(files []*StagedFile) {
	for _, f := range files {
		_ = f.Release()
	}
}

// Stage はアップロードをユニークな名前で保存し、内容から MIME を判定します。
// accept が空でない場合、判定結果がいずれかの前方一致に該当しなければ検証エラーを返します。
func (l *Local) Stage(ctx context.Context, file *multipart.FileHeader, accept ...string) (*StagedFile, error) {
	if file == nil {
		return nil, apierror.Validation("INVALID_INPUT", "ファイルを選択してください。")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.maxFileSize > 0 && file.Size > l.maxFileSize {
		return nil, apierror.Validation("LIMIT_EXCEEDED", fmt.Sprintf("%s はサイズ上限 (%d bytes) を超えています。", file.Filename, l.maxFileSize))
	}

	original := SafeName(file.Filename)
	if original == "" {
		original = "upload"
	}
	path := filepath.Join(l.uploadDir, uuid.NewString()+"_"+original)

	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("アップロードファイルのオープンに失敗しました: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return nil, fmt.Errorf("アップロードファイルの保存に失敗しました: %w", err)
	}
	size, copyErr := io.Copy(dst, src)
	closeErr := dst.Close()
	staged := &StagedFile{Path: path, OriginalName: original, Size: size}
	if copyErr != nil || closeErr != nil {
		_ = staged.Release()
		if copyErr == nil {
			copyErr = closeErr
		}
		return nil, fmt.Errorf("アップロードファイルの書き込みに失敗しました: %w", copyErr)
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		_ = staged.Release()
		return nil, fmt.Errorf("ファイル形式の判定に失敗しました: %w", err)
	}
	staged.MIME = mtype.String()

	if len(accept) > 0 && !matchesAny(staged.MIME, accept) {
		_ = staged.Release()
		return nil, apierror.Validation("INVALID_FILE_TYPE", fmt.Sprintf("%s の形式 (%s) には対応していません。", original, staged.MIME))
	}

	return staged, nil
}

// StageAll は複数のアップロードを保存します。途中で失敗した場合は保存済みのものを解放します。
func (l *Local) StageAll(ctx context.Context, files []*multipart.FileHeader, accept ...string) ([]*StagedFile, error) {
	staged := make([]*StagedFile, 0, len(files))
	for _, fh := range files {
		sf, err := l.Stage(ctx, fh, accept...)
		if err != nil {
			ReleaseAll(staged)
			return nil, err
		}
		staged = append(staged, sf)
	}
	return staged, nil
}

// CreateOutput は成果物ディレクトリに書き込み、参照を返します。
// 書き込みは一時ファイル経由で行い、完了後にリネームします。
func (l *Local) CreateOutput(filename string, write func(w io.Writer) error) (Artifact, error) {
	name := SafeName(filename)
	if name == "" {
		return Artifact{}, fmt.Errorf("invalid output filename: %q", filename)
	}

	tmp, err := os.CreateTemp(l.outputDir, ".tmp-*")
	if err != nil {
		return Artifact{}, fmt.Errorf("成果物ファイルの作成に失敗しました: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if err := write(tmp); err != nil {
		tmp.Close()
		return Artifact{}, err
	}
	if err := tmp.Close(); err != nil {
		return Artifact{}, fmt.Errorf("成果物ファイルの書き込みに失敗しました: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o640); err != nil {
		return Artifact{}, fmt.Errorf("成果物ファイルの権限設定に失敗しました: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(l.outputDir, name)); err != nil {
		return Artifact{}, fmt.Errorf("成果物ファイルの配置に失敗しました: %w", err)
	}

	return NewArtifact(name), nil
}

// SaveOutput は r の内容を成果物として保存します。
func (l *Local) SaveOutput(filename string, r io.Reader) (Artifact, error) {
	return l.CreateOutput(filename, func(w io.Writer) error {
		if _, err := io.Copy(w, r); err != nil {
			return fmt.Errorf("成果物ファイルの書き込みに失敗しました: %w", err)
		}
		return nil
	})
}

// ClearDownloads はダウンロードディレクトリ内のファイルを削除します。
// 個々の削除失敗はログに残して無視します。
func (l *Local) ClearDownloads() {
	entries, err := os.ReadDir(l.downloadDir)
	if err != nil {
		l.logger.Printf("failed to list download dir %s: %v", l.downloadDir, err)
		return
	}
	for _, entry := range entries {
		path := filepath.Join(l.downloadDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			l.logger.Printf("failed to delete %s: %v", path, err)
		}
	}
}

// Locate は成果物ディレクトリ、ダウンロードディレクトリの順にファイルを探します。
func (l *Local) Locate(filename string) (string, error) {
	name := SafeName(filename)
	if name == "" || name != filename {
		return "", apierror.Validation("INVALID_INPUT", "ファイル名が正しくありません。")
	}
	for _, dir := range []string{l.outputDir, l.downloadDir} {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err == nil && info.Mode().IsRegular() {
			return path, nil
		}
		if err != nil && !os.IsNotExist(err) {
			return "", fmt.Errorf("ファイルの確認に失敗しました: %w", err)
		}
	}
	l.logger.Printf("file not found in either directory: %s (checked %s, %s)", name, l.outputDir, l.downloadDir)
	return "", apierror.NotFound("FILE_NOT_FOUND", "ファイルが見つかりません。")
}

// SafeName はパス要素を取り除いたファイル名を返します。使えない名前の場合は空文字を返します。
func SafeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == ".." || base == "/" || strings.HasPrefix(base, ".tmp-") {
		return ""
	}
	return base
}

// Stem はファイル名から拡張子を除いた部分を返します。
func Stem(name string) string {
	base := SafeName(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func matchesAny(mime string, accept []string) bool {
	for _, prefix := range accept {
		if strings.HasPrefix(mime, prefix) {
			return true
		}
	}
	return false
}
