package video

import (
	"context"

	"github.com/yourusername/tool-forge/internal/progress"
)

// Extractor は動画サイトからのメタデータ取得とダウンロードを行います。
// Download は進捗を events に送信しますが、チャネルは閉じません。
type Extractor interface {
	Extract(ctx context.Context, url string) (*Metadata, error)
	Download(ctx context.Context, url string, plan DownloadPlan, events chan<- progress.Event) (*Metadata, error)
}

// Metadata は抽出器が返す動画情報のうち、このサービスで使う項目です。
type Metadata struct {
	Title     string      `json:"title"`
	Thumbnail string      `json:"thumbnail"`
	Duration  float64     `json:"duration"`
	Formats   []RawFormat `json:"formats"`
	// Filename は出力テンプレートを展開したファイルパスです（後処理前の拡張子を含む場合があります）。
	Filename string `json:"_filename"`
}

// RawFormat は抽出器が返すフォーマット1件です。
type RawFormat struct {
	FormatID       string  `json:"format_id"`
	Ext            string  `json:"ext"`
	VCodec         string  `json:"vcodec"`
	Height         float64 `json:"height"`
	FPS            float64 `json:"fps"`
	Filesize       float64 `json:"filesize"`
	FilesizeApprox float64 `json:"filesize_approx"`
}

// Format はクライアントへ返す選択可能な映像フォーマットです。
type Format struct {
	FormatID       string  `json:"format_id"`
	Resolution     string  `json:"resolution"`
	FilesizeApprox int64   `json:"filesize_approx"`
	VCodec         string  `json:"vcodec"`
	FPS            float64 `json:"fps"`

	height int
}

// Info は GET /api/get-video-info のレスポンスです。
type Info struct {
	Title     string   `json:"title"`
	Thumbnail string   `json:"thumbnail"`
	Formats   []Format `json:"formats"`
	Duration  float64  `json:"duration"`
}

// DownloadRequest はダウンロード要求です。
type DownloadRequest struct {
	URL       string
	FormatID  string
	AudioOnly bool
	Format    string
	JobID     string
}

// DownloadResult は POST /api/download-video のレスポンスです。
type DownloadResult struct {
	JobID        string  `json:"job_id"`
	Title        string  `json:"title"`
	Duration     float64 `json:"duration"`
	Thumbnail    string  `json:"thumbnail"`
	DownloadPath string  `json:"download_path"`
}
