package video

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/yourusername/tool-forge/internal/apierror"
)

const (
	defaultContainer   = "mp4"
	defaultAudioFormat = "mp3"
	outputTemplate     = "%(title)s_%(resolution)s.%(ext)s"

	audioQuality       = "320"
	audioPostprocessor = "-threads 3 -b:a 320k -ar 44100 -ac 2"
	videoPostprocessor = "-threads 3 -preset medium -movflags +faststart -c:a aac -b:a 192k -c:v libx264"
)

var (
	containerPattern = regexp.MustCompile(`^[a-z0-9]{2,5}$`)

	// audioExtensions は --audio-format の値と yt-dlp が書き出す拡張子の対応です。
	audioExtensions = map[string]string{
		"mp3":    "mp3",
		"m4a":    "m4a",
		"aac":    "aac",
		"opus":   "opus",
		"vorbis": "ogg",
		"flac":   "flac",
		"wav":    "wav",
	}

	browserHeaders = []string{
		"User-Agent:Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Accept:text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language:en-us,en;q=0.5",
		"Sec-Fetch-Mode:navigate",
	}
)

// PlanOptions はダウンロード計画の環境依存部分です。
type PlanOptions struct {
	DownloadDir         string
	ConcurrentFragments int
	Retries             int
	CookiesBrowser      string
}

// DownloadPlan は yt-dlp に渡すオプション一式です。
type DownloadPlan struct {
	OutputTemplate      string
	Format              string
	Quiet               bool
	NoWarnings          bool
	ConcurrentFragments int
	NoCheckCertificates bool
	CookiesBrowser      string
	Headers             []string

	// Retries は抽出・ファイルアクセス・フラグメント・通信の各リトライ回数に使います。
	Retries int

	ExtractAudio      bool
	AudioFormat       string
	AudioQuality      string
	NoMtime           bool
	MergeOutputFormat string
	PostProcessorArgs string
}

// BuildPlan は要求内容から DownloadPlan を組み立てます。
func BuildPlan(req DownloadRequest, opts PlanOptions) DownloadPlan {
	plan := DownloadPlan{
		OutputTemplate:      filepath.Join(opts.DownloadDir, outputTemplate),
		Quiet:               true,
		NoWarnings:          true,
		ConcurrentFragments: opts.ConcurrentFragments,
		NoCheckCertificates: true,
		CookiesBrowser:      opts.CookiesBrowser,
		Headers:             append([]string(nil), browserHeaders...),
		Retries:             opts.Retries,
	}

	if req.AudioOnly {
		plan.Format = "bestaudio"
		plan.ExtractAudio = true
		plan.AudioFormat = audioFormatFor(req.Format)
		plan.AudioQuality = audioQuality
		plan.PostProcessorArgs = audioPostprocessor
		plan.NoMtime = true
		return plan
	}

	container := req.Format
	if container == "" {
		container = defaultContainer
	}
	if req.FormatID != "" {
		plan.Format = fmt.Sprintf("%s+bestaudio/best", req.FormatID)
	} else {
		plan.Format = fmt.Sprintf("bestvideo[ext=%s]+bestaudio[ext=m4a]/best[ext=%s]", container, container)
	}
	plan.MergeOutputFormat = defaultContainer
	plan.PostProcessorArgs = videoPostprocessor
	return plan
}

// ResultFilename は抽出器が報告したパスからクライアントに返すファイル名を求めます。
// 音声のみの場合は変換後のファイルの拡張子に置き換えます。
func (p DownloadPlan) ResultFilename(reported string) string {
	name := filepath.Base(reported)
	if p.ExtractAudio {
		name = strings.TrimSuffix(name, filepath.Ext(name)) + "." + audioExtension(p.AudioFormat)
	}
	return name
}

// normalizeContainer は format 指定を検証し、小文字で返します。空の場合は mp4 です。
func normalizeContainer(raw string) (string, error) {
	format := strings.ToLower(strings.TrimSpace(raw))
	if format == "" {
		return defaultContainer, nil
	}
	if !containerPattern.MatchString(format) {
		return "", apierror.Validation("INVALID_INPUT", fmt.Sprintf("format の指定が正しくありません: %s", raw))
	}
	return format, nil
}

func audioFormatFor(format string) string {
	if _, ok := audioExtensions[format]; ok {
		return format
	}
	return defaultAudioFormat
}

func audioExtension(format string) string {
	if ext, ok := audioExtensions[format]; ok {
		return ext
	}
	return format
}
