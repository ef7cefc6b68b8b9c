package video

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/yourusername/tool-forge/internal/apierror"
	"github.com/yourusername/tool-forge/internal/progress"
)

const progressInterval = 500 * time.Millisecond

// YtdlpExtractor は yt-dlp コマンドを使う Extractor です。
type YtdlpExtractor struct {
	executable string
	logger     *log.Logger
}

// NewYtdlpExtractor は YtdlpExtractor を作成します。executable が空の場合は PATH から解決します。
func NewYtdlpExtractor(executable string, logger *log.Logger) *YtdlpExtractor {
	if logger == nil {
		logger = log.Default()
	}
	return &YtdlpExtractor{executable: executable, logger: logger}
}

func (y *YtdlpExtractor) command() *ytdlp.Command {
	cmd := ytdlp.New()
	if y.executable != "" {
		cmd.SetExecutable(y.executable)
	}
	return cmd
}

// Extract はダウンロードせずに動画情報を取得します。
func (y *YtdlpExtractor) Extract(ctx context.Context, url string) (*Metadata, error) {
	result, err := y.command().
		Quiet().
		NoWarnings().
		SkipDownload().
		DumpSingleJSON().
		Run(ctx, url)
	if err != nil {
		return nil, runError(ctx, "動画情報の取得に失敗しました", err)
	}
	return parseMetadata(result.Stdout)
}

// Download は plan に従ってダウンロードし、進捗を events に送信します。
func (y *YtdlpExtractor) Download(ctx context.Context, url string, plan DownloadPlan, events chan<- progress.Event) (*Metadata, error) {
	cmd := applyPlan(y.command(), plan).
		DumpJSON().
		NoSimulate()

	cmd.ProgressFunc(progressInterval, func(update ytdlp.ProgressUpdate) {
		if ev, ok := progressEvent(update); ok {
			events <- ev
		}
	})

	y.logger.Printf("starting yt-dlp download (format=%s)", plan.Format)
	result, err := cmd.Run(ctx, url)
	if err != nil {
		return nil, runError(ctx, "動画のダウンロードに失敗しました", err)
	}
	return parseMetadata(result.Stdout)
}

func applyPlan(cmd *ytdlp.Command, plan DownloadPlan) *ytdlp.Command {
	cmd.Output(plan.OutputTemplate).Format(plan.Format)
	if plan.Quiet {
		cmd.Quiet()
	}
	if plan.NoWarnings {
		cmd.NoWarnings()
	}
	if plan.ConcurrentFragments > 0 {
		cmd.ConcurrentFragments(plan.ConcurrentFragments)
	}
	if plan.NoCheckCertificates {
		cmd.NoCheckCertificates()
	}
	if plan.CookiesBrowser != "" {
		cmd.CookiesFromBrowser(plan.CookiesBrowser)
	}
	for _, header := range plan.Headers {
		cmd.AddHeaders(header)
	}

	retries := strconv.Itoa(plan.Retries)
	cmd.Retries(retries).
		FragmentRetries(retries).
		ExtractorRetries(retries).
		FileAccessRetries(retries)

	if plan.ExtractAudio {
		cmd.ExtractAudio().
			AudioFormat(plan.AudioFormat).
			AudioQuality(plan.AudioQuality)
	}
	if plan.NoMtime {
		cmd.NoMtime()
	}
	if plan.MergeOutputFormat != "" {
		cmd.MergeOutputFormat(plan.MergeOutputFormat)
	}
	if plan.PostProcessorArgs != "" {
		cmd.PostProcessorArgs(plan.PostProcessorArgs)
	}
	return cmd
}

// progressEvent は yt-dlp の進捗を Event に変換します。後処理などの中間状態は送りません。
func progressEvent(update ytdlp.ProgressUpdate) (progress.Event, bool) {
	switch update.Status {
	case ytdlp.ProgressStatusDownloading:
		ev := progress.Event{
			Status:          progress.StatusDownloading,
			DownloadedBytes: int64(update.DownloadedBytes),
			TotalBytes:      int64(update.TotalBytes),
			Filename:        update.Filename,
		}
		// 開始時刻が不明な間は速度と残り時間を出さない
		if !update.Started.IsZero() {
			if elapsed := time.Since(update.Started).Seconds(); elapsed > 0 {
				ev.Speed = float64(update.DownloadedBytes) / elapsed
			}
			if eta := update.ETA(); eta > 0 {
				ev.ETA = eta.Seconds()
			}
		}
		return ev, true
	case ytdlp.ProgressStatusFinished:
		return progress.Event{Status: progress.StatusFinished, Filename: update.Filename}, true
	case ytdlp.ProgressStatusError:
		return progress.Event{Status: progress.StatusError}, true
	}
	return progress.Event{}, false
}

// parseMetadata は標準出力から最後の JSON オブジェクトを取り出します。
func parseMetadata(stdout string) (*Metadata, error) {
	var meta *Metadata
	scanner := bufio.NewScanner(strings.NewReader(stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var m Metadata
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			continue
		}
		meta = &m
	}
	if err := scanner.Err(); err != nil {
		return nil, apierror.Collaborator("yt-dlp の出力の読み取りに失敗しました", 0, err)
	}
	if meta == nil {
		return nil, apierror.Collaborator("yt-dlp の出力に動画情報が含まれていません", 0, errors.New("no JSON object in output"))
	}
	return meta, nil
}

func runError(ctx context.Context, message string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return apierror.Collaborator(message, 0, fmt.Errorf("yt-dlp: %w", err))
}
